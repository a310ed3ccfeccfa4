package project

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/spf13/afero"

	"github.com/specialistvlad/stackmark/internal/element"
	"github.com/specialistvlad/stackmark/internal/hclutil"
)

// Component is a named element tree loaded from a component document.
type Component struct {
	Name string
	Path string
	Root *element.Element
	// Tokens lists the token references the document reads, sorted.
	Tokens []string
	// Uses lists other components appearing as element types, sorted.
	Uses []string
}

type textBlock struct {
	Value string `hcl:"value"`
	Raw   bool   `hcl:"raw,optional"`
}

// LoadComponents reads every component block of the file at path. Each
// component holds exactly one root element block; element blocks nest in
// source order together with text blocks.
func LoadComponents(fs afero.Fs, path string, ectx *hcl.EvalContext) ([]*Component, error) {
	body, err := parseFile(fs, path)
	if err != nil {
		return nil, err
	}

	var out []*Component
	var diags hcl.Diagnostics
	for _, b := range body.Blocks {
		if b.Type != "component" {
			diags = append(diags, unsupportedBlock(b, "component"))
			continue
		}
		c, d := decodeComponent(b, ectx)
		diags = append(diags, d...)
		if c != nil {
			c.Path = path
			out = append(out, c)
		}
	}
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", path, diags)
	}
	return out, nil
}

func decodeComponent(b *hclsyntax.Block, ectx *hcl.EvalContext) (*Component, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	if len(b.Labels) != 1 {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid component block",
			Detail:   "A component block needs exactly one name label.",
			Subject:  b.DefRange().Ptr(),
		})
	}
	if len(b.Body.Attributes) > 0 || len(b.Body.Blocks) != 1 || b.Body.Blocks[0].Type != "element" {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid component block",
			Detail:   fmt.Sprintf("Component %q must contain exactly one root element block.", b.Labels[0]),
			Subject:  b.DefRange().Ptr(),
		})
	}

	refs := map[string]struct{}{}
	root, d := decodeElement(b.Body.Blocks[0], ectx, refs)
	diags = append(diags, d...)
	if diags.HasErrors() {
		return nil, diags
	}

	c := &Component{Name: b.Labels[0], Root: root}
	for r := range refs {
		c.Tokens = append(c.Tokens, r)
	}
	sort.Strings(c.Tokens)
	return c, diags
}

func decodeElement(b *hclsyntax.Block, ectx *hcl.EvalContext, refs map[string]struct{}) (*element.Element, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	if len(b.Labels) != 1 {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid element block",
			Detail:   "An element block needs exactly one type label.",
			Subject:  b.DefRange().Ptr(),
		})
	}

	el := &element.Element{Type: b.Labels[0], Properties: map[string]any{}}
	for name, attr := range b.Body.Attributes {
		for _, r := range hclutil.References("token", attr.Expr) {
			refs[r] = struct{}{}
		}
		v, d := attr.Expr.Value(ectx)
		diags = append(diags, d...)
		if d.HasErrors() {
			continue
		}
		native, err := hclutil.ToNative(v)
		if err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unsupported property value",
				Detail:   fmt.Sprintf("Property %q: %s.", name, err),
				Subject:  attr.Expr.Range().Ptr(),
			})
			continue
		}
		el.Properties[name] = native
	}

	for _, child := range b.Body.Blocks {
		switch child.Type {
		case "element":
			c, d := decodeElement(child, ectx, refs)
			diags = append(diags, d...)
			if c != nil {
				el.Children = append(el.Children, c)
			}
		case "text":
			for _, attr := range child.Body.Attributes {
				for _, r := range hclutil.References("token", attr.Expr) {
					refs[r] = struct{}{}
				}
			}
			var tb textBlock
			d := gohcl.DecodeBody(child.Body, ectx, &tb)
			diags = append(diags, d...)
			if !d.HasErrors() {
				el.Children = append(el.Children, element.Text{Value: tb.Value, Raw: tb.Raw})
			}
		default:
			diags = append(diags, unsupportedBlock(child, "element", "text"))
		}
	}
	return el, diags
}

func unsupportedBlock(b *hclsyntax.Block, allowed ...string) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  "Unsupported block type",
		Detail:   fmt.Sprintf("Blocks of type %q are not expected here; expected one of %q.", b.Type, allowed),
		Subject:  b.DefRange().Ptr(),
	}
}
