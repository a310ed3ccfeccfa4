package project

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/specialistvlad/stackmark/internal/hclutil"
)

// Tokens are design token values. Value is the object components see as the
// token variable; Flat maps every leaf reference ("color.primary") to its
// string form.
type Tokens struct {
	Value cty.Value
	Flat  map[string]string
}

// EmptyTokens is used when a project has no tokens file.
func EmptyTokens() *Tokens {
	return &Tokens{Value: cty.EmptyObjectVal, Flat: map[string]string{}}
}

// LoadTokens reads the tokens block of the file at path. Attributes are
// evaluated without variables.
func LoadTokens(fs afero.Fs, path string) (*Tokens, error) {
	body, err := parseFile(fs, path)
	if err != nil {
		return nil, err
	}
	block, diags := hclutil.FindUniqueBlock(body.Blocks.AsHCLBlocks(), "tokens")
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", path, diags)
	}
	if block == nil {
		return EmptyTokens(), nil
	}

	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", path, diags)
	}
	vals := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, d := attr.Expr.Value(nil)
		diags = append(diags, d...)
		vals[name] = v
	}
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to evaluate %s: %w", path, diags)
	}

	t := &Tokens{Value: cty.ObjectVal(vals), Flat: map[string]string{}}
	if err := flatten("", t.Value, t.Flat); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Refs returns the flat references sorted.
func (t *Tokens) Refs() []string {
	refs := make([]string, 0, len(t.Flat))
	for r := range t.Flat {
		refs = append(refs, r)
	}
	sort.Strings(refs)
	return refs
}

// Matching returns the leaf references at or below ref, sorted.
func (t *Tokens) Matching(ref string) []string {
	if _, ok := t.Flat[ref]; ok {
		return []string{ref}
	}
	var out []string
	for _, r := range t.Refs() {
		if len(r) > len(ref) && r[:len(ref)] == ref && r[len(ref)] == '.' {
			out = append(out, r)
		}
	}
	return out
}

// EvalContext exposes the tokens as token.* and vars as var.*.
func (t *Tokens) EvalContext(vars map[string]string) *hcl.EvalContext {
	v := make(map[string]cty.Value, len(vars))
	for k, s := range vars {
		v[k] = cty.StringVal(s)
	}
	return &hcl.EvalContext{Variables: map[string]cty.Value{
		"token": t.Value,
		"var":   cty.ObjectVal(v),
	}}
}

func flatten(prefix string, v cty.Value, out map[string]string) error {
	if v.IsNull() || !v.IsKnown() {
		return nil
	}
	ty := v.Type()
	join := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "." + k
	}

	switch {
	case ty.IsObjectType() || ty.IsMapType():
		it := v.ElementIterator()
		for it.Next() {
			k, ev := it.Element()
			if err := flatten(join(k.AsString()), ev, out); err != nil {
				return err
			}
		}
	case ty.IsListType() || ty.IsTupleType():
		i := 0
		it := v.ElementIterator()
		for it.Next() {
			_, ev := it.Element()
			if err := flatten(join(strconv.Itoa(i)), ev, out); err != nil {
				return err
			}
			i++
		}
	default:
		s, err := convert.Convert(v, cty.String)
		if err != nil {
			return fmt.Errorf("token %q: %w", prefix, err)
		}
		out[prefix] = s.AsString()
	}
	return nil
}
