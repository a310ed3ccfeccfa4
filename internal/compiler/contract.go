package compiler

import (
	"context"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/specialistvlad/stackmark/internal/element"
	"github.com/specialistvlad/stackmark/internal/extract"
	"github.com/specialistvlad/stackmark/internal/platform"
	"github.com/specialistvlad/stackmark/internal/style"
)

// Reserved property names. They are never handed to extractors.
const (
	PropClass = "class"
	PropStyle = "style"
	PropText  = "text"
)

// DefaultClassAttr receives the class when a contract does not name one.
const DefaultClassAttr = "class"

var varPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// applyContract compiles el with one platform's contract. The whole stack is
// visible to extractors and component mappings, and extractors also see every
// attribute emitted for el so far.
func (p *pass) applyContract(ctx context.Context, el *element.Element, contract platform.ElementContract, kids *children, st *stage) *element.Tag {
	props := el.Properties

	attrs := map[string]string{}
	for k, v := range contract.DefaultAttrs {
		attrs[k] = v
	}

	mapped, consumed := p.componentMapping(el.Type, contract, props, attrs)
	for _, k := range contract.ExcludeFromStyles {
		st.dropped[k] = true
	}
	for k := range consumed {
		st.dropped[k] = true
	}

	input := extractorInput(props, reservedProps(contract.ContentPath), st.dropped, st.emitted(), attrs, mapped)
	for _, kind := range extract.Kinds(p.configs) {
		res := extract.Extract(ctx, input, p.configs, kind)
		mergeExtracted(attrs, res.Attrs)
	}
	for k, v := range mapped {
		attrs[k] = v
	}

	classAttr := contract.ClassAttr
	if classAttr == "" {
		classAttr = DefaultClassAttr
	}
	if classAttr != DefaultClassAttr {
		if extracted, ok := attrs[DefaultClassAttr]; ok {
			delete(attrs, DefaultClassAttr)
			if _, taken := attrs[classAttr]; !taken {
				attrs[classAttr] = extracted
			}
		}
	}
	if explicit, ok := extract.Scalar(props[PropClass]); ok && strings.TrimSpace(explicit) != "" {
		attrs[classAttr] = strings.TrimSpace(explicit)
	}

	explicitStyle, _ := extract.Scalar(props[PropStyle])
	if merged := style.Merge(explicitStyle, attrs[PropStyle]); merged != "" {
		attrs[PropStyle] = merged
	} else {
		delete(attrs, PropStyle)
	}

	return &element.Tag{
		Name:     resolveTag(contract, props),
		Attrs:    attrs,
		Children: p.body(ctx, el, contract, kids),
	}
}

// resolveTag picks the output tag, directly or by dispatching on a property.
func resolveTag(contract platform.ElementContract, props map[string]any) string {
	if bp := contract.ElementByProp; bp != nil {
		if v, ok := extract.Scalar(props[bp.Prop]); ok {
			if tag, ok := bp.Tags[v]; ok {
				return tag
			}
		}
		if bp.Default != "" {
			return bp.Default
		}
	}
	if contract.ElementTag != "" {
		return contract.ElementTag
	}
	return FallbackTag
}

// componentMapping renames semantic properties into platform attributes. The
// contract's AttrMap applies first, then the component mappings of every
// config in stack order, so later platforms win. Default attributes of those
// mappings are written into attrs directly.
func (p *pass) componentMapping(typ string, contract platform.ElementContract, props map[string]any, attrs map[string]string) (map[string]string, map[string]bool) {
	table := map[string]string{}
	for k, v := range contract.AttrMap {
		table[k] = v
	}
	for _, cfg := range p.configs {
		cm, ok := cfg.ComponentMappings[typ]
		if !ok {
			continue
		}
		for k, v := range cm.DefaultAttrs {
			attrs[k] = v
		}
		for k, v := range cm.Mappings {
			table[k] = v
		}
	}

	mapped := map[string]string{}
	consumed := map[string]bool{}
	for _, prop := range sortedKeys(table) {
		raw, ok := props[prop]
		if !ok {
			continue
		}
		consumed[prop] = true
		if v, ok := extract.Attribute(raw); ok {
			mapped[table[prop]] = v
		}
	}
	return mapped, consumed
}

// body resolves content and children. It returns nil when nothing resolves so
// the compiled tag carries no body at all.
func (p *pass) body(ctx context.Context, el *element.Element, contract platform.ElementContract, kids *children) []element.Node {
	var out []element.Node

	switch contract.ContentSource {
	case platform.ContentText:
		if s, ok := extract.Scalar(el.Properties[PropText]); ok && s != "" {
			out = append(out, p.text(s, contract.ContentHandling))
		}
	case platform.ContentPath:
		if s, ok := extract.Scalar(lookupPath(el.Properties, contract.ContentPath)); ok && s != "" {
			out = append(out, p.text(s, contract.ContentHandling))
		}
	case platform.ContentFirstChild:
		if kids.len() > 0 {
			out = append(out, p.handle(kids.at(ctx, 0), contract.ContentHandling))
		}
	default:
		switch contract.ChildrenHandling {
		case platform.ChildrenNone:
		case platform.ChildrenFirstOnly:
			if kids.len() > 0 {
				out = append(out, p.handle(kids.at(ctx, 0), contract.ContentHandling))
			}
		default:
			for _, n := range kids.all(ctx) {
				out = append(out, p.handle(n, contract.ContentHandling))
			}
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func (p *pass) handle(n element.Node, handling platform.ContentHandling) element.Node {
	if t, ok := n.(element.Text); ok && !t.Raw {
		return p.text(t.Value, handling)
	}
	return n
}

func (p *pass) text(s string, handling platform.ContentHandling) element.Text {
	switch handling {
	case platform.HandlingResolveVars:
		return element.Text{Value: ResolveVars(s, p.cctx.Vars)}
	case platform.HandlingRaw:
		return element.Text{Value: s, Raw: true}
	default:
		return element.Text{Value: s}
	}
}

// ResolveVars replaces {{name}} with vars[name]. Unknown names are left as
// written.
func ResolveVars(s string, vars map[string]string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return varPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := varPattern.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// lookupPath walks a dotted path through nested maps.
func lookupPath(props map[string]any, path string) any {
	if path == "" {
		return nil
	}
	var cur any = props
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func reservedProps(contentPath string) []string {
	reserved := []string{PropClass, PropStyle, PropText}
	if contentPath != "" {
		root, _, _ := strings.Cut(contentPath, ".")
		reserved = append(reserved, root)
	}
	return reserved
}

// extractorInput merges the emitted attribute maps in order, lays the
// properties over them and removes reserved and dropped names. A property
// always wins over an attribute of the same name.
func extractorInput(props map[string]any, reserved []string, dropped map[string]bool, emitted ...map[string]string) map[string]any {
	out := map[string]any{}
	for _, attrs := range emitted {
		for k, v := range attrs {
			out[k] = v
		}
	}
	for k, v := range props {
		out[k] = v
	}
	for k := range out {
		if slices.Contains(reserved, k) || dropped[k] {
			delete(out, k)
		}
	}
	return out
}

func filterProps(props map[string]any, reserved, excluded []string) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if slices.Contains(reserved, k) || slices.Contains(excluded, k) {
			continue
		}
		out[k] = v
	}
	return out
}

// mergeExtracted folds one extractor kind's output into attrs. Style strings
// accumulate per property with the newer kind winning.
func mergeExtracted(attrs, extracted map[string]string) {
	for k, v := range extracted {
		if k == PropStyle {
			if prev, ok := attrs[k]; ok {
				v = style.Merge(v, prev)
			}
		}
		attrs[k] = v
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
