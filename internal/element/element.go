// Package element defines the tree shapes flowing through the compiler: the
// platform-agnostic input Element, the compiled output Tag and the Text leaf
// shared by both.
//
// Node is a closed sum type. Consumers match it with a type switch over
// *Element, *Tag and Text; no other implementations exist.
package element

import (
	"fmt"
	"sort"

	"github.com/mitchellh/copystructure"
)

// Node is a member of an element tree.
type Node interface {
	node()
}

// Element is an uncompiled, platform-agnostic element. The compiler treats it
// as immutable input.
type Element struct {
	Type       string
	Properties map[string]any
	// Children holds *Element and Text values in document order.
	Children []Node
}

// Tag is a compiled element: an output tag name, its attributes and an
// optional body. A nil Children slice means the element has no body at all.
type Tag struct {
	Name     string
	Attrs    map[string]string
	Children []Node
}

// Text is a string leaf. Raw text is emitted verbatim by renderers that
// otherwise escape content.
type Text struct {
	Value string
	Raw   bool
}

func (*Element) node() {}
func (*Tag) node()     {}
func (Text) node()     {}

// New builds an input element. Children may be *Element, Text or plain strings.
func New(typ string, props map[string]any, children ...any) *Element {
	el := &Element{Type: typ, Properties: props}
	for _, c := range children {
		switch v := c.(type) {
		case *Element:
			el.Children = append(el.Children, v)
		case Text:
			el.Children = append(el.Children, v)
		case string:
			el.Children = append(el.Children, Text{Value: v})
		default:
			panic(fmt.Sprintf("element.New: unsupported child type %T", c))
		}
	}
	return el
}

// Prop returns a property value and whether it was present.
func (e *Element) Prop(key string) (any, bool) {
	if e == nil || e.Properties == nil {
		return nil, false
	}
	v, ok := e.Properties[key]
	return v, ok
}

// Clone returns a deep copy of the element, including its properties and
// children.
func (e *Element) Clone() (*Element, error) {
	if e == nil {
		return nil, nil
	}
	out := &Element{Type: e.Type}
	if e.Properties != nil {
		props, err := copystructure.Copy(e.Properties)
		if err != nil {
			return nil, fmt.Errorf("failed to copy properties of %q: %w", e.Type, err)
		}
		out.Properties = props.(map[string]any)
	}
	for _, child := range e.Children {
		switch c := child.(type) {
		case *Element:
			cc, err := c.Clone()
			if err != nil {
				return nil, err
			}
			out.Children = append(out.Children, cc)
		case Text:
			out.Children = append(out.Children, c)
		}
	}
	return out, nil
}

// SortedAttrKeys returns the attribute names of a compiled tag in a stable
// order.
func (t *Tag) SortedAttrKeys() []string {
	keys := make([]string, 0, len(t.Attrs))
	for k := range t.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Canonical converts a node into plain maps and slices suitable for stable
// JSON encoding, which is what content hashing relies on.
func Canonical(n Node) any {
	switch v := n.(type) {
	case *Element:
		if v == nil {
			return nil
		}
		children := make([]any, 0, len(v.Children))
		for _, c := range v.Children {
			children = append(children, Canonical(c))
		}
		return map[string]any{
			"type":       v.Type,
			"properties": v.Properties,
			"children":   children,
		}
	case *Tag:
		if v == nil {
			return nil
		}
		out := map[string]any{"tag": v.Name, "attrs": v.Attrs}
		if v.Children != nil {
			children := make([]any, 0, len(v.Children))
			for _, c := range v.Children {
				children = append(children, Canonical(c))
			}
			out["children"] = children
		}
		return out
	case Text:
		return map[string]any{"text": v.Value, "raw": v.Raw}
	default:
		return nil
	}
}
