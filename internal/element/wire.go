package element

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// wireNode is the flat msgpack representation of a compiled node. Tags and
// text share the struct and are told apart by Kind.
type wireNode struct {
	Kind     string            `msgpack:"k"`
	Name     string            `msgpack:"n,omitempty"`
	Attrs    map[string]string `msgpack:"a,omitempty"`
	HasBody  bool              `msgpack:"b,omitempty"`
	Children []wireNode        `msgpack:"c,omitempty"`
	Text     string            `msgpack:"t,omitempty"`
	Raw      bool              `msgpack:"r,omitempty"`
}

const (
	wireTag  = "tag"
	wireText = "text"
)

var (
	_ msgpack.CustomEncoder = (*Tag)(nil)
	_ msgpack.CustomDecoder = (*Tag)(nil)
)

// EncodeMsgpack lets compiled trees be stored in the disk cache.
func (t *Tag) EncodeMsgpack(enc *msgpack.Encoder) error {
	w, err := toWire(t)
	if err != nil {
		return err
	}
	return enc.Encode(&w)
}

// DecodeMsgpack restores a tree written by EncodeMsgpack.
func (t *Tag) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w wireNode
	if err := dec.Decode(&w); err != nil {
		return err
	}
	n, err := fromWire(w)
	if err != nil {
		return err
	}
	tag, ok := n.(*Tag)
	if !ok {
		return fmt.Errorf("element: expected tag on the wire, got %q", w.Kind)
	}
	*t = *tag
	return nil
}

func toWire(n Node) (wireNode, error) {
	switch v := n.(type) {
	case *Tag:
		w := wireNode{Kind: wireTag, Name: v.Name, Attrs: v.Attrs, HasBody: v.Children != nil}
		for _, c := range v.Children {
			cw, err := toWire(c)
			if err != nil {
				return wireNode{}, err
			}
			w.Children = append(w.Children, cw)
		}
		return w, nil
	case Text:
		return wireNode{Kind: wireText, Text: v.Value, Raw: v.Raw}, nil
	default:
		return wireNode{}, fmt.Errorf("element: cannot encode %T", n)
	}
}

func fromWire(w wireNode) (Node, error) {
	switch w.Kind {
	case wireTag:
		t := &Tag{Name: w.Name, Attrs: w.Attrs}
		if t.Attrs == nil {
			t.Attrs = map[string]string{}
		}
		if w.HasBody {
			t.Children = make([]Node, 0, len(w.Children))
		}
		for _, cw := range w.Children {
			c, err := fromWire(cw)
			if err != nil {
				return nil, err
			}
			t.Children = append(t.Children, c)
		}
		return t, nil
	case wireText:
		return Text{Value: w.Text, Raw: w.Raw}, nil
	default:
		return nil, fmt.Errorf("element: unknown wire kind %q", w.Kind)
	}
}
