package render

import (
	"fmt"
	"io"

	"github.com/specialistvlad/stackmark/internal/element"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTML writes t as markup. Attributes are written in sorted order, text is
// escaped unless it is raw.
func HTML(w io.Writer, t *element.Tag) error {
	n, err := toHTMLNode(t)
	if err != nil {
		return err
	}
	if err := html.Render(w, n); err != nil {
		return fmt.Errorf("failed to render <%s>: %w", t.Name, err)
	}
	return nil
}

func toHTMLNode(n element.Node) (*html.Node, error) {
	switch v := n.(type) {
	case *element.Tag:
		out := &html.Node{
			Type:     html.ElementNode,
			Data:     v.Name,
			DataAtom: atom.Lookup([]byte(v.Name)),
		}
		for _, k := range v.SortedAttrKeys() {
			out.Attr = append(out.Attr, html.Attribute{Key: k, Val: v.Attrs[k]})
		}
		for _, c := range v.Children {
			child, err := toHTMLNode(c)
			if err != nil {
				return nil, err
			}
			out.AppendChild(child)
		}
		return out, nil
	case element.Text:
		if v.Raw {
			return &html.Node{Type: html.RawNode, Data: v.Value}, nil
		}
		return &html.Node{Type: html.TextNode, Data: v.Value}, nil
	default:
		return nil, fmt.Errorf("cannot render %T as HTML", n)
	}
}
