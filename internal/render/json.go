package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/specialistvlad/stackmark/internal/element"
)

// Hiccup converts t into nested vectors: [tag, attrs, ...children]. Text is a
// plain string; raw text is {"raw": text}. A tag without a body has no
// entries after attrs.
func Hiccup(n element.Node) (any, error) {
	switch v := n.(type) {
	case *element.Tag:
		attrs := v.Attrs
		if attrs == nil {
			attrs = map[string]string{}
		}
		out := []any{v.Name, attrs}
		for _, c := range v.Children {
			h, err := Hiccup(c)
			if err != nil {
				return nil, err
			}
			out = append(out, h)
		}
		return out, nil
	case element.Text:
		if v.Raw {
			return map[string]string{"raw": v.Value}, nil
		}
		return v.Value, nil
	default:
		return nil, fmt.Errorf("cannot render %T as JSON", n)
	}
}

// JSON writes t as indented hiccup JSON.
func JSON(w io.Writer, t *element.Tag) error {
	h, err := Hiccup(t)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(h); err != nil {
		return fmt.Errorf("failed to encode <%s>: %w", t.Name, err)
	}
	return nil
}
