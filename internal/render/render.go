// Package render serializes compiled trees for downstream consumers.
package render

import (
	"errors"
	"fmt"
	"io"

	"github.com/specialistvlad/stackmark/internal/element"
)

// Supported output formats.
const (
	FormatHTML = "html"
	FormatJSON = "json"
)

// ErrUnknownFormat is returned for formats without a renderer.
var ErrUnknownFormat = errors.New("unknown output format")

// Ext returns the file extension for a format.
func Ext(format string) string {
	switch format {
	case FormatJSON:
		return ".json"
	default:
		return ".html"
	}
}

// Render writes t in the given format.
func Render(w io.Writer, format string, t *element.Tag) error {
	switch format {
	case FormatHTML:
		return HTML(w, t)
	case FormatJSON:
		return JSON(w, t)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
