package testutil

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// Site is the project directory of the fixture written by NewSite.
const Site = "/site"

// SiteFiles returns a small project: two components sharing tokens, an html
// platform with element contracts and a css platform contributing a style
// extractor. Keys are relative to the project directory.
func SiteFiles() map[string]string {
	return map[string]string{
		"stackmark.hcl": `
project "demo" {
  platforms = ["html"]
  styling   = ["css"]
}
`,
		"tokens.hcl": `
tokens {
  color = { primary = "#00f" }
  space = { md = "1rem" }
}
`,
		"components/button.hcl": `
component "button" {
  element "button" {
    background = token.color.primary
    padding    = token.space.md
    text { value = "Click" }
  }
}
`,
		"components/card.hcl": `
component "card" {
  element "section" {
    class = "card"
    element "button" {
      label = "Go"
    }
  }
}
`,
		"platforms/html.hcl": `
platform "html" {
  output_formats        = ["html", "json"]
  default_output_format = "html"

  element "button" {
    tag = "button"
  }
  element "section" {
    tag = "section"
  }
  element "image" {
    tag = "img"
  }
}
`,
		"platforms/css.hcl": `
platform "css" {
  extractor "styles" {
    type          = "property-selector"
    keys          = ["background", "padding"]
    output_format = "css"
  }
}
`,
	}
}

// WriteFiles writes files below root, creating directories as needed.
func WriteFiles(t *testing.T, fs afero.Fs, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
}

// NewSite returns an in-memory filesystem holding SiteFiles under Site.
func NewSite(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	WriteFiles(t, fs, Site, SiteFiles())
	return fs
}
