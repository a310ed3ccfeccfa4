package platform

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	yaml "github.com/zclconf/go-cty-yaml"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/specialistvlad/stackmark/internal/hclutil"
)

// Document is one platform as written in a file, before extends is resolved.
// Raw uses the camelCase keys of the YAML/JSON schema regardless of the
// file's format.
type Document struct {
	Name string
	Path string
	Raw  map[string]any
}

// Extends returns the parent platform name, if any.
func (d *Document) Extends() string {
	s, _ := d.Raw["extends"].(string)
	return s
}

// SupportedExt reports whether a file extension is a platform document format.
func SupportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".hcl", ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// ParseDocuments decodes every platform defined in a file. HCL files may hold
// several platform blocks; YAML and JSON files hold exactly one platform,
// named by its name key or else by the file name.
func ParseDocuments(path string, src []byte) ([]*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return parseHCL(path, src)
	case ".yaml", ".yml":
		ty, err := yaml.ImpliedType(src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML file %s: %w", path, err)
		}
		val, err := yaml.Unmarshal(src, ty)
		if err != nil {
			return nil, fmt.Errorf("failed to decode YAML file %s: %w", path, err)
		}
		return rawDocument(path, val)
	case ".json":
		ty, err := ctyjson.ImpliedType(src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse JSON file %s: %w", path, err)
		}
		val, err := ctyjson.Unmarshal(src, ty)
		if err != nil {
			return nil, fmt.Errorf("failed to decode JSON file %s: %w", path, err)
		}
		return rawDocument(path, val)
	default:
		return nil, fmt.Errorf("unsupported platform document %s", path)
	}
}

func rawDocument(path string, val cty.Value) ([]*Document, error) {
	native, err := hclutil.ToNative(val)
	if err != nil {
		return nil, fmt.Errorf("in %s: %w", path, err)
	}
	raw, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("platform document %s must be an object", path)
	}
	name, _ := raw["name"].(string)
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
		raw["name"] = name
	}
	return []*Document{{Name: name, Path: path, Raw: raw}}, nil
}

func parseHCL(path string, src []byte) ([]*Document, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var root hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	docs := make([]*Document, 0, len(root.Platforms))
	for _, p := range root.Platforms {
		docs = append(docs, &Document{Name: p.Name, Path: path, Raw: p.raw()})
	}
	return docs, nil
}
