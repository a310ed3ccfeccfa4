package project

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/spf13/afero"

	"github.com/specialistvlad/stackmark/internal/hclutil"
)

// Manifest is the project "name" block of stackmark.hcl.
type Manifest struct {
	// Name is the block label.
	Name            string
	Platforms       []string          `hcl:"platforms"`
	Styling         []string          `hcl:"styling,optional"`
	HierarchyLevels []string          `hcl:"hierarchy_levels,optional"`
	OutputFormat    string            `hcl:"output_format,optional"`
	OutDir          string            `hcl:"out_dir,optional"`
	PlatformPaths   []string          `hcl:"platform_paths,optional"`
	Components      []string          `hcl:"components,optional"`
	Vars            map[string]string `hcl:"vars,optional"`
}

// DefaultComponents is used when the manifest names no component patterns.
var DefaultComponents = []string{ComponentsDir + "/**/*.hcl"}

// LoadManifest reads the project block of the file at path.
func LoadManifest(fs afero.Fs, path string) (*Manifest, error) {
	body, err := parseFile(fs, path)
	if err != nil {
		return nil, err
	}

	block, diags := hclutil.FindUniqueBlock(body.Blocks.AsHCLBlocks(), "project")
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", path, diags)
	}
	if block == nil {
		return nil, fmt.Errorf("%s: missing project block", path)
	}
	if len(block.Labels) != 1 {
		return nil, fmt.Errorf("%s: project block needs exactly one name label", path)
	}

	var m Manifest
	if diags := gohcl.DecodeBody(block.Body, nil, &m); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", path, diags)
	}
	m.Name = block.Labels[0]
	if len(m.Platforms) == 0 {
		return nil, fmt.Errorf("%s: project %q lists no platforms", path, m.Name)
	}
	if len(m.Components) == 0 {
		m.Components = DefaultComponents
	}
	if m.OutDir == "" {
		m.OutDir = "dist"
	}
	return &m, nil
}

func parseFile(fs afero.Fs, path string) (*hclsyntax.Body, error) {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	f, diags := hclsyntax.ParseConfig(src, path, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return f.Body.(*hclsyntax.Body), nil
}
