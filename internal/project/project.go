// Package project loads a stackmark project: the stackmark.hcl manifest, the
// optional tokens.hcl design tokens and the component documents. Component
// properties are HCL expressions that may read token.* and var.*; the token
// references each component reads are recorded so the dependency graph can
// connect tokens to the components using them.
package project

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/specialistvlad/stackmark/internal/ctxlog"
	"github.com/specialistvlad/stackmark/internal/depgraph"
	"github.com/specialistvlad/stackmark/internal/element"
	"github.com/specialistvlad/stackmark/internal/fsutil"
)

const (
	ManifestFile  = "stackmark.hcl"
	TokensFile    = "tokens.hcl"
	ComponentsDir = "components"
)

// Project is a loaded project directory.
type Project struct {
	Dir          string
	ManifestPath string
	Manifest     *Manifest
	// TokensPath is empty when the project has no tokens file.
	TokensPath string
	Tokens     *Tokens
	Components map[string]*Component
}

// Load reads the project rooted at dir. Component documents are all read
// even when some fail; their errors are returned together.
func Load(ctx context.Context, fs afero.Fs, dir string) (*Project, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading project...", "dir", dir)

	p := &Project{
		Dir:          dir,
		ManifestPath: filepath.Join(dir, ManifestFile),
		Tokens:       EmptyTokens(),
		Components:   map[string]*Component{},
	}

	m, err := LoadManifest(fs, p.ManifestPath)
	if err != nil {
		return nil, err
	}
	p.Manifest = m

	tokensPath := filepath.Join(dir, TokensFile)
	if ok, _ := afero.Exists(fs, tokensPath); ok {
		t, err := LoadTokens(fs, tokensPath)
		if err != nil {
			return nil, err
		}
		p.TokensPath = tokensPath
		p.Tokens = t
	}

	files, err := fsutil.Glob(fs, dir, m.Components...)
	if err != nil {
		return nil, err
	}

	ectx := p.Tokens.EvalContext(m.Vars)
	var result *multierror.Error
	for _, path := range files {
		comps, err := LoadComponents(fs, path, ectx)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for _, c := range comps {
			if prev, ok := p.Components[c.Name]; ok {
				result = multierror.Append(result, fmt.Errorf("component %q defined in both %s and %s", c.Name, prev.Path, c.Path))
				continue
			}
			p.Components[c.Name] = c
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	for _, c := range p.Components {
		c.Uses = p.uses(c.Root)
	}

	logger.Info("Project loaded.", "name", m.Name, "components", len(p.Components), "tokens", len(p.Tokens.Flat))
	return p, nil
}

// ComponentNames returns the component names sorted.
func (p *Project) ComponentNames() []string {
	names := make([]string, 0, len(p.Components))
	for n := range p.Components {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Files returns every project file the build tracks, sorted.
func (p *Project) Files() []string {
	files := []string{p.ManifestPath}
	if p.TokensPath != "" {
		files = append(files, p.TokensPath)
	}
	for _, c := range p.Components {
		files = append(files, c.Path)
	}
	sort.Strings(files)
	return compact(files)
}

// uses lists the component names referenced as element types below root.
func (p *Project) uses(root *element.Element) []string {
	seen := map[string]bool{}
	var walk func(el *element.Element, top bool)
	walk = func(el *element.Element, top bool) {
		if _, ok := p.Components[el.Type]; ok && !top {
			seen[el.Type] = true
		}
		for _, c := range el.Children {
			if ce, ok := c.(*element.Element); ok {
				walk(ce, false)
			}
		}
	}
	walk(root, true)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Expand returns a copy of the named component's tree with every element
// whose type names another component replaced by that component's root.
// Instance properties override the root's; instance children follow the
// root's children.
func (p *Project) Expand(name string) (*element.Element, error) {
	c, ok := p.Components[name]
	if !ok {
		return nil, fmt.Errorf("component %q not found", name)
	}
	return p.expand(c.Root, []string{name})
}

func (p *Project) expand(el *element.Element, path []string) (*element.Element, error) {
	out, err := el.Clone()
	if err != nil {
		return nil, err
	}

	var children []element.Node
	for _, child := range out.Children {
		ce, ok := child.(*element.Element)
		if !ok {
			children = append(children, child)
			continue
		}
		expanded, err := p.expandChild(ce, path)
		if err != nil {
			return nil, err
		}
		children = append(children, expanded)
	}
	out.Children = children
	return out, nil
}

func (p *Project) expandChild(el *element.Element, path []string) (*element.Element, error) {
	c, ok := p.Components[el.Type]
	if !ok {
		return p.expand(el, path)
	}
	for _, seen := range path {
		if seen == c.Name {
			return nil, fmt.Errorf("component cycle: %v -> %s", path, c.Name)
		}
	}

	inner, err := p.expand(c.Root, append(append([]string(nil), path...), c.Name))
	if err != nil {
		return nil, err
	}
	if inner.Properties == nil {
		inner.Properties = map[string]any{}
	}
	for k, v := range el.Properties {
		inner.Properties[k] = v
	}
	instance, err := p.expand(&element.Element{Type: el.Type, Children: el.Children}, path)
	if err != nil {
		return nil, err
	}
	inner.Children = append(inner.Children, instance.Children...)
	return inner, nil
}

// Register records the project in g: a node per tracked file, token and
// component, components depending on their document, the manifest, every
// token they read and every component they use; tokens depend on the tokens
// file. Tokens and components that disappeared since the last registration
// are removed.
func (p *Project) Register(g *depgraph.Graph) error {
	for _, path := range p.Files() {
		g.EnsureNode(depgraph.Node{ID: depgraph.FileID(path), Kind: depgraph.KindFile, Meta: depgraph.Meta{Path: path}})
	}

	tokenIDs := map[string]bool{}
	for _, ref := range p.Tokens.Refs() {
		id := depgraph.TokenID(ref)
		tokenIDs[id] = true
		g.AddNode(depgraph.Node{ID: id, Kind: depgraph.KindToken, Meta: depgraph.Meta{Reference: ref, Value: p.Tokens.Flat[ref]}})
		g.RemoveEdgesFrom(id)
		if err := g.AddEdge(id, depgraph.FileID(p.TokensPath)); err != nil {
			return err
		}
	}
	for _, n := range g.NodesOfKind(depgraph.KindToken) {
		if !tokenIDs[n.ID] {
			g.RemoveNode(n.ID)
		}
	}

	for _, name := range p.ComponentNames() {
		c := p.Components[name]
		id := depgraph.ComponentID(name)
		g.AddNode(depgraph.Node{ID: id, Kind: depgraph.KindComponent, Meta: depgraph.Meta{Component: name, Tokens: c.Tokens}})
	}
	for _, n := range g.NodesOfKind(depgraph.KindComponent) {
		if _, ok := p.Components[n.Meta.Component]; !ok {
			g.RemoveNode(n.ID)
		}
	}

	var result *multierror.Error
	for _, name := range p.ComponentNames() {
		c := p.Components[name]
		id := depgraph.ComponentID(name)
		g.RemoveEdgesFrom(id)

		deps := []string{depgraph.FileID(c.Path), depgraph.FileID(p.ManifestPath)}
		for _, ref := range c.Tokens {
			for _, leaf := range p.Tokens.Matching(ref) {
				deps = append(deps, depgraph.TokenID(leaf))
			}
		}
		for _, u := range c.Uses {
			deps = append(deps, depgraph.ComponentID(u))
		}
		for _, dep := range compact(deps) {
			if err := g.AddEdge(id, dep); err != nil {
				result = multierror.Append(result, fmt.Errorf("component %q: %w", name, err))
			}
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	return g.DetectCycles()
}

// compact drops duplicates, keeping first occurrences.
func compact(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
