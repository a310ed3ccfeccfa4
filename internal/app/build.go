package app

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"

	"github.com/specialistvlad/stackmark/internal/compiler"
	"github.com/specialistvlad/stackmark/internal/ctxlog"
	"github.com/specialistvlad/stackmark/internal/depgraph"
	"github.com/specialistvlad/stackmark/internal/fsutil"
	"github.com/specialistvlad/stackmark/internal/incremental"
	"github.com/specialistvlad/stackmark/internal/platform"
	"github.com/specialistvlad/stackmark/internal/project"
	"github.com/specialistvlad/stackmark/internal/render"
)

// Artifact is what building a node produced. Only components write files.
type Artifact struct {
	Path   string        `msgpack:"path,omitempty"`
	Hash   digest.Digest `msgpack:"hash,omitempty"`
	Format string        `msgpack:"format,omitempty"`
}

// stack is the resolved platform stack shared by every component.
type stack struct {
	configs []*platform.Config
	format  string
	files   []string
}

// prepare registers the project in the graph, resolves the stack and makes
// every component depend on the platform documents it was built from. It
// returns the paths the planner should look at.
func (a *App) prepare(ctx context.Context) (*stack, []string, error) {
	logger := ctxlog.FromContext(ctx)

	p, err := project.Load(ctx, a.fs, a.config.ProjectDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load project: %w", err)
	}
	a.project = p
	if err := a.project.Register(a.graph); err != nil {
		return nil, nil, fmt.Errorf("failed to register project: %w", err)
	}

	a.evictStalePlatforms(ctx)

	m := a.project.Manifest
	configs, err := a.resolver.ResolveStack(ctx, append(append([]string(nil), m.Platforms...), m.Styling...), a.config.ProjectDir)
	if err != nil {
		return nil, nil, err
	}
	requested := a.config.OutputFormat
	if requested == "" {
		requested = m.OutputFormat
	}
	format, err := platform.OutputFormat(configs, requested)
	if err != nil {
		return nil, nil, err
	}

	seen := map[string]bool{}
	st := &stack{configs: configs, format: format}
	for _, c := range configs {
		for _, f := range c.Files {
			if !seen[f] {
				seen[f] = true
				st.files = append(st.files, f)
			}
		}
	}
	sort.Strings(st.files)
	a.stackFiles = st.files

	for _, name := range a.project.ComponentNames() {
		id := depgraph.ComponentID(name)
		for _, f := range st.files {
			if err := a.graph.AddEdge(id, depgraph.FileID(f)); err != nil {
				return nil, nil, err
			}
		}
	}

	// Files the graph knows about but the project no longer lists must be
	// planned too, so their deletion is noticed.
	paths := map[string]bool{}
	for _, path := range append(a.project.Files(), st.files...) {
		paths[path] = true
	}
	for _, n := range a.graph.NodesOfKind(depgraph.KindFile) {
		paths[n.Meta.Path] = true
	}
	out := make([]string, 0, len(paths))
	for path := range paths {
		out = append(out, path)
	}
	sort.Strings(out)

	logger.Debug("Project prepared.", "format", format, "platform_files", len(st.files), "tracked_files", len(out))
	return st, out, nil
}

// evictStalePlatforms forgets memoized configs built from platform documents
// that changed since the graph last recorded them, so the stack resolved next
// reflects the edit.
func (a *App) evictStalePlatforms(ctx context.Context) {
	for _, path := range a.stackFiles {
		n, ok := a.graph.Node(depgraph.FileID(path))
		if !ok || n.Meta.ContentHash == "" {
			continue
		}
		obs, err := fsutil.Observe(a.fs, path)
		if err == nil && obs.Exists && obs.Hash == n.Meta.ContentHash {
			continue
		}
		ctxlog.FromContext(ctx).Debug("Platform document changed, resolving the stack again.", "path", path)
		a.resolver.Evict(ctx, n)
	}
}

// options turns the configuration into plan options. Components whose
// output file is missing are forced so a cached fingerprint cannot skip them.
func (a *App) options(st *stack) incremental.Options {
	opts := incremental.Options{
		Comparator: incremental.Comparator(a.config.Comparator),
		Force:      append([]string(nil), a.config.Force...),
	}
	for _, name := range a.project.ComponentNames() {
		if ok, _ := afero.Exists(a.fs, a.outputPath(name, st.format)); !ok {
			opts.Force = append(opts.Force, depgraph.ComponentID(name))
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for id := range a.pending {
		if a.graph.Has(id) {
			opts.Force = append(opts.Force, id)
		}
	}
	sort.Strings(opts.Force)
	return opts
}

// Plan reports what a build would do without doing it.
func (a *App) Plan(ctx context.Context) (*incremental.Plan, error) {
	ctx = a.withLogger(ctx)
	st, paths, err := a.prepare(ctx)
	if err != nil {
		return nil, err
	}
	return a.builder.Plan(ctx, paths, a.options(st))
}

// Build runs an incremental build and writes outputs under the project's
// out_dir. Node failures are reported in the returned report and as an
// error.
func (a *App) Build(ctx context.Context) (*incremental.Report, error) {
	ctx = a.withLogger(ctx)
	logger := ctxlog.FromContext(ctx)
	logger.Info("Starting build...", "project", a.project.Manifest.Name)

	st, paths, err := a.prepare(ctx)
	if err != nil {
		return nil, err
	}

	opts := a.options(st)
	report, err := a.builder.Build(ctx, paths, opts, func(ctx context.Context, n depgraph.Node) (Artifact, error) {
		return a.compileNode(ctx, n, st)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to plan build: %w", err)
	}
	a.mu.Lock()
	a.pending = map[string]bool{}
	a.mu.Unlock()

	a.observeCaches()
	if a.config.MetricsOut != "" {
		if err := a.metrics.WriteFile(a.fs, a.config.MetricsOut); err != nil {
			logger.Warn("Failed to write metrics.", "path", a.config.MetricsOut, "error", err)
		}
	}

	if err := report.Err(); err != nil {
		return report, fmt.Errorf("build failed: %w", err)
	}
	return report, nil
}

func (a *App) compileNode(ctx context.Context, n depgraph.Node, st *stack) (Artifact, error) {
	if n.Kind != depgraph.KindComponent {
		return Artifact{}, nil
	}
	name := n.Meta.Component

	el, err := a.project.Expand(name)
	if err != nil {
		return Artifact{}, err
	}
	tag, err := a.compiler.Compile(ctx, el, a.compileContext(name))
	if err != nil {
		return Artifact{}, err
	}

	var buf bytes.Buffer
	if err := render.Render(&buf, st.format, tag); err != nil {
		return Artifact{}, err
	}

	path := a.outputPath(name, st.format)
	if err := a.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Artifact{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := afero.WriteFile(a.fs, path, buf.Bytes(), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("failed to write %s: %w", path, err)
	}
	ctxlog.FromContext(ctx).Debug("Wrote component output.", "component", name, "path", path)
	return Artifact{Path: path, Hash: digest.FromBytes(buf.Bytes()), Format: st.format}, nil
}

// reuse is called for skipped nodes. A component output edited by hand is
// reported rather than silently kept.
func (a *App) reuse(ctx context.Context, n depgraph.Node, art Artifact) error {
	if art.Path == "" {
		return nil
	}
	b, err := afero.ReadFile(a.fs, art.Path)
	if err != nil {
		return fmt.Errorf("cached output of %s is unreadable: %w", n.ID, err)
	}
	if digest.FromBytes(b) != art.Hash {
		ctxlog.FromContext(ctx).Warn("Output changed since it was built.", "nodeID", n.ID, "path", art.Path)
	}
	return nil
}

func (a *App) compileContext(component string) compiler.Context {
	m := a.project.Manifest
	return compiler.Context{
		Platforms:       m.Platforms,
		StylingStack:    m.Styling,
		HierarchyLevels: m.HierarchyLevels,
		Tokens:          a.project.Tokens.Flat,
		Vars:            m.Vars,
		ProjectContext:  a.config.ProjectDir,
		Component:       component,
	}
}

func (a *App) outputPath(component, format string) string {
	dir := a.project.Manifest.OutDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(a.config.ProjectDir, dir)
	}
	return filepath.Join(dir, component+render.Ext(format))
}

func (a *App) observeCaches() {
	a.metrics.ObserveCache("compiled", a.compiler.Stats())
	a.metrics.ObserveCache("builds", a.builds.Stats())
	a.metrics.ObserveCache("platforms", a.resolver.Stats())
}

// withLogger makes sure ctx carries the app's logger.
func (a *App) withLogger(ctx context.Context) context.Context {
	if ctx == nil {
		return a.ctx
	}
	return ctxlog.WithLogger(ctx, a.logger)
}
