package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/specialistvlad/stackmark/internal/cache"
	"github.com/specialistvlad/stackmark/internal/compiler"
	"github.com/specialistvlad/stackmark/internal/ctxlog"
	"github.com/specialistvlad/stackmark/internal/depgraph"
	"github.com/specialistvlad/stackmark/internal/element"
	"github.com/specialistvlad/stackmark/internal/incremental"
	"github.com/specialistvlad/stackmark/internal/invalidate"
	"github.com/specialistvlad/stackmark/internal/metrics"
	"github.com/specialistvlad/stackmark/internal/platform"
	"github.com/specialistvlad/stackmark/internal/project"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle. It owns the dependency graph and every cache.
type App struct {
	ctx    context.Context
	outW   io.Writer
	fs     afero.Fs
	logger *slog.Logger
	config *Config

	project  *project.Project
	graph    *depgraph.Graph
	resolver *platform.Resolver
	compiled cache.Cache[*element.Tag]
	compiler *compiler.Cached
	builds   cache.Cache[incremental.Entry[Artifact]]
	engine   *invalidate.Engine
	builder  *incremental.Builder[Artifact]
	metrics  *metrics.Metrics

	mu sync.Mutex
	// pending holds ids invalidated since the last build; they are forced
	// into the next plan.
	pending map[string]bool
	// stackFiles are the platform documents of the last resolved stack.
	stackFiles []string
}

// NewApp loads the project and wires every component. Results are written to
// outW and logs to logW.
func NewApp(outW, logW io.Writer, fs afero.Fs, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	p, err := project.Load(ctx, fs, cfg.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	a := &App{
		ctx:     ctx,
		outW:    outW,
		fs:      fs,
		logger:  logger,
		config:  cfg,
		project: p,
		graph:   depgraph.New(),
		metrics: metrics.New(),
		pending: map[string]bool{},
	}

	var shared []string
	for _, dir := range p.Manifest.PlatformPaths {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cfg.ProjectDir, dir)
		}
		shared = append(shared, dir)
	}
	shared = append(shared, cfg.PlatformPaths...)
	logger.Debug("Platform search path configured.", "shared", shared)

	a.resolver, err = platform.NewResolver(platform.NewDirSource(fs, shared...), platform.ResolverOptions{
		Graph:    a.graph,
		MemoSize: cfg.CacheSize,
		MemoTTL:  cfg.CacheTTL,
	})
	if err != nil {
		return nil, err
	}

	// Compiled trees stay in memory: their key leaves out platform content,
	// which only in-process eviction accounts for.
	a.compiled, err = cache.NewMemory[*element.Tag](cache.MemoryOptions{MaxSize: cfg.CacheSize, TTL: cfg.CacheTTL})
	if err != nil {
		return nil, err
	}
	a.compiler = compiler.NewCached(compiler.New(a.resolver), a.compiled)

	a.builds, err = newCache[incremental.Entry[Artifact]](fs, cfg, "builds")
	if err != nil {
		return nil, err
	}

	a.engine = invalidate.NewEngine(a.graph, fs)
	a.engine.RegisterEvictor(depgraph.KindFile, a.resolver)
	a.engine.RegisterEvictor(depgraph.KindComponent, a.compiler)
	for _, kind := range []depgraph.Kind{depgraph.KindFile, depgraph.KindToken, depgraph.KindComponent} {
		a.engine.RegisterEvictor(kind, invalidate.EvictorFunc(func(ctx context.Context, n depgraph.Node) {
			a.builds.Invalidate(ctx, n.ID)
		}))
	}
	a.engine.RegisterClearer(a.resolver)
	a.engine.RegisterClearer(a.compiler)
	a.engine.RegisterClearer(a.builds)

	executor := incremental.NewExecutor(a.graph, a.builds, incremental.ExecutorOptions[Artifact]{
		OnSkip:   a.reuse,
		Observer: a.metrics,
	})
	a.builder = incremental.NewBuilder(incremental.NewPlanner(a.graph, fs), a.engine, executor)

	logger.Debug("App wired.", "project", p.Manifest.Name, "cache_dir", cfg.CacheDir, "disk_cache", !cfg.NoDiskCache)
	return a, nil
}

// newCache builds a memory cache, layered over a disk cache under
// <CacheDir>/<name> unless disk caching is off.
func newCache[V any](fs afero.Fs, cfg *Config, name string) (cache.Cache[V], error) {
	mem, err := cache.NewMemory[V](cache.MemoryOptions{MaxSize: cfg.CacheSize, TTL: cfg.CacheTTL})
	if err != nil {
		return nil, err
	}
	if cfg.NoDiskCache {
		return mem, nil
	}
	disk := cache.NewDisk[V](cache.DiskOptions{Fs: fs, Root: filepath.Join(cfg.CacheDir, name), TTL: cfg.CacheTTL})
	return cache.NewLayered[V](mem, disk), nil
}

// Context returns the app's base context carrying its logger.
func (a *App) Context() context.Context { return a.ctx }

// Graph returns the dependency graph. This is primarily for testing.
func (a *App) Graph() *depgraph.Graph { return a.graph }

// Project returns the loaded project.
func (a *App) Project() *project.Project { return a.project }

// Metrics returns the app's metrics.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }
