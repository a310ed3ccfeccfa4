// Package invalidate decides which dependency nodes are stale and evicts the
// cached artifacts that belong to them.
package invalidate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/specialistvlad/stackmark/internal/ctxlog"
	"github.com/specialistvlad/stackmark/internal/depgraph"
	"github.com/spf13/afero"
)

// Engine dispatches invalidation requests to registered strategies.
type Engine struct {
	graph *depgraph.Graph
	fs    afero.Fs

	mu         sync.RWMutex
	strategies map[Strategy]SeedFunc
	evictors   map[depgraph.Kind][]Evictor
	clearers   []Clearer
}

// NewEngine creates an engine with every built-in strategy registered.
func NewEngine(g *depgraph.Graph, fs afero.Fs) *Engine {
	e := &Engine{
		graph:      g,
		fs:         fs,
		strategies: make(map[Strategy]SeedFunc),
		evictors:   make(map[depgraph.Kind][]Evictor),
	}
	e.Register(ContentHash, contentHashSeeds)
	e.Register(Timestamp, timestampSeeds)
	e.Register(DependencyBased, dependencySeeds)
	e.Register(Pattern, patternSeeds)
	e.Register(Selective, selectiveSeeds)
	e.Register(Batch, batchSeeds)
	return e
}

// Register adds or replaces a strategy. Global is handled by the engine
// itself and cannot be replaced.
func (e *Engine) Register(s Strategy, fn SeedFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[s] = fn
}

// RegisterEvictor adds an evictor for nodes of one kind.
func (e *Engine) RegisterEvictor(kind depgraph.Kind, ev Evictor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evictors[kind] = append(e.evictors[kind], ev)
}

// RegisterClearer adds a cache emptied by global invalidation.
func (e *Engine) RegisterClearer(c Clearer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearers = append(e.clearers, c)
}

// Graph returns the dependency graph the engine works on.
func (e *Engine) Graph() *depgraph.Graph { return e.graph }

// Fs returns the filesystem used by content-hash and timestamp.
func (e *Engine) Fs() afero.Fs { return e.fs }

// Invalidate resolves req to seed ids, expands them to every transitive
// dependent and evicts all of them. A partially failed batch still evicts the
// parts that resolved and returns the result together with the error.
func (e *Engine) Invalidate(ctx context.Context, req Request) (*Result, error) {
	ctx, logger := ctxlog.With(ctx, "strategy", req.Strategy)

	if req.Strategy == Global {
		return e.global(ctx), nil
	}

	e.mu.RLock()
	fn, ok := e.strategies[req.Strategy]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, req.Strategy)
	}

	seeds, unknown, err := fn(ctx, e, req)
	if err != nil && len(seeds) == 0 {
		return nil, err
	}

	res := e.evict(ctx, seeds)
	res.Strategy = req.Strategy
	res.Metadata.Unknown = unique(unknown)
	logger.Debug("Invalidation complete.", "seeds", len(res.Metadata.Seeds), "invalidated", len(res.Invalidated), "unknown", len(res.Metadata.Unknown))
	return res, err
}

// Expand returns seeds plus every transitive dependent, deduplicated and
// sorted.
func (e *Engine) Expand(seeds []string) []string {
	set := map[string]bool{}
	for _, s := range seeds {
		set[s] = true
		for _, d := range e.graph.TransitiveDependents(s) {
			set[d] = true
		}
	}
	return sortedSet(set)
}

func (e *Engine) evict(ctx context.Context, seeds []string) *Result {
	seeds = unique(seeds)
	all := e.Expand(seeds)

	e.mu.RLock()
	defer e.mu.RUnlock()

	evictions := 0
	for _, id := range all {
		n, ok := e.graph.Node(id)
		if !ok {
			continue
		}
		for _, ev := range e.evictors[n.Kind] {
			ev.Evict(ctx, n)
			evictions++
		}
	}

	if seeds == nil {
		seeds = []string{}
	}
	if all == nil {
		all = []string{}
	}
	return &Result{
		Invalidated: all,
		Metadata: Metadata{
			Seeds:     seeds,
			Expanded:  len(all) - len(seeds),
			Evictions: evictions,
		},
	}
}

func (e *Engine) global(ctx context.Context) *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, c := range e.clearers {
		c.Clear(ctx)
	}

	nodes := e.graph.Nodes()
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	ctxlog.FromContext(ctx).Info("Cleared all caches.", "nodes", len(ids), "caches", len(e.clearers))
	return &Result{
		Invalidated: ids,
		Strategy:    Global,
		Metadata:    Metadata{Seeds: ids, Evictions: len(e.clearers)},
	}
}

func unique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	set := make(map[string]bool, len(in))
	for _, s := range in {
		set[s] = true
	}
	return sortedSet(set)
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
