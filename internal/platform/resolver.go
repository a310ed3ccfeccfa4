// Package platform loads platform rule-sets, resolves their extends chains and
// memoizes the merged result.
package platform

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/specialistvlad/stackmark/internal/cache"
	"github.com/specialistvlad/stackmark/internal/ctxlog"
	"github.com/specialistvlad/stackmark/internal/depgraph"
	"golang.org/x/sync/singleflight"
)

// DefaultMemoSize bounds the number of memoized configs.
const DefaultMemoSize = 256

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// Graph, when set, receives a file node for every document read.
	Graph *depgraph.Graph
	// MemoSize bounds the resolved config cache.
	MemoSize int
	// MemoTTL expires memoized configs; zero keeps them until evicted.
	MemoTTL time.Duration
}

// Resolver turns platform names into fully merged configs.
type Resolver struct {
	source Source
	graph  *depgraph.Graph
	memo   *cache.Memory[*Config]
	group  singleflight.Group
}

// NewResolver creates a resolver over a document source.
func NewResolver(source Source, opts ResolverOptions) (*Resolver, error) {
	if opts.MemoSize <= 0 {
		opts.MemoSize = DefaultMemoSize
	}
	memo, err := cache.NewMemory[*Config](cache.MemoryOptions{MaxSize: opts.MemoSize, TTL: opts.MemoTTL})
	if err != nil {
		return nil, fmt.Errorf("failed to create platform memo: %w", err)
	}
	return &Resolver{source: source, graph: opts.Graph, memo: memo}, nil
}

func memoKey(name, projectContext string) string {
	return projectContext + "\x00" + name
}

// Resolve returns the merged config of a platform. Results are memoized per
// (name, projectContext); concurrent first lookups share one resolution.
func (r *Resolver) Resolve(ctx context.Context, name, projectContext string) (*Config, error) {
	key := memoKey(name, projectContext)
	if cfg, ok := r.memo.Get(ctx, key); ok {
		return cfg, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if cfg, ok := r.memo.Peek(key); ok {
			return cfg, nil
		}
		cfg, err := r.resolve(ctx, name, projectContext)
		if err != nil {
			return nil, err
		}
		r.memo.Put(ctx, key, cfg)
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Config), nil
}

// ResolveStack resolves every name in order.
func (r *Resolver) ResolveStack(ctx context.Context, names []string, projectContext string) ([]*Config, error) {
	configs := make([]*Config, 0, len(names))
	for _, name := range names {
		cfg, err := r.Resolve(ctx, name, projectContext)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve platform %q: %w", name, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (r *Resolver) resolve(ctx context.Context, name, projectContext string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)

	raw, chain, files, err := r.merge(ctx, name, projectContext, nil)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode platform %q: %w", name, err)
	}
	cfg.Name = name
	cfg.Chain = chain
	cfg.Files = files

	if r.graph != nil {
		for _, f := range files {
			r.graph.EnsureNode(depgraph.Node{ID: depgraph.FileID(f), Kind: depgraph.KindFile, Meta: depgraph.Meta{Path: f}})
		}
	}

	logger.Debug("Resolved platform.", "name", name, "chain", chain, "elements", len(cfg.Elements), "extractors", len(cfg.Extractors))
	return cfg, nil
}

// merge walks the extends chain depth first. visiting holds the names on the
// current path and is how cycles are caught.
func (r *Resolver) merge(ctx context.Context, name, projectContext string, visiting []string) (map[string]any, []string, []string, error) {
	if slices.Contains(visiting, name) {
		chain := append(slices.Clone(visiting), name)
		return nil, nil, nil, &ExtensionCycleError{Chain: chain}
	}

	doc, err := r.source.Lookup(ctx, name, projectContext)
	if err != nil {
		return nil, nil, nil, err
	}

	parent := doc.Extends()
	if parent == "" {
		return DeepMerge(nil, doc.Raw), []string{name}, []string{doc.Path}, nil
	}

	base, chain, files, err := r.merge(ctx, parent, projectContext, append(slices.Clone(visiting), name))
	if err != nil {
		return nil, nil, nil, err
	}
	return DeepMerge(base, doc.Raw), append([]string{name}, chain...), append([]string{doc.Path}, files...), nil
}

// Evict forgets every memoized config built from the file node and makes the
// source re-read its documents.
func (r *Resolver) Evict(ctx context.Context, n depgraph.Node) {
	if n.Kind != depgraph.KindFile {
		return
	}
	path := n.Meta.Path
	if path == "" {
		_, path, _ = depgraph.SplitID(n.ID)
	}

	evicted := 0
	for _, key := range r.memo.Keys() {
		cfg, ok := r.memo.Peek(key)
		if !ok || slices.Contains(cfg.Files, path) {
			r.memo.Invalidate(ctx, key)
			evicted++
		}
	}
	r.source.Reset()
	ctxlog.FromContext(ctx).Debug("Evicted platform configs.", "path", path, "count", evicted)
}

// Clear drops every memoized config.
func (r *Resolver) Clear(ctx context.Context) {
	r.memo.Clear(ctx)
	r.source.Reset()
}

// Stats reports the memo cache counters.
func (r *Resolver) Stats() cache.Stats {
	return r.memo.Stats()
}
