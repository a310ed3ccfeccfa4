package compiler

import (
	"context"
	"sync"

	"github.com/specialistvlad/stackmark/internal/cache"
	"github.com/specialistvlad/stackmark/internal/ctxlog"
	"github.com/specialistvlad/stackmark/internal/depgraph"
	"github.com/specialistvlad/stackmark/internal/element"
)

// Cached memoizes compiled trees by content hash. Cached trees are shared and
// must not be modified by callers.
type Cached struct {
	inner Interface
	cache cache.Cache[*element.Tag]

	mu sync.Mutex
	// byComponent maps a component name to the cache keys compiled for it.
	byComponent map[string]map[string]struct{}
}

var _ Interface = (*Cached)(nil)

// NewCached wraps inner with c.
func NewCached(inner Interface, c cache.Cache[*element.Tag]) *Cached {
	return &Cached{inner: inner, cache: c, byComponent: make(map[string]map[string]struct{})}
}

func (c *Cached) Compile(ctx context.Context, el *element.Element, cctx Context) (*element.Tag, error) {
	logger := ctxlog.FromContext(ctx)

	key, err := cache.Key(el, cctx.KeyContext())
	if err != nil {
		logger.Warn("Failed to compute cache key, compiling uncached.", "type", el.Type, "error", err)
		return c.inner.Compile(ctx, el, cctx)
	}

	if tag, ok := c.cache.Get(ctx, key); ok {
		logger.Debug("Compile cache hit.", "type", el.Type, "key", key)
		c.remember(cctx.Component, key)
		return tag, nil
	}

	tag, err := c.inner.Compile(ctx, el, cctx)
	if err != nil {
		return nil, err
	}
	c.cache.Put(ctx, key, tag)
	c.remember(cctx.Component, key)
	return tag, nil
}

func (c *Cached) remember(component, key string) {
	if component == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	keys, ok := c.byComponent[component]
	if !ok {
		keys = make(map[string]struct{})
		c.byComponent[component] = keys
	}
	keys[key] = struct{}{}
}

// Evict drops the cached trees of a component node.
func (c *Cached) Evict(ctx context.Context, n depgraph.Node) {
	if n.Kind != depgraph.KindComponent {
		return
	}
	name := n.Meta.Component
	if name == "" {
		_, name, _ = depgraph.SplitID(n.ID)
	}

	c.mu.Lock()
	keys := c.byComponent[name]
	delete(c.byComponent, name)
	c.mu.Unlock()

	for key := range keys {
		c.cache.Invalidate(ctx, key)
	}
	ctxlog.FromContext(ctx).Debug("Evicted compiled trees.", "component", name, "count", len(keys))
}

// Clear drops every cached tree.
func (c *Cached) Clear(ctx context.Context) {
	c.mu.Lock()
	c.byComponent = make(map[string]map[string]struct{})
	c.mu.Unlock()
	c.cache.Clear(ctx)
}

// Stats reports the underlying cache counters.
func (c *Cached) Stats() cache.Stats {
	return c.cache.Stats()
}
