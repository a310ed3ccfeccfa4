package app

import (
	"context"
	"path/filepath"

	"github.com/specialistvlad/stackmark/internal/ctxlog"
	"github.com/specialistvlad/stackmark/internal/depgraph"
	"github.com/specialistvlad/stackmark/internal/invalidate"
)

// Invalidate drops cached state for the given targets. Targets are node ids,
// file paths, glob patterns or "all"; see invalidate.Engine.Auto.
func (a *App) Invalidate(ctx context.Context, targets ...string) (*invalidate.Result, error) {
	ctx = a.withLogger(ctx)
	if _, _, err := a.prepare(ctx); err != nil {
		return nil, err
	}

	res, err := a.engine.Auto(ctx, a.normalizeTargets(targets)...)
	a.remember(res)
	if res != nil {
		ctxlog.FromContext(ctx).Info("Invalidated cache entries.", "strategy", res.Strategy, "count", len(res.Invalidated), "unknown", len(res.Metadata.Unknown))
	}
	return res, err
}

// InvalidateRequest runs an explicit invalidation request. Targets are
// normalized like Invalidate's.
func (a *App) InvalidateRequest(ctx context.Context, req invalidate.Request) (*invalidate.Result, error) {
	ctx = a.withLogger(ctx)
	if _, _, err := a.prepare(ctx); err != nil {
		return nil, err
	}
	req.Targets = a.normalizeTargets(req.Targets)
	res, err := a.engine.Invalidate(ctx, req)
	a.remember(res)
	return res, err
}

func (a *App) remember(res *invalidate.Result) {
	if res == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range res.Invalidated {
		a.pending[id] = true
	}
}

// normalizeTargets maps bare component names to component ids and paths
// relative to the project directory to the paths the graph records.
func (a *App) normalizeTargets(targets []string) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		switch {
		case a.graph.Has(t):
		case a.graph.Has(depgraph.ComponentID(t)):
			t = depgraph.ComponentID(t)
		case !filepath.IsAbs(t) && a.graph.Has(depgraph.FileID(filepath.Join(a.config.ProjectDir, t))):
			t = filepath.Join(a.config.ProjectDir, t)
		}
		out = append(out, t)
	}
	return out
}
