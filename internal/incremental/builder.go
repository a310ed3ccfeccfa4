package incremental

import (
	"context"

	"github.com/specialistvlad/stackmark/internal/ctxlog"
	"github.com/specialistvlad/stackmark/internal/depgraph"
	"github.com/specialistvlad/stackmark/internal/invalidate"
)

// Builder plans, invalidates and executes one incremental build.
type Builder[V any] struct {
	planner  *Planner
	engine   *invalidate.Engine
	executor *Executor[V]
}

// NewBuilder combines the three stages. engine may be nil when nothing else
// caches per-node state.
func NewBuilder[V any](p *Planner, engine *invalidate.Engine, ex *Executor[V]) *Builder[V] {
	return &Builder[V]{planner: p, engine: engine, executor: ex}
}

// Plan runs change detection only.
func (b *Builder[V]) Plan(ctx context.Context, paths []string, opts Options) (*Plan, error) {
	return b.planner.Plan(ctx, paths, opts)
}

// Build plans the paths, drops cached state that depends on changed or
// deleted files and executes the plan. The returned error is only set when
// planning fails; node failures are in the report.
func (b *Builder[V]) Build(ctx context.Context, paths []string, opts Options, fn CompileFunc[V]) (*Report, error) {
	logger := ctxlog.FromContext(ctx)

	plan, err := b.planner.Plan(ctx, paths, opts)
	if err != nil {
		return nil, err
	}

	if b.engine != nil {
		seeds := append(plan.Deleted(), fileIDs(plan.Changes.Changed)...)
		if len(seeds) > 0 {
			res, err := b.engine.Invalidate(ctx, invalidate.Request{
				Strategy: invalidate.DependencyBased,
				Targets:  seeds,
			})
			if err != nil {
				logger.Warn("Invalidation before build failed.", "error", err)
			} else {
				logger.Debug("Invalidated before build.", "count", len(res.Invalidated))
			}
		}
	}

	return b.executor.Execute(ctx, plan, fn), nil
}

func fileIDs(paths []string) []string {
	ids := make([]string, 0, len(paths))
	for _, path := range paths {
		ids = append(ids, depgraph.FileID(path))
	}
	return ids
}
