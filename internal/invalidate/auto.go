package invalidate

import (
	"context"

	"github.com/specialistvlad/stackmark/internal/fsutil"
)

// Auto picks a strategy from free-form targets: "all" or ":all" clears
// everything, glob patterns use Pattern, anything else is DependencyBased.
// Mixed targets become one Batch.
func (e *Engine) Auto(ctx context.Context, what ...string) (*Result, error) {
	var patterns, plain []string
	for _, w := range what {
		switch {
		case w == "all" || w == ":all":
			return e.Invalidate(ctx, Request{Strategy: Global})
		case fsutil.HasMeta(w):
			patterns = append(patterns, w)
		default:
			plain = append(plain, w)
		}
	}

	switch {
	case len(patterns) > 0 && len(plain) > 0:
		return e.Invalidate(ctx, Request{Strategy: Batch, Parts: []Request{
			{Strategy: Pattern, Targets: patterns},
			{Strategy: DependencyBased, Targets: plain},
		}})
	case len(patterns) > 0:
		return e.Invalidate(ctx, Request{Strategy: Pattern, Targets: patterns})
	default:
		return e.Invalidate(ctx, Request{Strategy: DependencyBased, Targets: plain})
	}
}
