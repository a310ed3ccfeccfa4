package invalidate

import (
	"context"
	"errors"
	"time"

	"github.com/specialistvlad/stackmark/internal/depgraph"
)

// Strategy selects how a request is turned into node ids.
type Strategy string

const (
	ContentHash     Strategy = "content-hash"
	Timestamp       Strategy = "timestamp"
	DependencyBased Strategy = "dependency-based"
	Pattern         Strategy = "pattern"
	Global          Strategy = "global"
	Selective       Strategy = "selective"
	Batch           Strategy = "batch"
)

// ErrUnknownStrategy is returned for strategies nobody registered.
var ErrUnknownStrategy = errors.New("unknown invalidation strategy")

// Request describes what to invalidate. Which fields apply depends on the
// strategy.
type Request struct {
	Strategy Strategy `json:"strategy"`
	// Targets are paths (content-hash, timestamp), node ids or paths
	// (dependency-based) or patterns (pattern).
	Targets []string `json:"targets,omitempty"`
	// Since overrides the recorded modification time for timestamp.
	Since time.Time `json:"since,omitempty"`

	// selective
	Files      []string `json:"files,omitempty"`
	Tokens     []string `json:"tokens,omitempty"`
	Components []string `json:"components,omitempty"`

	// batch
	Parts []Request `json:"parts,omitempty"`
}

// Metadata explains a result.
type Metadata struct {
	// Seeds are the ids the strategy selected before expansion.
	Seeds []string `json:"seeds"`
	// Unknown lists targets that matched no node.
	Unknown []string `json:"unknown,omitempty"`
	// Expanded counts ids added by following dependents.
	Expanded int `json:"expanded"`
	// Evictions counts evictor calls.
	Evictions int `json:"evictions"`
}

// Result lists every invalidated node id, sorted.
type Result struct {
	Invalidated []string `json:"invalidated"`
	Strategy    Strategy `json:"strategy"`
	Metadata    Metadata `json:"metadata"`
}

// Evictor drops whatever a cache holds for a node.
type Evictor interface {
	Evict(ctx context.Context, n depgraph.Node)
}

// EvictorFunc adapts a function to Evictor.
type EvictorFunc func(ctx context.Context, n depgraph.Node)

func (f EvictorFunc) Evict(ctx context.Context, n depgraph.Node) { f(ctx, n) }

// Clearer empties a cache entirely on global invalidation.
type Clearer interface {
	Clear(ctx context.Context)
}

// SeedFunc resolves a request into the node ids to start from, plus the
// targets that matched nothing.
type SeedFunc func(ctx context.Context, e *Engine, req Request) (seeds, unknown []string, err error)
