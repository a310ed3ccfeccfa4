package incremental

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/opencontainers/go-digest"

	"github.com/specialistvlad/stackmark/internal/cache"
	"github.com/specialistvlad/stackmark/internal/ctxlog"
	"github.com/specialistvlad/stackmark/internal/depgraph"
)

// CompileFunc builds one node.
type CompileFunc[V any] func(ctx context.Context, n depgraph.Node) (V, error)

// Entry is what the executor caches per node.
type Entry[V any] struct {
	Fingerprint digest.Digest `msgpack:"fingerprint"`
	Value       V             `msgpack:"value"`
}

// Observer is notified as nodes and runs finish.
type Observer interface {
	NodeFinished(status Status, d time.Duration)
	BuildFinished(stats Stats)
}

// ExecutorOptions configure an Executor.
type ExecutorOptions[V any] struct {
	// OnSkip is called with the cached value of every skipped node. An error
	// fails the node.
	OnSkip   func(ctx context.Context, n depgraph.Node, v V) error
	Observer Observer
}

// Stats summarize a run.
type Stats struct {
	Compiled int           `json:"compiled"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Total    int           `json:"total"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
}

// Report is the outcome of one Execute.
type Report struct {
	RunID       string       `json:"runId"`
	Changes     Changes      `json:"changes"`
	Affected    Affected     `json:"affected"`
	BuildOrder  []string     `json:"buildOrder"`
	CanSkip     []string     `json:"canSkip"`
	MustRebuild []string     `json:"mustRebuild"`
	Compiled    []string     `json:"compiled"`
	Skipped     []string     `json:"skipped"`
	Stats       Stats        `json:"stats"`
	Errors      []*NodeError `json:"errors,omitempty"`
}

// Err aggregates the node errors, or returns nil on success.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, e := range r.Errors {
		result = multierror.Append(result, e)
	}
	return result.ErrorOrNil()
}

// JSON encodes the report with indentation.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Executor runs a plan, reusing cached values whose fingerprint still
// matches.
type Executor[V any] struct {
	graph *depgraph.Graph
	cache cache.Cache[Entry[V]]
	opts  ExecutorOptions[V]
}

// NewExecutor returns an executor storing entries in c.
func NewExecutor[V any](g *depgraph.Graph, c cache.Cache[Entry[V]], opts ExecutorOptions[V]) *Executor[V] {
	return &Executor[V]{graph: g, cache: c, opts: opts}
}

// Execute removes the plan's deleted nodes, then builds the build order one
// node at a time. A failing node does not stop the run; its dependents are
// still attempted.
func (e *Executor[V]) Execute(ctx context.Context, plan *Plan, fn CompileFunc[V]) *Report {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	report := &Report{
		RunID:       uuid.NewString(),
		Changes:     plan.Changes,
		Affected:    plan.Affected,
		BuildOrder:  plan.BuildOrder,
		CanSkip:     plan.CanSkip,
		MustRebuild: plan.MustRebuild,
	}
	logger = logger.With("runID", report.RunID)
	ctx = ctxlog.WithLogger(ctx, logger)

	for _, id := range plan.Deleted() {
		logger.Debug("Removing deleted node.", "nodeID", id)
		e.graph.RemoveNode(id)
		e.cache.Invalidate(ctx, id)
	}

	state := NewState(plan.BuildOrder)
	fp := newFingerprinter(e.graph, plan)

	for _, id := range plan.BuildOrder {
		state.Set(id, StatusInProgress)
		nodeStart := time.Now()
		status := e.executeNode(ctx, id, fp, state, fn)
		if e.opts.Observer != nil {
			e.opts.Observer.NodeFinished(status, time.Since(nodeStart))
		}
	}

	report.Compiled = state.In(StatusCompiled)
	report.Skipped = state.In(StatusSkipped)
	report.Errors = state.Errors()
	report.Stats = Stats{
		Compiled: len(report.Compiled),
		Skipped:  len(report.Skipped),
		Failed:   len(report.Errors),
		Total:    len(plan.BuildOrder),
		Duration: time.Since(start),
	}
	report.Stats.Success = report.Stats.Failed == 0
	if e.opts.Observer != nil {
		e.opts.Observer.BuildFinished(report.Stats)
	}

	logger.Info("Build finished.",
		"compiled", report.Stats.Compiled,
		"skipped", report.Stats.Skipped,
		"failed", report.Stats.Failed,
		"duration", report.Stats.Duration,
	)
	return report
}

func (e *Executor[V]) executeNode(ctx context.Context, id string, fp *fingerprinter, state *State, fn CompileFunc[V]) Status {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	fail := func(err error, panicked bool) Status {
		ne := &NodeError{ID: id, Err: err, Duration: time.Since(start), Panicked: panicked}
		logger.Error("Node failed.", "nodeID", id, "error", err)
		state.Fail(ne)
		return StatusFailed
	}

	n, ok := e.graph.Node(id)
	if !ok {
		return fail(fmt.Errorf("node %s is no longer in the graph", id), false)
	}
	want := fp.of(id)

	if fp.plan.forced(id) {
		logger.Debug("Node is forced, ignoring cached entry.", "nodeID", id)
	} else if entry, ok := e.cache.Get(ctx, id); ok && entry.Fingerprint == want {
		if e.opts.OnSkip != nil {
			if err := e.opts.OnSkip(ctx, n, entry.Value); err != nil {
				return fail(err, false)
			}
		}
		logger.Debug("Skipping unchanged node.", "nodeID", id)
		e.refresh(ctx, n, fp.plan)
		state.Set(id, StatusSkipped)
		return StatusSkipped
	}

	logger.Debug("Compiling node.", "nodeID", id)
	v, panicked, err := safeCall(ctx, n, fn)
	if err != nil {
		return fail(err, panicked)
	}
	e.cache.Put(ctx, id, Entry[V]{Fingerprint: want, Value: v})
	e.refresh(ctx, n, fp.plan)
	state.Set(id, StatusCompiled)
	return StatusCompiled
}

// refresh records the observed hash and modification time of a file node so
// the next plan compares against them.
func (e *Executor[V]) refresh(ctx context.Context, n depgraph.Node, plan *Plan) {
	if n.Kind != depgraph.KindFile {
		return
	}
	obs, ok := plan.Observations[n.ID]
	if !ok {
		return
	}
	meta := n.Meta
	meta.ContentHash = obs.Hash
	meta.ModTime = obs.ModTime
	if err := e.graph.UpdateMeta(n.ID, meta); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to refresh file metadata.", "nodeID", n.ID, "error", err)
	}
}

func safeCall[V any](ctx context.Context, n depgraph.Node, fn CompileFunc[V]) (v V, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Debug("Recovered panic.", "nodeID", n.ID, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
			panicked = true
		}
	}()
	v, err = fn(ctx, n)
	return v, false, err
}

// fingerprinter memoizes node fingerprints for one run. A fingerprint is the
// digest of the node's identity and metadata plus its dependencies'
// fingerprints, so any upstream change reaches every dependent.
type fingerprinter struct {
	graph *depgraph.Graph
	plan  *Plan
	memo  map[string]digest.Digest
	// visiting guards against cycles in graphs that were not checked.
	visiting map[string]bool
}

func newFingerprinter(g *depgraph.Graph, plan *Plan) *fingerprinter {
	return &fingerprinter{graph: g, plan: plan, memo: map[string]digest.Digest{}, visiting: map[string]bool{}}
}

type fingerprintInput struct {
	ID   string          `json:"id"`
	Kind depgraph.Kind   `json:"kind"`
	Meta depgraph.Meta   `json:"meta"`
	Deps []digest.Digest `json:"deps"`
}

func (f *fingerprinter) of(id string) digest.Digest {
	if d, ok := f.memo[id]; ok {
		return d
	}
	n, ok := f.graph.Node(id)
	if !ok || f.visiting[id] {
		return ""
	}
	f.visiting[id] = true
	defer delete(f.visiting, id)

	in := fingerprintInput{ID: id, Kind: n.Kind, Meta: n.Meta}
	if obs, ok := f.plan.Observations[id]; ok {
		in.Meta.ContentHash = obs.Hash
	}
	// Modification times change without content changes.
	in.Meta.ModTime = time.Time{}

	deps, _ := f.graph.Dependencies(id)
	for _, dep := range deps {
		in.Deps = append(in.Deps, f.of(dep))
	}

	b, err := json.Marshal(in)
	if err != nil {
		return ""
	}
	d := digest.FromBytes(b)
	f.memo[id] = d
	return d
}
