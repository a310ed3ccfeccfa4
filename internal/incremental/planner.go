// Package incremental decides what to rebuild after files change and runs
// the rebuild in dependency order.
//
// A Planner compares files on disk with the metadata recorded in the
// dependency graph, derives the affected node set and orders it. An Executor
// walks the order, skipping nodes whose fingerprint is unchanged. A Builder
// ties both to the invalidation engine.
package incremental

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/spf13/afero"

	"github.com/specialistvlad/stackmark/internal/ctxlog"
	"github.com/specialistvlad/stackmark/internal/depgraph"
	"github.com/specialistvlad/stackmark/internal/fsutil"
)

// Comparator selects how a file is judged changed.
type Comparator string

const (
	// CompareContentHash compares the sha256 of the content.
	CompareContentHash Comparator = "content-hash"
	// CompareTimestamp compares modification times.
	CompareTimestamp Comparator = "timestamp"
)

// Options tune a plan.
type Options struct {
	Comparator Comparator
	// Force lists node ids (or file paths) rebuilt regardless of changes.
	Force []string
}

// Changes classifies the planned paths.
type Changes struct {
	Changed   []string `json:"changed"`
	Unchanged []string `json:"unchanged"`
	New       []string `json:"new"`
	Deleted   []string `json:"deleted"`
}

// Affected is the set of node ids a plan touches.
type Affected struct {
	Direct     []string `json:"direct"`
	Transitive []string `json:"transitive"`
	All        []string `json:"all"`
}

// Plan is the outcome of change detection.
type Plan struct {
	Changes     Changes  `json:"changes"`
	Affected    Affected `json:"affected"`
	BuildOrder  []string `json:"buildOrder"`
	CanSkip     []string `json:"canSkip"`
	MustRebuild []string `json:"mustRebuild"`
	// Forced nodes are compiled even when a cached entry matches.
	Forced []string `json:"forced,omitempty"`
	// Observations holds what was seen on disk, keyed by file node id.
	Observations map[string]fsutil.Observation `json:"-"`
}

// Planner detects changes against the graph.
type Planner struct {
	graph *depgraph.Graph
	fs    afero.Fs
}

// NewPlanner returns a planner reading files from fs.
func NewPlanner(g *depgraph.Graph, fs afero.Fs) *Planner {
	return &Planner{graph: g, fs: fs}
}

// Plan classifies paths, registers file nodes for new paths and orders the
// affected set. Paths that neither exist nor are known are ignored.
func (p *Planner) Plan(ctx context.Context, paths []string, opts Options) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	if opts.Comparator == "" {
		opts.Comparator = CompareContentHash
	}
	if opts.Comparator != CompareContentHash && opts.Comparator != CompareTimestamp {
		return nil, fmt.Errorf("unknown comparator %q", opts.Comparator)
	}

	plan := &Plan{Observations: make(map[string]fsutil.Observation)}
	direct := make(map[string]bool)
	var deleted []string

	for _, path := range uniqueSorted(paths) {
		obs, err := fsutil.Observe(p.fs, path)
		if err != nil {
			return nil, err
		}
		id := depgraph.FileID(path)
		n, known := p.graph.Node(id)

		switch {
		case !obs.Exists && !known:
			continue
		case !obs.Exists:
			plan.Changes.Deleted = append(plan.Changes.Deleted, path)
			deleted = append(deleted, id)
		case !known || (n.Meta.ContentHash == "" && n.Meta.ModTime.IsZero()):
			if !known {
				p.graph.AddNode(depgraph.Node{ID: id, Kind: depgraph.KindFile, Meta: depgraph.Meta{Path: path}})
			}
			plan.Changes.New = append(plan.Changes.New, path)
			plan.Observations[id] = obs
			direct[id] = true
		case changed(opts.Comparator, n.Meta, obs):
			plan.Changes.Changed = append(plan.Changes.Changed, path)
			plan.Observations[id] = obs
			direct[id] = true
		default:
			plan.Changes.Unchanged = append(plan.Changes.Unchanged, path)
			plan.Observations[id] = obs
		}
	}

	forced := make(map[string]bool)
	for _, f := range opts.Force {
		switch {
		case p.graph.Has(f):
			forced[f] = true
		case p.graph.Has(depgraph.FileID(f)):
			forced[depgraph.FileID(f)] = true
		default:
			logger.Warn("Ignoring forced target that matches no node.", "target", f)
		}
	}
	for id := range forced {
		direct[id] = true
	}
	plan.Forced = sortedKeys(forced)

	gone := make(map[string]bool, len(deleted))
	for _, id := range deleted {
		gone[id] = true
		delete(direct, id)
	}

	transitive := make(map[string]bool)
	for _, seed := range append(sortedKeys(direct), deleted...) {
		for _, d := range p.graph.TransitiveDependents(seed) {
			if !direct[d] && !gone[d] {
				transitive[d] = true
			}
		}
	}

	all := make(map[string]bool, len(direct)+len(transitive))
	for id := range direct {
		all[id] = true
	}
	for id := range transitive {
		all[id] = true
	}

	plan.Affected = Affected{
		Direct:     sortedKeys(direct),
		Transitive: sortedKeys(transitive),
		All:        sortedKeys(all),
	}

	order, err := BuildOrder(p.graph, plan.Affected.All)
	if err != nil {
		return nil, err
	}
	plan.BuildOrder = order
	plan.MustRebuild = append([]string(nil), order...)

	for _, n := range p.graph.Nodes() {
		if !all[n.ID] && !gone[n.ID] {
			plan.CanSkip = append(plan.CanSkip, n.ID)
		}
	}

	logger.Debug("Planned incremental build.",
		"changed", len(plan.Changes.Changed),
		"new", len(plan.Changes.New),
		"deleted", len(plan.Changes.Deleted),
		"affected", len(plan.Affected.All),
	)
	return plan, nil
}

// Deleted returns the file node ids of deleted paths.
func (p *Plan) Deleted() []string {
	return fileIDs(p.Changes.Deleted)
}

func (p *Plan) forced(id string) bool {
	_, ok := slices.BinarySearch(p.Forced, id)
	return ok
}

func changed(c Comparator, recorded depgraph.Meta, obs fsutil.Observation) bool {
	if c == CompareTimestamp {
		return obs.ModTime.After(recorded.ModTime)
	}
	return obs.Hash != recorded.ContentHash
}

func uniqueSorted(in []string) []string {
	set := make(map[string]bool, len(in))
	for _, s := range in {
		set[s] = true
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
