package invalidate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/stackmark/internal/depgraph"
	"github.com/specialistvlad/stackmark/internal/fsutil"
)

// contentHashSeeds selects file nodes whose content no longer matches the
// recorded hash. A deleted file counts as changed.
func contentHashSeeds(_ context.Context, e *Engine, req Request) ([]string, []string, error) {
	var seeds, unknown []string
	var errs error
	for _, path := range req.Targets {
		id := depgraph.FileID(path)
		n, ok := e.graph.Node(id)
		if !ok {
			unknown = append(unknown, path)
			continue
		}
		obs, err := fsutil.Observe(e.fs, path)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if !obs.Exists || obs.Hash != n.Meta.ContentHash {
			seeds = append(seeds, id)
		}
	}
	return seeds, unknown, errs
}

// timestampSeeds selects file nodes modified after their recorded time, or
// after req.Since when set. Without targets every file node is checked.
func timestampSeeds(_ context.Context, e *Engine, req Request) ([]string, []string, error) {
	var nodes []depgraph.Node
	var unknown []string
	if len(req.Targets) == 0 {
		nodes = e.graph.NodesOfKind(depgraph.KindFile)
	}
	for _, path := range req.Targets {
		n, ok := e.graph.Node(depgraph.FileID(path))
		if !ok {
			unknown = append(unknown, path)
			continue
		}
		nodes = append(nodes, n)
	}

	var seeds []string
	var errs error
	for _, n := range nodes {
		path := n.Meta.Path
		if path == "" {
			_, path, _ = depgraph.SplitID(n.ID)
		}
		info, err := e.fs.Stat(path)
		if err != nil {
			if isNotExist(err) {
				seeds = append(seeds, n.ID)
				continue
			}
			errs = multierror.Append(errs, fmt.Errorf("failed to stat %s: %w", path, err))
			continue
		}
		since := n.Meta.ModTime
		if !req.Since.IsZero() {
			since = req.Since
		}
		if info.ModTime().After(since) {
			seeds = append(seeds, n.ID)
		}
	}
	return seeds, unknown, errs
}

// dependencySeeds accepts node ids or file paths.
func dependencySeeds(_ context.Context, e *Engine, req Request) ([]string, []string, error) {
	var seeds, unknown []string
	for _, t := range req.Targets {
		switch {
		case e.graph.Has(t):
			seeds = append(seeds, t)
		case e.graph.Has(depgraph.FileID(t)):
			seeds = append(seeds, depgraph.FileID(t))
		default:
			unknown = append(unknown, t)
		}
	}
	return seeds, unknown, nil
}

// patternSeeds matches node ids and file paths. Patterns with glob meta
// characters use doublestar; plain patterns match as substrings.
func patternSeeds(_ context.Context, e *Engine, req Request) ([]string, []string, error) {
	for _, p := range req.Targets {
		if fsutil.HasMeta(p) && !doublestar.ValidatePattern(p) {
			return nil, nil, fmt.Errorf("invalid pattern %q", p)
		}
	}

	var seeds, unknown []string
	nodes := e.graph.Nodes()
	for _, p := range req.Targets {
		matched := false
		for _, n := range nodes {
			if matchNode(p, n) {
				seeds = append(seeds, n.ID)
				matched = true
			}
		}
		if !matched {
			unknown = append(unknown, p)
		}
	}
	return seeds, unknown, nil
}

func matchNode(pattern string, n depgraph.Node) bool {
	candidates := []string{n.ID}
	if n.Meta.Path != "" {
		candidates = append(candidates, n.Meta.Path)
	}
	for _, c := range candidates {
		if fsutil.HasMeta(pattern) {
			if ok, _ := doublestar.Match(pattern, c); ok {
				return true
			}
			continue
		}
		if strings.Contains(c, pattern) {
			return true
		}
	}
	return false
}

// selectiveSeeds resolves files, tokens and components in one request.
func selectiveSeeds(_ context.Context, e *Engine, req Request) ([]string, []string, error) {
	var seeds, unknown []string
	add := func(id, target string) {
		if e.graph.Has(id) {
			seeds = append(seeds, id)
		} else {
			unknown = append(unknown, target)
		}
	}
	for _, f := range req.Files {
		add(depgraph.FileID(f), f)
	}
	for _, t := range req.Tokens {
		add(depgraph.TokenID(t), t)
	}
	for _, c := range req.Components {
		add(depgraph.ComponentID(c), c)
	}
	return seeds, unknown, nil
}

// batchSeeds resolves every part on its own and unions the seeds, so
// overlapping parts are evicted once.
func batchSeeds(ctx context.Context, e *Engine, req Request) ([]string, []string, error) {
	var seeds, unknown []string
	var errs error
	for i, part := range req.Parts {
		if part.Strategy == Global || part.Strategy == Batch {
			errs = multierror.Append(errs, fmt.Errorf("batch part %d: strategy %q cannot be nested", i, part.Strategy))
			continue
		}
		e.mu.RLock()
		fn, ok := e.strategies[part.Strategy]
		e.mu.RUnlock()
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("batch part %d: %w: %q", i, ErrUnknownStrategy, part.Strategy))
			continue
		}
		s, u, err := fn(ctx, e, part)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("batch part %d: %w", i, err))
		}
		seeds = append(seeds, s...)
		unknown = append(unknown, u...)
	}
	return seeds, unknown, errs
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
