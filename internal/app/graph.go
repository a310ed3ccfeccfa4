package app

import (
	"context"
	"slices"

	"github.com/xlab/treeprint"

	"github.com/specialistvlad/stackmark/internal/depgraph"
)

// GraphTree renders the dependency graph as a tree rooted at the project.
// Each component lists what it depends on; with reverse set each file lists
// what depends on it instead.
func (a *App) GraphTree(ctx context.Context, reverse bool) (string, error) {
	ctx = a.withLogger(ctx)
	if _, _, err := a.prepare(ctx); err != nil {
		return "", err
	}

	tree := treeprint.NewWithRoot(a.project.Manifest.Name)
	roots := a.graph.NodesOfKind(depgraph.KindComponent)
	next := a.graph.Dependencies
	if reverse {
		roots = a.graph.NodesOfKind(depgraph.KindFile)
		next = a.graph.Dependents
	}

	for _, n := range roots {
		branch := tree.AddBranch(n.ID)
		if err := a.addEdges(branch, n.ID, next, []string{n.ID}); err != nil {
			return "", err
		}
	}
	return tree.String(), nil
}

func (a *App) addEdges(branch treeprint.Tree, id string, next func(string) ([]string, error), path []string) error {
	ids, err := next(id)
	if err != nil {
		return err
	}
	for _, child := range ids {
		if slices.Contains(path, child) {
			branch.AddMetaNode("cycle", child)
			continue
		}
		ids, err := next(child)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			branch.AddNode(child)
			continue
		}
		sub := branch.AddBranch(child)
		if err := a.addEdges(sub, child, next, append(slices.Clone(path), child)); err != nil {
			return err
		}
	}
	return nil
}
