package incremental

import (
	"sort"

	"github.com/specialistvlad/stackmark/internal/depgraph"
)

// BuildOrder sorts ids so every node comes after the dependencies it has
// inside the set. Dependencies outside the set count as already built. Ties
// are broken by id so the order is deterministic.
func BuildOrder(g *depgraph.Graph, ids []string) ([]string, error) {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}

	indegree := make(map[string]int, len(set))
	for id := range set {
		deps, err := g.Dependencies(id)
		if err != nil {
			return nil, err
		}
		for _, d := range deps {
			if set[d] {
				indegree[id]++
			}
		}
	}

	var ready []string
	for id := range set {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(set))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		delete(set, id)

		dependents, err := g.Dependents(id)
		if err != nil {
			return nil, err
		}
		for _, d := range dependents {
			if !set[d] {
				continue
			}
			indegree[d]--
			if indegree[d] == 0 {
				ready = insertSorted(ready, d)
			}
		}
	}

	if len(set) > 0 {
		stuck := make([]string, 0, len(set))
		for id := range set {
			stuck = append(stuck, id)
		}
		sort.Strings(stuck)
		return nil, &CircularDependencyError{Stuck: stuck}
	}
	return order, nil
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
