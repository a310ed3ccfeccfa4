// Package depgraph tracks which files, design tokens and components depend on
// each other. It is the source of truth for the invalidation engine and the
// incremental build planner.
package depgraph

import (
	"fmt"
	"sort"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*vertex),
	}
}

// AddNode inserts a node or replaces the kind and metadata of an existing one.
// Edges of an existing node are kept.
func (g *Graph) AddNode(n Node) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if v, ok := g.nodes[n.ID]; ok {
		v.kind = n.Kind
		v.meta = n.Meta
		return
	}

	g.nodes[n.ID] = &vertex{
		id:         n.ID,
		kind:       n.Kind,
		meta:       n.Meta,
		deps:       make(map[string]*vertex),
		dependents: make(map[string]*vertex),
	}
}

// EnsureNode inserts a node unless one with the same id exists. It reports
// whether the node was added.
func (g *Graph) EnsureNode(n Node) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[n.ID]; ok {
		return false
	}
	g.nodes[n.ID] = &vertex{
		id:         n.ID,
		kind:       n.Kind,
		meta:       n.Meta,
		deps:       make(map[string]*vertex),
		dependents: make(map[string]*vertex),
	}
	return true
}

// AddEdge records that source depends on target. Both nodes must exist and
// self edges are rejected. Adding an existing edge is a no-op.
func (g *Graph) AddEdge(source, target string) error {
	if source == target {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", source, source)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	src, ok := g.nodes[source]
	if !ok {
		return fmt.Errorf("source node not found: %s", source)
	}
	dst, ok := g.nodes[target]
	if !ok {
		return fmt.Errorf("destination node not found: %s", target)
	}

	src.deps[target] = dst
	dst.dependents[source] = src
	return nil
}

// RemoveNode deletes a node and every edge touching it. Unknown ids are
// ignored.
func (g *Graph) RemoveNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	v, ok := g.nodes[id]
	if !ok {
		return
	}
	for depID, dep := range v.deps {
		delete(dep.dependents, id)
		delete(v.deps, depID)
	}
	for parentID, parent := range v.dependents {
		delete(parent.deps, id)
		delete(v.dependents, parentID)
	}
	delete(g.nodes, id)
}

// RemoveEdgesFrom drops every outgoing depends-on edge of a node, so its
// dependencies can be re-registered from scratch.
func (g *Graph) RemoveEdgesFrom(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	v, ok := g.nodes[id]
	if !ok {
		return
	}
	for depID, dep := range v.deps {
		delete(dep.dependents, id)
		delete(v.deps, depID)
	}
}

// Node returns a snapshot of a node.
func (g *Graph) Node(id string) (Node, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return v.snapshot(), true
}

// Has reports whether a node exists.
func (g *Graph) Has(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns snapshots of every node sorted by id.
func (g *Graph) Nodes() []Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out := make([]Node, 0, len(g.nodes))
	for _, v := range g.nodes {
		out = append(out, v.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodesOfKind returns snapshots of every node of the given kind sorted by id.
func (g *Graph) NodesOfKind(kind Kind) []Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var out []Node
	for _, v := range g.nodes {
		if v.kind == kind {
			out = append(out, v.snapshot())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// UpdateMeta replaces the metadata of an existing node.
func (g *Graph) UpdateMeta(id string, meta Meta) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	v, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("node not found: %s", id)
	}
	v.meta = meta
	return nil
}

// Dependencies returns the sorted ids the given node depends on.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedKeys(v.deps), nil
}

// Dependents returns the sorted ids of the nodes that depend on the given node.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedKeys(v.dependents), nil
}

// TransitiveDependents returns every node that directly or indirectly depends
// on id, excluding id itself, sorted. Unknown ids yield an empty result. The
// walk keeps a visited set and so terminates on cyclic graphs.
func (g *Graph) TransitiveDependents(id string) []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	start, ok := g.nodes[id]
	if !ok {
		return nil
	}

	visited := map[string]bool{id: true}
	queue := []*vertex{start}
	var out []string
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for depID, dep := range v.dependents {
			if visited[depID] {
				continue
			}
			visited[depID] = true
			out = append(out, depID)
			queue = append(queue, dep)
		}
	}
	sort.Strings(out)
	return out
}

// DetectCycles checks the graph for any cycles. It returns a non-nil error
// if a cycle is found, indicating the first node involved in the detected cycle.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(v *vertex) error
	visit = func(v *vertex) error {
		if permanent[v.id] {
			return nil
		}
		if temporary[v.id] {
			return fmt.Errorf("cycle detected involving node '%s'", v.id)
		}

		temporary[v.id] = true
		for _, id := range sortedKeys(v.deps) {
			if err := visit(v.deps[id]); err != nil {
				return err
			}
		}
		delete(temporary, v.id)
		permanent[v.id] = true
		return nil
	}

	ids := sortedKeys(g.nodes)
	for _, id := range ids {
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]*vertex) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
