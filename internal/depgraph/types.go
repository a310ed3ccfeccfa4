package depgraph

import (
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
)

// Kind classifies a dependency node.
type Kind string

const (
	KindFile      Kind = "file"
	KindToken     Kind = "token"
	KindComponent Kind = "component"
)

// Meta carries the kind-specific bookkeeping of a node. Only the fields that
// belong to the node's kind are set.
type Meta struct {
	// file
	Path        string        `json:"path,omitempty"`
	ContentHash digest.Digest `json:"contentHash,omitempty"`
	ModTime     time.Time     `json:"modTime,omitempty"`

	// token
	Reference string `json:"reference,omitempty"`
	Value     string `json:"value,omitempty"`

	// component
	Component string   `json:"component,omitempty"`
	Tokens    []string `json:"tokens,omitempty"`
}

// Node is a public snapshot of a vertex.
type Node struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
	Meta Meta   `json:"meta"`
}

// Graph is a collection of nodes and their depends-on edges. Every edge is
// mirrored in a reverse index so dependents can be found without a scan.
// All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the nodes map during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*vertex
}

// vertex is un-exported so callers go through the ID-based API.
type vertex struct {
	id   string
	kind Kind
	meta Meta
	// deps holds the vertices this one depends on.
	deps map[string]*vertex
	// dependents holds the vertices that depend on this one.
	dependents map[string]*vertex
}

func (v *vertex) snapshot() Node {
	meta := v.meta
	if v.meta.Tokens != nil {
		meta.Tokens = append([]string(nil), v.meta.Tokens...)
	}
	return Node{ID: v.id, Kind: v.kind, Meta: meta}
}
