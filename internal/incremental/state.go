package incremental

import (
	"sort"
	"sync"
)

// Status is the build state of one node within a single run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompiled   Status = "compiled"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// State tracks the status of every node of one run. A node is in exactly one
// status at a time. It is created per Execute and discarded afterwards.
type State struct {
	mu     sync.RWMutex
	status map[string]Status
	errs   map[string]*NodeError
}

// NewState marks every id pending.
func NewState(ids []string) *State {
	s := &State{status: make(map[string]Status, len(ids)), errs: make(map[string]*NodeError)}
	for _, id := range ids {
		s.status[id] = StatusPending
	}
	return s
}

// Set moves a node to a status.
func (s *State) Set(id string, st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = st
}

// Fail marks a node failed and records its error.
func (s *State) Fail(err *NodeError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[err.ID] = StatusFailed
	s.errs[err.ID] = err
}

// Status returns the status of a node; unknown nodes are pending.
func (s *State) Status(id string) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.status[id]; ok {
		return st
	}
	return StatusPending
}

// In returns the sorted ids currently in a status.
func (s *State) In(st Status) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, cur := range s.status {
		if cur == st {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Errors returns the recorded node errors sorted by id.
func (s *State) Errors() []*NodeError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*NodeError, 0, len(s.errs))
	for _, e := range s.errs {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
