package incremental

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CircularDependencyError is returned when no node of the affected set is
// ready while some remain.
type CircularDependencyError struct {
	// Stuck lists the nodes that could not be ordered, sorted.
	Stuck []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency among: " + strings.Join(e.Stuck, ", ")
}

// NodeError records why one node failed to build.
type NodeError struct {
	ID       string
	Err      error
	Duration time.Duration
	// Panicked is set when the compile function panicked.
	Panicked bool
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.ID, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// MarshalJSON writes the error message instead of the opaque error value.
func (e *NodeError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string `json:"id"`
		Error    string `json:"error"`
		Duration string `json:"duration"`
		Panicked bool   `json:"panicked,omitempty"`
	}{e.ID, e.Err.Error(), e.Duration.String(), e.Panicked})
}
