package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// compiledLine reports whether a debug log line records id being compiled.
func compiledLine(line, id string) bool {
	return strings.Contains(line, `msg="Compiling node."`) && strings.Contains(line, "nodeID="+id)
}

// AssertCompiled checks the log output of a harness run to confirm that a node
// was compiled rather than skipped. It needs debug logging, which RunCLI
// enables.
func AssertCompiled(t *testing.T, result *HarnessResult, id string) {
	t.Helper()
	for _, line := range strings.Split(result.LogOutput, "\n") {
		if compiledLine(line, id) {
			return
		}
	}
	assert.Fail(t, "node was not compiled", "expected a compile log line for %q", id)
}

// AssertNotCompiled is the inverse of AssertCompiled.
func AssertNotCompiled(t *testing.T, result *HarnessResult, id string) {
	t.Helper()
	for _, line := range strings.Split(result.LogOutput, "\n") {
		if compiledLine(line, id) {
			assert.Fail(t, "node was compiled", "unexpected compile log line for %q: %s", id, line)
			return
		}
	}
}
