package testutil

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/specialistvlad/stackmark/internal/cli"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of one CLI invocation.
type HarnessResult struct {
	Output    string
	LogOutput string
	Err       error
}

// ExitCode returns the exit status the process would have ended with.
func (r *HarnessResult) ExitCode() int {
	if r.Err == nil {
		return 0
	}
	if exitErr, ok := r.Err.(*cli.ExitError); ok {
		return exitErr.Code
	}
	return 1
}

// RunCLI runs the command line against fs with debug logging, the way main
// would. args start at the subcommand name.
func RunCLI(t *testing.T, fs afero.Fs, args ...string) *HarnessResult {
	t.Helper()

	out := &SafeBuffer{}
	logs := &SafeBuffer{}
	full := append([]string{"-log-level=debug", "-log-format=text"}, args...)
	err := cli.Execute(full, out, logs, fs)

	if os.Getenv("STACKMARK_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
	}

	return &HarnessResult{
		Output:    out.String(),
		LogOutput: logs.String(),
		Err:       err,
	}
}
