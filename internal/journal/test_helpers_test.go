package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tcclabs/exodus/internal/kernel"
	"github.com/tcclabs/exodus/internal/seal"
)

// createTestJournal creates a journal backed by a temp database.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// beginTestRun journals a run under the canonical seal.
func beginTestRun(t *testing.T, j *Journal, token string) {
	t.Helper()
	if err := j.Begin(context.Background(), token, seal.Canonical()); err != nil {
		t.Fatalf("Begin(%q) failed: %v", token, err)
	}
}

// runProtocol drives a kernel through the full operation order and journals
// every transition. Returns the applied transitions.
func runProtocol(t *testing.T, j *Journal, token string) []kernel.Transition {
	t.Helper()
	beginTestRun(t, j, token)

	k := kernel.New()
	transitions := make([]kernel.Transition, 0, len(kernel.Ops()))
	for _, op := range kernel.Ops() {
		tr, err := k.Apply(op)
		if err != nil {
			t.Fatalf("Apply(%s) failed: %v", op, err)
		}
		if err := j.Append(context.Background(), token, tr); err != nil {
			t.Fatalf("Append(%s, seq %d) failed: %v", token, tr.Seq, err)
		}
		transitions = append(transitions, tr)
	}
	return transitions
}
