package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tcclabs/exodus/internal/journal"
	"github.com/tcclabs/exodus/internal/kernel"
	"github.com/tcclabs/exodus/internal/seal"
)

// tempDB returns a path for a fresh SQLite journal under t.TempDir().
func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "exodus.db")
}

// seedRun journals a run with the first n protocol operations applied.
func seedRun(t *testing.T, dbPath, token string, n int) {
	t.Helper()

	jrn, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer jrn.Close()

	ctx := context.Background()
	require.NoError(t, jrn.Begin(ctx, token, seal.Canonical()))

	k := kernel.New()
	for _, op := range kernel.Ops()[:n] {
		tr, err := k.Apply(op)
		require.NoError(t, err)
		require.NoError(t, jrn.Append(ctx, token, tr))
	}
}

// tamperFingerprint forges the journaled fingerprint of one transition.
func tamperFingerprint(t *testing.T, dbPath, token string, seq int) {
	t.Helper()

	jrn, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer jrn.Close()

	_, err = jrn.DB().Exec(`UPDATE transitions SET fingerprint = 'forged' WHERE run_token = ? AND seq = ?`, token, seq)
	require.NoError(t, err)
}
