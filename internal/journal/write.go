package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/tcclabs/exodus/internal/kernel"
	"github.com/tcclabs/exodus/internal/seal"
)

// ErrRunExists is returned by Begin when the run token is already journaled.
var ErrRunExists = errors.New("run token already exists")

// ErrDuplicateSeq is returned by Append when the (run, seq) pair is already
// journaled. The journal is write-once: recorded transitions never change.
var ErrDuplicateSeq = errors.New("transition seq already recorded")

// Run is a journaled protocol run: its token plus the seal snapshot taken
// when the run was opened.
type Run struct {
	Token string
	Seal  seal.Seal
}

// Begin journals a new run under the given token, snapshotting the seal it
// was opened with. Returns ErrRunExists if the token is already in use.
func (j *Journal) Begin(ctx context.Context, token string, s seal.Seal) error {
	result, err := j.db.ExecContext(ctx, `
		INSERT INTO runs
		(token, protocol_id, law, constant, syzygy)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`,
		token,
		s.ProtocolID,
		s.Law,
		s.Constant,
		s.Syzygy,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("begin run: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("begin run %s: %w", token, ErrRunExists)
	}

	return nil
}

// Append journals an applied transition for a run.
//
// The (run_token, seq) primary key makes each step write-once: re-appending
// an already journaled seq returns ErrDuplicateSeq and leaves the stored row
// untouched. The run must exist (foreign key constraint).
func (j *Journal) Append(ctx context.Context, token string, tr kernel.Transition) error {
	result, err := j.db.ExecContext(ctx, `
		INSERT INTO transitions
		(run_token, seq, op,
		 from_phase, from_rewrite, from_payload, from_stable,
		 to_phase, to_rewrite, to_payload, to_stable,
		 fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_token, seq) DO NOTHING
	`,
		token,
		tr.Seq,
		string(tr.Op),
		string(tr.From.Phase),
		string(tr.From.Rewrite),
		string(tr.From.Payload),
		tr.From.Stable,
		string(tr.To.Phase),
		string(tr.To.Rewrite),
		string(tr.To.Payload),
		tr.To.Stable,
		tr.Fingerprint,
	)
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("append transition: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("append transition %s/%d: %w", token, tr.Seq, ErrDuplicateSeq)
	}

	return nil
}
