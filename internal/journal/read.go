package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tcclabs/exodus/internal/kernel"
)

// ReadRun retrieves a run and its seal snapshot by token.
// Returns sql.ErrNoRows if the run is not journaled.
func (j *Journal) ReadRun(ctx context.Context, token string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT token, protocol_id, law, constant, syzygy
		FROM runs
		WHERE token = ?
	`, token)

	var run Run
	if err := row.Scan(
		&run.Token, &run.Seal.ProtocolID, &run.Seal.Law,
		&run.Seal.Constant, &run.Seal.Syzygy,
	); err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	return run, nil
}

// ReadTransitions returns all journaled transitions for a run, ordered by seq.
//
// Returns an empty slice (not nil) for a run with no transitions yet.
func (j *Journal) ReadTransitions(ctx context.Context, token string) ([]kernel.Transition, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, op,
		       from_phase, from_rewrite, from_payload, from_stable,
		       to_phase, to_rewrite, to_payload, to_stable,
		       fingerprint
		FROM transitions
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var transitions []kernel.Transition
	for rows.Next() {
		tr, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, tr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}

	// Return empty slice instead of nil
	if transitions == nil {
		transitions = []kernel.Transition{}
	}

	return transitions, nil
}

// ListRuns returns all journaled run tokens in deterministic order.
//
// Returns an empty slice (not nil) if no runs are journaled.
func (j *Journal) ListRuns(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT token FROM runs
		ORDER BY token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan run token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run tokens: %w", err)
	}

	if tokens == nil {
		tokens = []string{}
	}

	return tokens, nil
}

// CountTransitions returns the number of journaled transitions for a run.
func (j *Journal) CountTransitions(ctx context.Context, token string) (int, error) {
	var count int
	err := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transitions WHERE run_token = ?
	`, token).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transitions: %w", err)
	}
	return count, nil
}

// scanTransition scans a row into a Transition struct.
func scanTransition(rows *sql.Rows) (kernel.Transition, error) {
	var tr kernel.Transition
	var op, fromPhase, fromRewrite, fromPayload string
	var toPhase, toRewrite, toPayload string

	if err := rows.Scan(
		&tr.Seq, &op,
		&fromPhase, &fromRewrite, &fromPayload, &tr.From.Stable,
		&toPhase, &toRewrite, &toPayload, &tr.To.Stable,
		&tr.Fingerprint,
	); err != nil {
		return kernel.Transition{}, fmt.Errorf("scan transition: %w", err)
	}

	tr.Op = kernel.Op(op)
	tr.From.Phase = kernel.Phase(fromPhase)
	tr.From.Rewrite = kernel.RewriteStatus(fromRewrite)
	tr.From.Payload = kernel.PayloadState(fromPayload)
	tr.To.Phase = kernel.Phase(toPhase)
	tr.To.Rewrite = kernel.RewriteStatus(toRewrite)
	tr.To.Payload = kernel.PayloadState(toPayload)

	return tr, nil
}
