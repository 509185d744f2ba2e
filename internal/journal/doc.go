// Package journal provides SQLite-backed durable storage for protocol runs.
//
// The journal implements an append-only log with:
//   - Runs: One row per protocol run, holding the seal snapshot taken at Begin
//   - Transitions: Applied kernel transitions, keyed by (run_token, seq)
//
// Only applied transitions are recorded. Rejected operations never mutate
// kernel state and therefore never reach the journal; a run's rows are always
// a prefix of the one legal operation order.
//
// # Storage Rules
//
// Logical sequence only:
//   - All ordering uses seq INTEGER (the kernel step cursor), never timestamps
//   - Enables byte-identical replay regardless of wall time
//
// Deterministic query results:
//   - Transition queries use ORDER BY seq ASC
//   - Run listings use ORDER BY token COLLATE BINARY ASC
//
// Write-once rows:
//   - INSERT ... ON CONFLICT DO NOTHING with RowsAffected checks
//   - Duplicate runs surface as ErrRunExists, duplicate seqs as ErrDuplicateSeq
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Transitions cannot outlive their run
//
// Replay rebuilds a fresh kernel from a run's rows and verifies every recorded
// source state, result state, and fingerprint against the live kernel. Any
// divergence reports an integrity violation naming the offending seq.
package journal
