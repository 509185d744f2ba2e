package journal

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions:
// 0 - pre-migration
// 1 - transitions(run_token) covering index
const currentSchemaVersion = 1

// Pragmas applied to every connection before the schema is touched.
// WAL keeps readers unblocked during appends; foreign keys tie
// transitions to their run row.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Journal is the append-only transition log for protocol runs.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path, configures the
// connection, and brings the schema up to the current version. Safe to
// call repeatedly on the same path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// One connection total. SQLite allows a single writer, and a second
	// pooled connection would see :memory: databases as distinct.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initialize(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Close releases the underlying database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// DB exposes the underlying handle for callers that need raw access,
// such as corruption-injection in tests.
func (j *Journal) DB() *sql.DB {
	return j.db
}

// initialize applies pragmas, the embedded schema, and any pending
// migrations, then stamps user_version.
func initialize(db *sql.DB) error {
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("journal pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("journal schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("journal user_version: %w", err)
	}

	if version < 1 {
		// v1: databases created before the index existed get it here;
		// schema.sql already carries it for fresh databases.
		if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_transitions_run ON transitions(run_token)"); err != nil {
			return fmt.Errorf("journal migration v1: %w", err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("journal user_version: %w", err)
	}

	return nil
}

// verifyPragma reads back a pragma and compares it to the expected value.
func (j *Journal) verifyPragma(name, expected string) error {
	var value string
	if err := j.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("read pragma %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("pragma %s = %q, expected %q", name, value, expected)
	}
	return nil
}
