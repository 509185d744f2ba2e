package journal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesDatabaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exodus.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer j.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("journal file missing after Open: %v", err)
	}
}

func TestOpen_ReopensExistingJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exodus.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	var count int
	if err := second.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		t.Errorf("runs table unusable after reopen: %v", err)
	}
}

func TestOpen_RepeatedOpensKeepSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exodus.db")

	for i := 0; i < 3; i++ {
		j, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		j.Close()
	}

	j, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer j.Close()

	for _, table := range []string{"runs", "transitions"} {
		var name string
		err := j.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q missing after repeated opens: %v", table, err)
		}
	}
}

func TestOpen_UnwritablePath(t *testing.T) {
	if _, err := Open("/nonexistent/dir/exodus.db"); err == nil {
		t.Error("expected error for unwritable path, got nil")
	}
}

func TestClose_NilHandle(t *testing.T) {
	j := &Journal{}
	if err := j.Close(); err != nil {
		t.Errorf("Close() without a db should not error: %v", err)
	}
}

func TestClose_Twice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exodus.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if err := j.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}
	_ = j.Close() // must not panic
}

func TestDB_HandleIsLive(t *testing.T) {
	j := createTestJournal(t)

	db := j.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("DB() handle not usable: %v", err)
	}
}

func TestOpen_ConnectionPragmas(t *testing.T) {
	j := createTestJournal(t)

	// synchronous NORMAL and foreign_keys ON read back as 1.
	checks := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, expected := range checks {
		if err := j.verifyPragma(name, expected); err != nil {
			t.Error(err)
		}
	}
}

func TestOpen_StampsSchemaVersion(t *testing.T) {
	j := createTestJournal(t)

	var version int
	if err := j.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, expected %d", version, currentSchemaVersion)
	}
}
