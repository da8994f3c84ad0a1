package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// openTestDB opens a throwaway history database under t.TempDir.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func TestOpenCreatesFile(t *testing.T) {
	db := openTestDB(t)

	if _, err := os.Stat(db.Path()); err != nil {
		t.Errorf("history file missing: %v", err)
	}
}

func TestOpenCreatesNestedDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "bridge", "history.db")

	db, err := Open(Config{Path: path, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("history directory missing: %v", err)
	}
	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestCloseIsSafeToRepeat(t *testing.T) {
	db := openTestDB(t)

	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() after close error = %v", err)
	}
}

// TestSampleRoundTrip exercises the write/read path the recorder uses:
// insert inside a transaction, read back with a parameterised query.
func TestSampleRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		CREATE TABLE poll_log (
			device TEXT NOT NULL,
			polled_at TEXT NOT NULL,
			current_temp REAL NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO poll_log (device, polled_at, current_temp) VALUES (?, ?, ?)",
		"Lounge", "2026-08-01T12:00:00Z", 19.5,
	)
	if err != nil {
		t.Fatalf("INSERT error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	var temp float64
	err = db.QueryRowContext(ctx,
		"SELECT current_temp FROM poll_log WHERE device = ?", "Lounge",
	).Scan(&temp)
	if err != nil {
		t.Fatalf("SELECT error = %v", err)
	}
	if temp != 19.5 {
		t.Errorf("current_temp = %v, want 19.5", temp)
	}
}

// TestRollbackDiscardsWrites confirms an aborted poll transaction leaves
// no partial rows behind.
func TestRollbackDiscardsWrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		"CREATE TABLE poll_log (device TEXT NOT NULL, polled_at TEXT NOT NULL)",
	)
	if err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO poll_log (device, polled_at) VALUES (?, ?)",
		"Porch", "2026-08-01T12:00:00Z",
	); err != nil {
		t.Fatalf("INSERT error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM poll_log").Scan(&count); err != nil {
		t.Fatalf("SELECT error = %v", err)
	}
	if count != 0 {
		t.Errorf("rows after rollback = %d, want 0", count)
	}
}
