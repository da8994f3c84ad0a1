package database

import (
	"context"
	"embed"
	"testing"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// useTestMigrations points the package at the testdata schema for one
// test and restores the real embedded filesystem afterwards.
func useTestMigrations(t *testing.T) {
	t.Helper()

	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})

	MigrationsFS = testMigrationsFS
	MigrationsDir = "testdata"
}

func TestMigrate(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// The sample table and its device/time index must both exist, and
	// the migrated schema must accept a recorder-shaped insert.
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='temperature_samples'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("temperature_samples not created: %v", err)
	}
	err = db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_temperature_samples_device_time'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("device/time index not created: %v", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO temperature_samples (device, sampled_at, current_temp, target_temp, heating)
		VALUES (?, ?, ?, ?, ?)`,
		"Lounge", "2026-08-01T12:00:00Z", 19.5, 21.0, 1,
	)
	if err != nil {
		t.Fatalf("insert into migrated schema failed: %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("status = %d applied %d pending, want 2/0", len(applied), len(pending))
	}

	// A second run must be a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	// Only the newest step (the index) is reverted; the table stays.
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_temperature_samples_device_time'",
	).Scan(&count)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	if count != 0 {
		t.Error("index should have been dropped")
	}
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='temperature_samples'",
	).Scan(&count)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	if count != 1 {
		t.Error("temperature_samples should survive a single rollback")
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 {
		t.Errorf("status = %d applied %d pending, want 1/1", len(applied), len(pending))
	}
}

func TestMigrationStatusBeforeMigrate(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.ensureVersionTable(ctx); err != nil {
		t.Fatalf("ensureVersionTable() error = %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 2 {
		t.Errorf("status = %d applied %d pending, want 0/2", len(applied), len(pending))
	}
}

func TestMigrateWithoutEmbeddedFiles(t *testing.T) {
	useTestMigrations(t)
	var empty embed.FS
	MigrationsFS = empty
	MigrationsDir = "."

	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no embedded files error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOk      bool
	}{
		{
			filename:    "20260801_000000_create_temperature_samples.up.sql",
			wantVersion: "20260801_000000",
			wantName:    "create_temperature_samples",
			wantUp:      true,
			wantOk:      true,
		},
		{
			filename:    "20260801_000000_create_temperature_samples.down.sql",
			wantVersion: "20260801_000000",
			wantName:    "create_temperature_samples",
			wantUp:      false,
			wantOk:      true,
		},
		{filename: "notes.md", wantOk: false},
		{filename: "20260801_000000_no_direction.sql", wantOk: false},
		{filename: "orphan.up.sql", wantOk: false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion || name != tt.wantName || up != tt.wantUp {
				t.Errorf("parsed (%q, %q, %v), want (%q, %q, %v)",
					version, name, up, tt.wantVersion, tt.wantName, tt.wantUp)
			}
		})
	}
}
