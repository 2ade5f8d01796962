package migration

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testFiles() fstest.MapFS {
	return fstest.MapFS{
		"migrations/001_create_items.sql": {Data: []byte("-- items\nCREATE TABLE items (id TEXT PRIMARY KEY);\n")},
		"migrations/002_add_names.sql":    {Data: []byte("ALTER TABLE items ADD COLUMN name TEXT;\nCREATE INDEX items_name_idx ON items (name);\n")},
		"migrations/README.md":            {Data: []byte("ignored")},
	}
}

func TestScanner_ScanMigrations(t *testing.T) {
	t.Parallel()

	migrations, err := NewScanner(testFiles(), "migrations").ScanMigrations()
	if err != nil {
		t.Fatalf("ScanMigrations failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != "001" || migrations[1].Description != "add names" {
		t.Fatalf("unexpected migrations: %+v", migrations)
	}
	if migrations[0].Checksum == "" {
		t.Fatal("expected checksum")
	}
}

func TestScanner_RejectsBadFiles(t *testing.T) {
	t.Parallel()

	cases := map[string]fstest.MapFS{
		"bad name":  {"m/create.sql": {Data: []byte("SELECT 1;")}},
		"empty":     {"m/001_empty.sql": {Data: []byte("  \n")}},
		"duplicate": {"m/001_a.sql": {Data: []byte("SELECT 1;")}, "m/1_b.sql": {Data: []byte("SELECT 1;")}},
	}
	for name, files := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := NewScanner(files, "m").ScanMigrations()
			var migrationErr *MigrationError
			if !errors.As(err, &migrationErr) {
				t.Fatalf("expected MigrationError, got %v", err)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	script := "-- header\nCREATE TABLE a (\n  id TEXT\n);\n\nCREATE INDEX a_idx ON a (id);\nSELECT 1"
	statements := SplitStatements(script)
	if len(statements) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(statements), statements)
	}
	if statements[2] != "SELECT 1" {
		t.Fatalf("expected trailing statement, got %q", statements[2])
	}
}

func TestManager_RunMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openDB(t)
	manager := NewManager(NewScanner(testFiles(), "migrations"), NewExecutor(db))

	applied, err := manager.RunMigrations(ctx)
	if err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 applied, got %d", applied)
	}

	applied, err = manager.RunMigrations(ctx)
	if err != nil || applied != 0 {
		t.Fatalf("expected rerun to be a no-op, got %d, %v", applied, err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.CurrentVersion != "002" || len(status.Applied) != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO items (id, name) VALUES ('a', 'b')`); err != nil {
		t.Fatalf("expected migrated schema, got %v", err)
	}
}

func TestManager_DetectsEditedMigration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openDB(t)
	files := testFiles()
	if _, err := NewManager(NewScanner(files, "migrations"), NewExecutor(db)).RunMigrations(ctx); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	files["migrations/001_create_items.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY);")}
	_, err := NewManager(NewScanner(files, "migrations"), NewExecutor(db)).Status(ctx)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestManager_FailedMigrationRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openDB(t)
	files := fstest.MapFS{
		"m/001_broken.sql": {Data: []byte("CREATE TABLE ok (id TEXT);\nCREATE TABLE broken (;\n")},
	}

	_, err := NewManager(NewScanner(files, "m"), NewExecutor(db)).RunMigrations(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}

	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM schema_migrations`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no recorded migrations, got %d", count)
	}
}
