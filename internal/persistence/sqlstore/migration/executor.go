package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// Executor runs migrations against a database and records them.
type Executor struct {
	db *sqlx.DB
}

// NewExecutor returns an executor bound to db. Queries are rebound to the
// driver's placeholder style.
func NewExecutor(db *sqlx.DB) *Executor {
	return &Executor{db: db}
}

// InitializeVersionTable creates schema_migrations if it does not exist.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL,
		checksum TEXT NOT NULL,
		execution_time_ms BIGINT NOT NULL
	)`
	if _, err := e.db.ExecContext(ctx, ddl); err != nil {
		return newMigrationError("", "schema_migrations", "create version table", err)
	}
	return nil
}

// ExecuteMigration runs every statement of m and records it in one transaction.
func (e *Executor) ExecuteMigration(ctx context.Context, m Migration, appliedAt time.Time) error {
	started := time.Now()
	statements := SplitStatements(m.SQL)
	if len(statements) == 0 {
		return newMigrationError(m.Version, m.FilePath, "parse SQL",
			fmt.Errorf("%w: no statements", ErrInvalidMigrationFile))
	}

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return newMigrationError(m.Version, m.FilePath, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return newMigrationError(m.Version, m.FilePath, fmt.Sprintf("execute statement %d", i+1),
				fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
	}

	record := tx.Rebind(`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`)
	elapsed := time.Since(started).Milliseconds()
	if _, err := tx.ExecContext(ctx, record, m.Version, appliedAt.UTC().Format(timestampLayout), m.Checksum, elapsed); err != nil {
		return newMigrationError(m.Version, m.FilePath, "record migration", err)
	}

	if err := tx.Commit(); err != nil {
		return newMigrationError(m.Version, m.FilePath, "commit", err)
	}
	return nil
}

type appliedRow struct {
	Version         string `db:"version"`
	AppliedAt       string `db:"applied_at"`
	Checksum        string `db:"checksum"`
	ExecutionTimeMS int64  `db:"execution_time_ms"`
}

// AppliedMigrations lists recorded migrations ordered by version.
func (e *Executor) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	var rows []appliedRow
	err := e.db.SelectContext(ctx, &rows, `SELECT version, applied_at, checksum, execution_time_ms FROM schema_migrations ORDER BY version`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, newMigrationError("", "schema_migrations", "list applied", err)
	}

	applied := make([]AppliedMigration, 0, len(rows))
	for _, row := range rows {
		at, _ := time.Parse(timestampLayout, row.AppliedAt)
		applied = append(applied, AppliedMigration{
			Version:       row.Version,
			AppliedAt:     at,
			ExecutionTime: time.Duration(row.ExecutionTimeMS) * time.Millisecond,
			Checksum:      row.Checksum,
		})
	}
	return applied, nil
}

// SplitStatements splits a script on semicolons that end a line, dropping
// comment-only lines and empty statements.
func SplitStatements(script string) []string {
	var (
		statements []string
		current    strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
			if strings.TrimSpace(stmt) != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}
