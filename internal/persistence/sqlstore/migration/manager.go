package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gumwoo/fivlo/internal/logging"
)

// Manager orchestrates scanning and applying migrations.
type Manager struct {
	scanner  *Scanner
	executor *Executor
	now      func() time.Time
}

// NewManager wires a scanner and an executor.
func NewManager(scanner *Scanner, executor *Executor) *Manager {
	return &Manager{scanner: scanner, executor: executor, now: time.Now}
}

// RunMigrations applies every pending migration in version order and returns
// how many were applied.
func (m *Manager) RunMigrations(ctx context.Context) (int, error) {
	logger := logging.FromContext(ctx).With(slog.String("component", "migration"))

	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	if len(status.Pending) == 0 {
		logger.InfoContext(ctx, "schema up to date", slog.String("version", status.CurrentVersion))
		return 0, nil
	}

	for i, migration := range status.Pending {
		logger.InfoContext(ctx, "applying migration",
			slog.String("version", migration.Version),
			slog.String("description", migration.Description),
			slog.Int("step", i+1),
			slog.Int("total", len(status.Pending)),
		)
		if err := m.executor.ExecuteMigration(ctx, migration, m.now()); err != nil {
			logger.ErrorContext(ctx, "migration failed", slog.String("version", migration.Version), slog.Any("error", err))
			return i, err
		}
	}

	logger.InfoContext(ctx, "migrations applied", slog.Int("count", len(status.Pending)))
	return len(status.Pending), nil
}

// Status compares the available migrations against the version table.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}

	available, err := m.scanner.ScanMigrations()
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return Status{}, err
	}

	checksums := make(map[string]string, len(applied))
	for _, a := range applied {
		checksums[a.Version] = a.Checksum
	}

	status := Status{Applied: applied}
	for _, migration := range available {
		sum, ok := checksums[migration.Version]
		if !ok {
			status.Pending = append(status.Pending, migration)
			continue
		}
		if sum != migration.Checksum {
			return Status{}, newMigrationError(migration.Version, migration.FilePath, "verify checksum",
				fmt.Errorf("%w: recorded %s, file %s", ErrChecksumMismatch, sum, migration.Checksum))
		}
		status.CurrentVersion = migration.Version
	}
	return status, nil
}
