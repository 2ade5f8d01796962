// Package sqlstore implements the persistence repositories on database/sql
// through sqlx, for SQLite (modernc.org/sqlite) and PostgreSQL (lib/pq).
package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/gumwoo/fivlo/internal/persistence"
	"github.com/gumwoo/fivlo/internal/persistence/sqlstore/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var (
	_ persistence.UserRepository     = (*UserRepository)(nil)
	_ persistence.CategoryRepository = (*CategoryRepository)(nil)
	_ persistence.TaskRepository     = (*TaskRepository)(nil)
	_ persistence.LedgerRepository   = (*LedgerRepository)(nil)
	_ persistence.SessionRepository  = (*SessionRepository)(nil)
	_ persistence.ReminderRepository = (*ReminderRepository)(nil)
)

// Dialect names a supported database engine.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect maps a configured driver name onto a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported driver %q", name)
	}
}

func (d Dialect) driverName() string {
	return string(d)
}

func (d Dialect) placeholder() sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// Config describes how to open a Store.
type Config struct {
	Dialect Dialect
	DSN     string
	// MaxOpenConns bounds the pool. SQLite always uses a single connection.
	MaxOpenConns int
}

// Store owns the connection pool and hands out repositories bound to it.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	builder sq.StatementBuilderType
	mapper  *ErrorMapper
	now     func() time.Time
}

// Open connects to the database described by cfg and pings it.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Dialect == "" {
		cfg.Dialect = DialectSQLite
	}
	dsn := cfg.DSN
	if cfg.Dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.Open(cfg.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", cfg.Dialect, err)
	}
	switch {
	case cfg.Dialect == DialectSQLite:
		db.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", cfg.Dialect, err)
	}
	return New(db, cfg.Dialect), nil
}

// New wraps an existing connection.
func New(db *sqlx.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		builder: sq.StatementBuilder.PlaceholderFormat(dialect.placeholder()),
		mapper:  NewErrorMapper(),
		now:     time.Now,
	}
}

// sqliteDSN enables foreign keys, WAL and a busy timeout unless the caller
// already set pragmas.
func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "file:fivlo.db"
	}
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// DB exposes the underlying pool.
func (s *Store) DB() *sqlx.DB { return s.db }

// Dialect reports the engine the store talks to.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close releases the pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies pending embedded migrations and returns how many ran.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewExecutor(s.db),
	)
	return manager.RunMigrations(ctx)
}

// MigrationStatus reports applied and pending migrations.
func (s *Store) MigrationStatus(ctx context.Context) (migration.Status, error) {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewExecutor(s.db),
	)
	return manager.Status(ctx)
}

// Users returns the user repository.
func (s *Store) Users() *UserRepository { return &UserRepository{store: s} }

// Categories returns the category repository.
func (s *Store) Categories() *CategoryRepository { return &CategoryRepository{store: s} }

// Tasks returns the task repository.
func (s *Store) Tasks() *TaskRepository { return &TaskRepository{store: s} }

// Ledger returns the ledger repository.
func (s *Store) Ledger() *LedgerRepository { return &LedgerRepository{store: s} }

// Sessions returns the pomodoro session repository.
func (s *Store) Sessions() *SessionRepository { return &SessionRepository{store: s} }

// Reminders returns the reminder repository.
func (s *Store) Reminders() *ReminderRepository { return &ReminderRepository{store: s} }

// TransactionFunc runs inside WithTransaction.
type TransactionFunc func(tx *sqlx.Tx) error

// WithTransaction runs fn in a transaction, committing when it returns nil
// and rolling back otherwise. Errors are mapped to persistence sentinels.
func (s *Store) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.mapper.MapError(fmt.Errorf("begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return s.mapper.MapError(fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err))
		}
		return s.mapper.MapError(err)
	}

	if err := tx.Commit(); err != nil {
		return s.mapper.MapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}
