package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gumwoo/fivlo/internal/persistence"
	"github.com/gumwoo/fivlo/internal/persistence/sqlstore"
)

// SQLiteHarness provides repository access backed by a migrated temporary
// SQLite database.
type SQLiteHarness struct {
	Store      *sqlstore.Store
	Users      *sqlstore.UserRepository
	Categories *sqlstore.CategoryRepository
	Tasks      *sqlstore.TaskRepository
	Ledger     *sqlstore.LedgerRepository
	Sessions   *sqlstore.SessionRepository
	Reminders  *sqlstore.ReminderRepository
}

// Close releases the database.
func (h *SQLiteHarness) Close() {
	if h != nil && h.Store != nil {
		_ = h.Store.Close()
	}
}

// NewSQLiteHarness opens and migrates a database under tb.TempDir. The store
// is closed by a cleanup registered with tb.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(tb.TempDir(), "fivlo.db")
	store, err := sqlstore.Open(ctx, sqlstore.Config{Dialect: sqlstore.DialectSQLite, DSN: dsn})
	if err != nil {
		tb.Fatalf("failed to open store: %v", err)
	}
	if _, err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate store: %v", err)
	}

	harness := &SQLiteHarness{
		Store:      store,
		Users:      store.Users(),
		Categories: store.Categories(),
		Tasks:      store.Tasks(),
		Ledger:     store.Ledger(),
		Sessions:   store.Sessions(),
		Reminders:  store.Reminders(),
	}
	tb.Cleanup(harness.Close)
	return harness
}

// SeedUser stores a generated user and returns it.
func (h *SQLiteHarness) SeedUser(tb testing.TB, opts ...UserOption) persistence.User {
	tb.Helper()
	user := NewUser(opts...)
	if err := h.Users.CreateUser(context.Background(), user); err != nil {
		tb.Fatalf("failed to seed user: %v", err)
	}
	return user
}

// Balance returns the cached balance and the ledger sum for userID.
func (h *SQLiteHarness) Balance(tb testing.TB, userID string) (cached, sum int64) {
	tb.Helper()
	ctx := context.Background()
	user, err := h.Users.GetUser(ctx, userID)
	if err != nil {
		tb.Fatalf("failed to load user: %v", err)
	}
	sum, err = h.Ledger.SumEntries(ctx, userID)
	if err != nil {
		tb.Fatalf("failed to sum ledger: %v", err)
	}
	return user.CoinBalance, sum
}

