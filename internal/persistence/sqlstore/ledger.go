package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/persistence"
)

// LedgerRepository implements persistence.LedgerRepository.
type LedgerRepository struct {
	store *Store
}

type ledgerRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	Amount    int64          `db:"amount"`
	Reason    string         `db:"reason"`
	EntryDay  string         `db:"entry_day"`
	DedupeKey sql.NullString `db:"dedupe_key"`
	Reference sql.NullString `db:"reference"`
	CreatedAt string         `db:"created_at"`
}

const ledgerColumns = `id, user_id, amount, reason, entry_day, dedupe_key, reference, created_at`

func (row ledgerRow) toModel() (persistence.LedgerEntry, error) {
	day, err := calendar.Parse(row.EntryDay)
	if err != nil {
		return persistence.LedgerEntry{}, err
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.LedgerEntry{}, err
	}
	return persistence.LedgerEntry{
		ID:        row.ID,
		UserID:    row.UserID,
		Amount:    row.Amount,
		Reason:    row.Reason,
		EntryDay:  day,
		DedupeKey: stringPtr(row.DedupeKey),
		Reference: stringPtr(row.Reference),
		CreatedAt: created,
	}, nil
}

// AppendEntry inserts entry and applies its amount to the cached balance in
// the same transaction. When the dedupe key already exists nothing is
// written and Inserted is false. A debit that would overdraw the balance
// returns persistence.ErrInsufficientFunds and leaves both tables unchanged.
func (r *LedgerRepository) AppendEntry(ctx context.Context, entry persistence.LedgerEntry) (persistence.AppendResult, error) {
	if entry.ID == "" || entry.UserID == "" || entry.Reason == "" {
		return persistence.AppendResult{}, persistence.ErrConstraintViolation
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.store.now()
	}

	var result persistence.AppendResult
	err := r.store.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		insert := tx.Rebind(`INSERT INTO ledger_entries (` + ledgerColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`)
		res, err := tx.ExecContext(ctx, insert,
			entry.ID,
			entry.UserID,
			entry.Amount,
			entry.Reason,
			entry.EntryDay.String(),
			nullString(entry.DedupeKey),
			nullString(entry.Reference),
			formatTime(entry.CreatedAt),
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if affected == 0 {
			balance, err := selectBalance(ctx, tx, entry.UserID)
			if err != nil {
				return err
			}
			result = persistence.AppendResult{Inserted: false, Balance: balance}
			return nil
		}

		update := tx.Rebind(`UPDATE users SET coin_balance = coin_balance + ?, updated_at = ? WHERE id = ? AND coin_balance + ? >= 0`)
		res, err = tx.ExecContext(ctx, update, entry.Amount, formatTime(entry.CreatedAt), entry.UserID, entry.Amount)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			if _, err := selectBalance(ctx, tx, entry.UserID); err != nil {
				return err
			}
			return persistence.ErrInsufficientFunds
		}

		balance, err := selectBalance(ctx, tx, entry.UserID)
		if err != nil {
			return err
		}
		result = persistence.AppendResult{Inserted: true, Entry: entry, Balance: balance}
		return nil
	})
	if err != nil {
		return persistence.AppendResult{}, err
	}
	return result, nil
}

func selectBalance(ctx context.Context, tx *sqlx.Tx, userID string) (int64, error) {
	var balance int64
	if err := tx.GetContext(ctx, &balance, tx.Rebind(`SELECT coin_balance FROM users WHERE id = ?`), userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("user %s: %w", userID, persistence.ErrNotFound)
		}
		return 0, err
	}
	return balance, nil
}

// ListEntries returns the newest entries first. A non-positive limit returns
// every entry.
func (r *LedgerRepository) ListEntries(ctx context.Context, userID string, limit int) ([]persistence.LedgerEntry, error) {
	builder := r.store.builder.
		Select(ledgerColumns).
		From("ledger_entries").
		Where("user_id = ?", userID).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []ledgerRow
	if err := r.store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.store.mapper.MapError(err)
	}
	entries := make([]persistence.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toModel()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SumEntries totals every entry for the user.
func (r *LedgerRepository) SumEntries(ctx context.Context, userID string) (int64, error) {
	var total int64
	query := r.store.rebind(`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = ?`)
	if err := r.store.db.GetContext(ctx, &total, query, userID); err != nil {
		return 0, r.store.mapper.MapError(err)
	}
	return total, nil
}

// HasEntry reports whether an entry exists for the dedupe key.
func (r *LedgerRepository) HasEntry(ctx context.Context, userID, reason, dedupeKey string) (bool, error) {
	var count int
	query := r.store.rebind(`SELECT COUNT(*) FROM ledger_entries WHERE user_id = ? AND reason = ? AND dedupe_key = ?`)
	if err := r.store.db.GetContext(ctx, &count, query, userID, reason, dedupeKey); err != nil {
		return false, r.store.mapper.MapError(err)
	}
	return count > 0, nil
}
