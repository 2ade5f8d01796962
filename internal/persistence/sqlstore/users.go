package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gumwoo/fivlo/internal/persistence"
)

// UserRepository implements persistence.UserRepository.
type UserRepository struct {
	store *Store
}

type userRow struct {
	ID             string        `db:"id"`
	Email          string        `db:"email"`
	DisplayName    string        `db:"display_name"`
	PasswordHash   string        `db:"password_hash"`
	Timezone       string        `db:"timezone"`
	Premium        bool          `db:"premium"`
	TelegramChatID sql.NullInt64 `db:"telegram_chat_id"`
	CoinBalance    int64         `db:"coin_balance"`
	CreatedAt      string        `db:"created_at"`
	UpdatedAt      string        `db:"updated_at"`
}

const userColumns = `id, email, display_name, password_hash, timezone, premium, telegram_chat_id, coin_balance, created_at, updated_at`

func (row userRow) toModel() (persistence.User, error) {
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.User{}, err
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return persistence.User{}, err
	}
	return persistence.User{
		ID:             row.ID,
		Email:          row.Email,
		DisplayName:    row.DisplayName,
		PasswordHash:   row.PasswordHash,
		Timezone:       row.Timezone,
		Premium:        row.Premium,
		TelegramChatID: int64Ptr(row.TelegramChatID),
		CoinBalance:    row.CoinBalance,
		CreatedAt:      created,
		UpdatedAt:      updated,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a user with a zero balance.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.store.now()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	query := r.store.rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`)
	_, err := r.store.db.ExecContext(ctx, query,
		user.ID,
		normalizeEmail(user.Email),
		user.DisplayName,
		user.PasswordHash,
		user.Timezone,
		user.Premium,
		nullInt64(user.TelegramChatID),
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	return r.store.mapper.MapError(err)
}

// UpdateUser updates profile fields. The coin balance is never written here.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = r.store.now()
	}

	query := r.store.rebind(`UPDATE users
		SET email = ?, display_name = ?, password_hash = ?, timezone = ?, premium = ?, telegram_chat_id = ?, updated_at = ?
		WHERE id = ?`)
	result, err := r.store.db.ExecContext(ctx, query,
		normalizeEmail(user.Email),
		user.DisplayName,
		user.PasswordHash,
		user.Timezone,
		user.Premium,
		nullInt64(user.TelegramChatID),
		formatTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetUser loads a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail loads a user by case-insensitive email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email))
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (persistence.User, error) {
	var row userRow
	if err := r.store.db.GetContext(ctx, &row, r.store.rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, r.store.mapper.MapError(err)
	}
	return row.toModel()
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
