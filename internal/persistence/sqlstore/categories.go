package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gumwoo/fivlo/internal/persistence"
)

// CategoryRepository implements persistence.CategoryRepository.
type CategoryRepository struct {
	store *Store
}

type categoryRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Name      string `db:"name"`
	Color     string `db:"color"`
	CreatedAt string `db:"created_at"`
}

func (row categoryRow) toModel() (persistence.Category, error) {
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.Category{}, err
	}
	return persistence.Category{ID: row.ID, UserID: row.UserID, Name: row.Name, Color: row.Color, CreatedAt: created}, nil
}

func (r *CategoryRepository) CreateCategory(ctx context.Context, category persistence.Category) error {
	if category.ID == "" || category.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = r.store.now()
	}
	query := r.store.rebind(`INSERT INTO categories (id, user_id, name, color, created_at) VALUES (?, ?, ?, ?, ?)`)
	_, err := r.store.db.ExecContext(ctx, query, category.ID, category.UserID, category.Name, category.Color, formatTime(category.CreatedAt))
	return r.store.mapper.MapError(err)
}

func (r *CategoryRepository) GetCategory(ctx context.Context, userID, id string) (persistence.Category, error) {
	var row categoryRow
	query := r.store.rebind(`SELECT id, user_id, name, color, created_at FROM categories WHERE id = ? AND user_id = ?`)
	if err := r.store.db.GetContext(ctx, &row, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Category{}, persistence.ErrNotFound
		}
		return persistence.Category{}, r.store.mapper.MapError(err)
	}
	return row.toModel()
}

func (r *CategoryRepository) ListCategories(ctx context.Context, userID string) ([]persistence.Category, error) {
	var rows []categoryRow
	query := r.store.rebind(`SELECT id, user_id, name, color, created_at FROM categories WHERE user_id = ? ORDER BY name, id`)
	if err := r.store.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, r.store.mapper.MapError(err)
	}
	categories := make([]persistence.Category, 0, len(rows))
	for _, row := range rows {
		category, err := row.toModel()
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, nil
}

// DeleteCategory removes the category. Instances keep their denormalized
// name and color.
func (r *CategoryRepository) DeleteCategory(ctx context.Context, userID, id string) error {
	query := r.store.rebind(`DELETE FROM categories WHERE id = ? AND user_id = ?`)
	result, err := r.store.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	return requireAffected(result)
}
