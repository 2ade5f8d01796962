package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/persistence"
)

// TaskRepository implements persistence.TaskRepository.
type TaskRepository struct {
	store *Store
}

type templateRow struct {
	ID         string         `db:"id"`
	UserID     string         `db:"user_id"`
	Title      string         `db:"title"`
	CategoryID sql.NullString `db:"category_id"`
	StartsOn   string         `db:"starts_on"`
	TimeOfDay  sql.NullString `db:"time_of_day"`
	Priority   int            `db:"priority"`
	Repeat     string         `db:"repeat_type"`
	Weekdays   string         `db:"weekdays"`
	EndsOn     sql.NullString `db:"ends_on"`
	CreatedAt  string         `db:"created_at"`
	UpdatedAt  string         `db:"updated_at"`
}

const templateColumns = `id, user_id, title, category_id, starts_on, time_of_day, priority, repeat_type, weekdays, ends_on, created_at, updated_at`

func (row templateRow) toModel() (persistence.TaskTemplate, error) {
	startsOn, err := calendar.Parse(row.StartsOn)
	if err != nil {
		return persistence.TaskTemplate{}, err
	}
	endsOn, err := datePtr(row.EndsOn)
	if err != nil {
		return persistence.TaskTemplate{}, err
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.TaskTemplate{}, err
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return persistence.TaskTemplate{}, err
	}
	return persistence.TaskTemplate{
		ID:         row.ID,
		UserID:     row.UserID,
		Title:      row.Title,
		CategoryID: stringPtr(row.CategoryID),
		StartsOn:   startsOn,
		TimeOfDay:  stringPtr(row.TimeOfDay),
		Priority:   row.Priority,
		Repeat:     row.Repeat,
		Weekdays:   calendar.SplitWeekdays(row.Weekdays),
		EndsOn:     endsOn,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

type instanceRow struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	TemplateID    sql.NullString `db:"template_id"`
	Title         string         `db:"title"`
	DueOn         string         `db:"due_on"`
	TimeOfDay     sql.NullString `db:"time_of_day"`
	Priority      int            `db:"priority"`
	CategoryID    sql.NullString `db:"category_id"`
	CategoryName  sql.NullString `db:"category_name"`
	CategoryColor sql.NullString `db:"category_color"`
	Completed     bool           `db:"completed"`
	CompletedAt   sql.NullString `db:"completed_at"`
	CreatedAt     string         `db:"created_at"`
	UpdatedAt     string         `db:"updated_at"`
}

var instanceColumns = []string{
	"id", "user_id", "template_id", "title", "due_on", "time_of_day", "priority",
	"category_id", "category_name", "category_color", "completed", "completed_at",
	"created_at", "updated_at",
}

func (row instanceRow) toModel() (persistence.TaskInstance, error) {
	due, err := calendar.Parse(row.DueOn)
	if err != nil {
		return persistence.TaskInstance{}, err
	}
	completedAt, err := parseNullTime(row.CompletedAt)
	if err != nil {
		return persistence.TaskInstance{}, err
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.TaskInstance{}, err
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return persistence.TaskInstance{}, err
	}
	return persistence.TaskInstance{
		ID:            row.ID,
		UserID:        row.UserID,
		TemplateID:    stringPtr(row.TemplateID),
		Title:         row.Title,
		DueOn:         due,
		TimeOfDay:     stringPtr(row.TimeOfDay),
		Priority:      row.Priority,
		CategoryID:    stringPtr(row.CategoryID),
		CategoryName:  stringPtr(row.CategoryName),
		CategoryColor: stringPtr(row.CategoryColor),
		Completed:     row.Completed,
		CompletedAt:   completedAt,
		CreatedAt:     created,
		UpdatedAt:     updated,
	}, nil
}

func (r *TaskRepository) CreateTemplate(ctx context.Context, template persistence.TaskTemplate) error {
	return r.store.mapper.MapError(r.insertTemplate(ctx, r.store.db, template))
}

// CreateSeries writes the template and its instances in one transaction, so
// a failed instance insert leaves no template behind.
func (r *TaskRepository) CreateSeries(ctx context.Context, template persistence.TaskTemplate, instances []persistence.TaskInstance) (int, error) {
	inserted := 0
	err := r.store.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.insertTemplate(ctx, tx, template); err != nil {
			return err
		}
		var err error
		inserted, err = r.insertInstances(ctx, tx, instances)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *TaskRepository) insertTemplate(ctx context.Context, exec sqlx.ExecerContext, template persistence.TaskTemplate) error {
	if template.ID == "" || template.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	if template.CreatedAt.IsZero() {
		template.CreatedAt = r.store.now()
	}
	if template.UpdatedAt.IsZero() {
		template.UpdatedAt = template.CreatedAt
	}
	query := r.store.rebind(`INSERT INTO task_templates (` + templateColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := exec.ExecContext(ctx, query,
		template.ID,
		template.UserID,
		template.Title,
		nullString(template.CategoryID),
		template.StartsOn.String(),
		nullString(template.TimeOfDay),
		template.Priority,
		template.Repeat,
		calendar.FormatWeekdays(template.Weekdays),
		nullDate(template.EndsOn),
		formatTime(template.CreatedAt),
		formatTime(template.UpdatedAt),
	)
	return err
}

func (r *TaskRepository) GetTemplate(ctx context.Context, userID, id string) (persistence.TaskTemplate, error) {
	var row templateRow
	query := r.store.rebind(`SELECT ` + templateColumns + ` FROM task_templates WHERE id = ? AND user_id = ?`)
	if err := r.store.db.GetContext(ctx, &row, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.TaskTemplate{}, persistence.ErrNotFound
		}
		return persistence.TaskTemplate{}, r.store.mapper.MapError(err)
	}
	return row.toModel()
}

func (r *TaskRepository) UpdateTemplate(ctx context.Context, template persistence.TaskTemplate) error {
	return r.store.mapper.MapError(r.updateTemplate(ctx, r.store.db, template))
}

func (r *TaskRepository) updateTemplate(ctx context.Context, exec sqlx.ExecerContext, template persistence.TaskTemplate) error {
	if template.UpdatedAt.IsZero() {
		template.UpdatedAt = r.store.now()
	}
	query := r.store.rebind(`UPDATE task_templates
		SET title = ?, category_id = ?, time_of_day = ?, priority = ?, repeat_type = ?, weekdays = ?, ends_on = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`)
	result, err := exec.ExecContext(ctx, query,
		template.Title,
		nullString(template.CategoryID),
		nullString(template.TimeOfDay),
		template.Priority,
		template.Repeat,
		calendar.FormatWeekdays(template.Weekdays),
		nullDate(template.EndsOn),
		formatTime(template.UpdatedAt),
		template.ID,
		template.UserID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// ReplaceSeries updates the template, drops its incomplete instances due on or
// after from and inserts the replacements, all in one transaction.
func (r *TaskRepository) ReplaceSeries(ctx context.Context, template persistence.TaskTemplate, from calendar.Date, instances []persistence.TaskInstance) (int, error) {
	inserted := 0
	err := r.store.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.updateTemplate(ctx, tx, template); err != nil {
			return err
		}
		if _, err := r.deleteFutureIncomplete(ctx, tx, template.ID, from); err != nil {
			return err
		}
		var err error
		inserted, err = r.insertInstances(ctx, tx, instances)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// DeleteTemplate removes the template and its instances in one transaction.
func (r *TaskRepository) DeleteTemplate(ctx context.Context, userID, id string) error {
	return r.store.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM task_instances WHERE template_id = ? AND user_id = ?`), id, userID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM task_templates WHERE id = ? AND user_id = ?`), id, userID)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

// InsertInstances writes all instances in one transaction. Rows colliding
// on (template_id, due_on) are skipped.
func (r *TaskRepository) InsertInstances(ctx context.Context, instances []persistence.TaskInstance) (int, error) {
	if len(instances) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.store.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		inserted, err = r.insertInstances(ctx, tx, instances)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *TaskRepository) insertInstances(ctx context.Context, tx *sqlx.Tx, instances []persistence.TaskInstance) (int, error) {
	inserted := 0
	for _, instance := range instances {
		if instance.ID == "" || instance.UserID == "" {
			return 0, persistence.ErrConstraintViolation
		}
		query, args, err := r.store.builder.
			Insert("task_instances").
			Columns(instanceColumns...).
			Values(r.instanceValues(instance)...).
			Suffix("ON CONFLICT DO NOTHING").
			ToSql()
		if err != nil {
			return 0, err
		}
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(affected)
	}
	return inserted, nil
}

func (r *TaskRepository) instanceValues(instance persistence.TaskInstance) []any {
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = r.store.now()
	}
	if instance.UpdatedAt.IsZero() {
		instance.UpdatedAt = instance.CreatedAt
	}
	return []any{
		instance.ID,
		instance.UserID,
		nullString(instance.TemplateID),
		instance.Title,
		instance.DueOn.String(),
		nullString(instance.TimeOfDay),
		instance.Priority,
		nullString(instance.CategoryID),
		nullString(instance.CategoryName),
		nullString(instance.CategoryColor),
		instance.Completed,
		formatNullTime(instance.CompletedAt),
		formatTime(instance.CreatedAt),
		formatTime(instance.UpdatedAt),
	}
}

func (r *TaskRepository) GetInstance(ctx context.Context, userID, id string) (persistence.TaskInstance, error) {
	query, args, err := r.store.builder.
		Select(instanceColumns...).
		From("task_instances").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return persistence.TaskInstance{}, err
	}

	var row instanceRow
	if err := r.store.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.TaskInstance{}, persistence.ErrNotFound
		}
		return persistence.TaskInstance{}, r.store.mapper.MapError(err)
	}
	return row.toModel()
}

func (r *TaskRepository) UpdateInstance(ctx context.Context, instance persistence.TaskInstance) error {
	if instance.UpdatedAt.IsZero() {
		instance.UpdatedAt = r.store.now()
	}
	query, args, err := r.store.builder.
		Update("task_instances").
		SetMap(map[string]any{
			"title":          instance.Title,
			"due_on":         instance.DueOn.String(),
			"time_of_day":    nullString(instance.TimeOfDay),
			"priority":       instance.Priority,
			"category_id":    nullString(instance.CategoryID),
			"category_name":  nullString(instance.CategoryName),
			"category_color": nullString(instance.CategoryColor),
			"completed":      instance.Completed,
			"completed_at":   formatNullTime(instance.CompletedAt),
			"updated_at":     formatTime(instance.UpdatedAt),
		}).
		Where(sq.Eq{"id": instance.ID, "user_id": instance.UserID}).
		ToSql()
	if err != nil {
		return err
	}
	result, err := r.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	return requireAffected(result)
}

func (r *TaskRepository) DeleteInstance(ctx context.Context, userID, id string) error {
	query := r.store.rebind(`DELETE FROM task_instances WHERE id = ? AND user_id = ?`)
	result, err := r.store.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	return requireAffected(result)
}

func (r *TaskRepository) DeleteFutureIncomplete(ctx context.Context, templateID string, from calendar.Date) (int, error) {
	deleted, err := r.deleteFutureIncomplete(ctx, r.store.db, templateID, from)
	if err != nil {
		return 0, r.store.mapper.MapError(err)
	}
	return deleted, nil
}

func (r *TaskRepository) deleteFutureIncomplete(ctx context.Context, exec sqlx.ExecerContext, templateID string, from calendar.Date) (int, error) {
	query, args, err := r.store.builder.
		Delete("task_instances").
		Where(sq.Eq{"template_id": templateID, "completed": false}).
		Where(sq.GtOrEq{"due_on": from.String()}).
		ToSql()
	if err != nil {
		return 0, err
	}
	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// ListInstances returns instances ordered by day, time of day (untimed last),
// priority and title.
func (r *TaskRepository) ListInstances(ctx context.Context, filter persistence.InstanceFilter) ([]persistence.TaskInstance, error) {
	builder := r.store.builder.
		Select(instanceColumns...).
		From("task_instances").
		OrderBy("due_on", "CASE WHEN time_of_day IS NULL THEN 1 ELSE 0 END", "time_of_day", "priority", "title", "id")

	if filter.UserID != "" {
		builder = builder.Where(sq.Eq{"user_id": filter.UserID})
	}
	if !filter.From.IsZero() {
		builder = builder.Where(sq.GtOrEq{"due_on": filter.From.String()})
	}
	if !filter.To.IsZero() {
		builder = builder.Where(sq.LtOrEq{"due_on": filter.To.String()})
	}
	if filter.TemplateID != "" {
		builder = builder.Where(sq.Eq{"template_id": filter.TemplateID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []instanceRow
	if err := r.store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.store.mapper.MapError(err)
	}
	instances := make([]persistence.TaskInstance, 0, len(rows))
	for _, row := range rows {
		instance, err := row.toModel()
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	return instances, nil
}
