package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/persistence"
)

// ReminderRepository implements persistence.ReminderRepository.
type ReminderRepository struct {
	store *Store
}

type reminderRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Title     string `db:"title"`
	TimeOfDay string `db:"time_of_day"`
	Weekdays  string `db:"weekdays"`
	Active    bool   `db:"active"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

var reminderColumns = []string{"id", "user_id", "title", "time_of_day", "weekdays", "active", "created_at", "updated_at"}

func (row reminderRow) toModel() (persistence.Reminder, error) {
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.Reminder{}, err
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return persistence.Reminder{}, err
	}
	return persistence.Reminder{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		TimeOfDay: row.TimeOfDay,
		Weekdays:  calendar.SplitWeekdays(row.Weekdays),
		Active:    row.Active,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

type checkRow struct {
	ReminderID string `db:"reminder_id"`
	UserID     string `db:"user_id"`
	Day        string `db:"day"`
	CheckedAt  string `db:"checked_at"`
}

func (r *ReminderRepository) CreateReminder(ctx context.Context, reminder persistence.Reminder) error {
	if reminder.ID == "" || reminder.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = r.store.now()
	}
	if reminder.UpdatedAt.IsZero() {
		reminder.UpdatedAt = reminder.CreatedAt
	}
	query, args, err := r.store.builder.
		Insert("reminders").
		Columns(reminderColumns...).
		Values(
			reminder.ID,
			reminder.UserID,
			reminder.Title,
			reminder.TimeOfDay,
			calendar.FormatWeekdays(reminder.Weekdays),
			reminder.Active,
			formatTime(reminder.CreatedAt),
			formatTime(reminder.UpdatedAt),
		).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.store.db.ExecContext(ctx, query, args...)
	return r.store.mapper.MapError(err)
}

func (r *ReminderRepository) UpdateReminder(ctx context.Context, reminder persistence.Reminder) error {
	if reminder.UpdatedAt.IsZero() {
		reminder.UpdatedAt = r.store.now()
	}
	query, args, err := r.store.builder.
		Update("reminders").
		Set("title", reminder.Title).
		Set("time_of_day", reminder.TimeOfDay).
		Set("weekdays", calendar.FormatWeekdays(reminder.Weekdays)).
		Set("active", reminder.Active).
		Set("updated_at", formatTime(reminder.UpdatedAt)).
		Where(sq.Eq{"id": reminder.ID, "user_id": reminder.UserID}).
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

func (r *ReminderRepository) GetReminder(ctx context.Context, userID, id string) (persistence.Reminder, error) {
	query, args, err := r.store.builder.Select(reminderColumns...).From("reminders").Where(sq.Eq{"id": id, "user_id": userID}).ToSql()
	if err != nil {
		return persistence.Reminder{}, err
	}
	var row reminderRow
	if err := r.store.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Reminder{}, persistence.ErrNotFound
		}
		return persistence.Reminder{}, r.store.mapper.MapError(err)
	}
	return row.toModel()
}

func (r *ReminderRepository) ListReminders(ctx context.Context, userID string) ([]persistence.Reminder, error) {
	return r.list(ctx, sq.Eq{"user_id": userID})
}

// ListActiveReminders returns active reminders of every user.
func (r *ReminderRepository) ListActiveReminders(ctx context.Context) ([]persistence.Reminder, error) {
	return r.list(ctx, sq.Eq{"active": true})
}

func (r *ReminderRepository) list(ctx context.Context, where sq.Eq) ([]persistence.Reminder, error) {
	query, args, err := r.store.builder.
		Select(reminderColumns...).
		From("reminders").
		Where(where).
		OrderBy("user_id", "time_of_day", "title", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var rows []reminderRow
	if err := r.store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.store.mapper.MapError(err)
	}
	reminders := make([]persistence.Reminder, 0, len(rows))
	for _, row := range rows {
		reminder, err := row.toModel()
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	return reminders, nil
}

func (r *ReminderRepository) DeleteReminder(ctx context.Context, userID, id string) error {
	query := r.store.rebind(`DELETE FROM reminders WHERE id = ? AND user_id = ?`)
	result, err := r.store.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return r.store.mapper.MapError(err)
	}
	return requireAffected(result)
}

// RecordCheck stores a (reminder, day) check. Repeating it is a no-op.
func (r *ReminderRepository) RecordCheck(ctx context.Context, check persistence.ReminderCheck) (bool, error) {
	if check.CheckedAt.IsZero() {
		check.CheckedAt = r.store.now()
	}
	query := r.store.rebind(`INSERT INTO reminder_checks (reminder_id, user_id, day, checked_at) VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`)
	result, err := r.store.db.ExecContext(ctx, query, check.ReminderID, check.UserID, check.Day.String(), formatTime(check.CheckedAt))
	if err != nil {
		return false, r.store.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ReminderRepository) ListChecks(ctx context.Context, userID string, day calendar.Date) ([]persistence.ReminderCheck, error) {
	var rows []checkRow
	query := r.store.rebind(`SELECT reminder_id, user_id, day, checked_at FROM reminder_checks WHERE user_id = ? AND day = ? ORDER BY reminder_id`)
	if err := r.store.db.SelectContext(ctx, &rows, query, userID, day.String()); err != nil {
		return nil, r.store.mapper.MapError(err)
	}
	checks := make([]persistence.ReminderCheck, 0, len(rows))
	for _, row := range rows {
		d, err := calendar.Parse(row.Day)
		if err != nil {
			return nil, err
		}
		at, err := parseTime(row.CheckedAt)
		if err != nil {
			return nil, err
		}
		checks = append(checks, persistence.ReminderCheck{ReminderID: row.ReminderID, UserID: row.UserID, Day: d, CheckedAt: at})
	}
	return checks, nil
}
