package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/gumwoo/fivlo/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository.
type SessionRepository struct {
	store *Store
}

type sessionRow struct {
	ID              string         `db:"id"`
	UserID          string         `db:"user_id"`
	Goal            string         `db:"goal"`
	Kind            string         `db:"kind"`
	Status          string         `db:"status"`
	StartedAt       string         `db:"started_at"`
	EndedAt         sql.NullString `db:"ended_at"`
	PlannedSeconds  int            `db:"planned_seconds"`
	DurationSeconds int            `db:"duration_seconds"`
}

var sessionColumns = []string{"id", "user_id", "goal", "kind", "status", "started_at", "ended_at", "planned_seconds", "duration_seconds"}

func (row sessionRow) toModel() (persistence.PomodoroSession, error) {
	started, err := parseTime(row.StartedAt)
	if err != nil {
		return persistence.PomodoroSession{}, err
	}
	ended, err := parseNullTime(row.EndedAt)
	if err != nil {
		return persistence.PomodoroSession{}, err
	}
	return persistence.PomodoroSession{
		ID:              row.ID,
		UserID:          row.UserID,
		Goal:            row.Goal,
		Kind:            row.Kind,
		Status:          row.Status,
		StartedAt:       started,
		EndedAt:         ended,
		PlannedSeconds:  row.PlannedSeconds,
		DurationSeconds: row.DurationSeconds,
	}, nil
}

// CreateSession stores a session. A second running session for the same
// user is rejected with persistence.ErrDuplicate.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.PomodoroSession) error {
	if session.ID == "" || session.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	query, args, err := r.store.builder.
		Insert("pomodoro_sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.Goal,
			session.Kind,
			session.Status,
			formatTime(session.StartedAt),
			formatNullTime(session.EndedAt),
			session.PlannedSeconds,
			session.DurationSeconds,
		).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.store.db.ExecContext(ctx, query, args...)
	return r.store.mapper.MapError(err)
}

func (r *SessionRepository) GetSession(ctx context.Context, userID, id string) (persistence.PomodoroSession, error) {
	return r.getOne(ctx, sq.Eq{"id": id, "user_id": userID})
}

func (r *SessionRepository) GetRunningSession(ctx context.Context, userID string) (persistence.PomodoroSession, error) {
	return r.getOne(ctx, sq.Eq{"user_id": userID, "status": persistence.SessionRunning})
}

func (r *SessionRepository) getOne(ctx context.Context, where sq.Eq) (persistence.PomodoroSession, error) {
	query, args, err := r.store.builder.Select(sessionColumns...).From("pomodoro_sessions").Where(where).Limit(1).ToSql()
	if err != nil {
		return persistence.PomodoroSession{}, err
	}
	var row sessionRow
	if err := r.store.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.PomodoroSession{}, persistence.ErrNotFound
		}
		return persistence.PomodoroSession{}, r.store.mapper.MapError(err)
	}
	return row.toModel()
}

// FinishSession writes the terminal status only while the stored row is
// still running, so finished sessions stay immutable.
func (r *SessionRepository) FinishSession(ctx context.Context, session persistence.PomodoroSession) error {
	query, args, err := r.store.builder.
		Update("pomodoro_sessions").
		Set("status", session.Status).
		Set("ended_at", formatNullTime(session.EndedAt)).
		Set("duration_seconds", session.DurationSeconds).
		Where(sq.Eq{"id": session.ID, "user_id": session.UserID, "status": persistence.SessionRunning}).
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

// ListSessions returns sessions started in [from, to) ordered by start.
func (r *SessionRepository) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]persistence.PomodoroSession, error) {
	query, args, err := r.store.builder.
		Select(sessionColumns...).
		From("pomodoro_sessions").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.GtOrEq{"started_at": formatTime(from)}).
		Where(sq.Lt{"started_at": formatTime(to)}).
		OrderBy("started_at", "id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []sessionRow
	if err := r.store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.store.mapper.MapError(err)
	}
	sessions := make([]persistence.PomodoroSession, 0, len(rows))
	for _, row := range rows {
		session, err := row.toModel()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}
