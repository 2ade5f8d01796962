package persistence

import (
	"context"
	"time"

	"github.com/gumwoo/fivlo/internal/calendar"
)

// UserRepository stores accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// CategoryRepository stores task categories.
type CategoryRepository interface {
	CreateCategory(ctx context.Context, category Category) error
	GetCategory(ctx context.Context, userID, id string) (Category, error)
	ListCategories(ctx context.Context, userID string) ([]Category, error)
	DeleteCategory(ctx context.Context, userID, id string) error
}

// TaskRepository stores templates and their dated instances.
type TaskRepository interface {
	CreateTemplate(ctx context.Context, template TaskTemplate) error
	// CreateSeries stores a template together with its instances, or neither.
	CreateSeries(ctx context.Context, template TaskTemplate, instances []TaskInstance) (int, error)
	GetTemplate(ctx context.Context, userID, id string) (TaskTemplate, error)
	UpdateTemplate(ctx context.Context, template TaskTemplate) error
	// ReplaceSeries updates the template and swaps its incomplete instances
	// due on or after from for instances, as one unit.
	ReplaceSeries(ctx context.Context, template TaskTemplate, from calendar.Date, instances []TaskInstance) (int, error)
	// DeleteTemplate removes the template and every instance generated from it.
	DeleteTemplate(ctx context.Context, userID, id string) error

	// InsertInstances stores instances, skipping any whose (template, day)
	// already exists, and returns how many rows were new.
	InsertInstances(ctx context.Context, instances []TaskInstance) (int, error)
	GetInstance(ctx context.Context, userID, id string) (TaskInstance, error)
	UpdateInstance(ctx context.Context, instance TaskInstance) error
	DeleteInstance(ctx context.Context, userID, id string) error
	// DeleteFutureIncomplete removes incomplete instances of a template due on
	// or after from.
	DeleteFutureIncomplete(ctx context.Context, templateID string, from calendar.Date) (int, error)
	ListInstances(ctx context.Context, filter InstanceFilter) ([]TaskInstance, error)
}

// LedgerRepository stores coin movements and maintains the balance projection.
type LedgerRepository interface {
	// AppendEntry inserts the entry and applies its amount to the user's
	// balance in one transaction. A dedupe collision returns Inserted=false
	// with the balance untouched.
	AppendEntry(ctx context.Context, entry LedgerEntry) (AppendResult, error)
	ListEntries(ctx context.Context, userID string, limit int) ([]LedgerEntry, error)
	SumEntries(ctx context.Context, userID string) (int64, error)
	HasEntry(ctx context.Context, userID, reason, dedupeKey string) (bool, error)
}

// SessionRepository stores pomodoro sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session PomodoroSession) error
	GetSession(ctx context.Context, userID, id string) (PomodoroSession, error)
	GetRunningSession(ctx context.Context, userID string) (PomodoroSession, error)
	// FinishSession moves a running session to a terminal status.
	FinishSession(ctx context.Context, session PomodoroSession) error
	ListSessions(ctx context.Context, userID string, from, to time.Time) ([]PomodoroSession, error)
}

// ReminderRepository stores reminders and their daily checks.
type ReminderRepository interface {
	CreateReminder(ctx context.Context, reminder Reminder) error
	UpdateReminder(ctx context.Context, reminder Reminder) error
	GetReminder(ctx context.Context, userID, id string) (Reminder, error)
	ListReminders(ctx context.Context, userID string) ([]Reminder, error)
	ListActiveReminders(ctx context.Context) ([]Reminder, error)
	DeleteReminder(ctx context.Context, userID, id string) error

	// RecordCheck stores the check and reports whether it was new.
	RecordCheck(ctx context.Context, check ReminderCheck) (bool, error)
	ListChecks(ctx context.Context, userID string, day calendar.Date) ([]ReminderCheck, error)
}
