package application

import (
	"context"
	"time"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/notify"
	"github.com/gumwoo/fivlo/internal/persistence"
)

// UserStore exposes the account operations services need.
type UserStore interface {
	CreateUser(ctx context.Context, user persistence.User) error
	UpdateUser(ctx context.Context, user persistence.User) error
	GetUser(ctx context.Context, id string) (persistence.User, error)
	GetUserByEmail(ctx context.Context, email string) (persistence.User, error)
}

// UserReader resolves users by ID.
type UserReader interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

// LedgerWriter appends ledger entries atomically with the balance update.
type LedgerWriter interface {
	AppendEntry(ctx context.Context, entry persistence.LedgerEntry) (persistence.AppendResult, error)
}

// LedgerStore is the full ledger surface used by the wallet.
type LedgerStore interface {
	LedgerWriter
	ListEntries(ctx context.Context, userID string, limit int) ([]persistence.LedgerEntry, error)
	SumEntries(ctx context.Context, userID string) (int64, error)
	HasEntry(ctx context.Context, userID, reason, dedupeKey string) (bool, error)
}

// TaskStore is the task persistence surface.
type TaskStore interface {
	CreateSeries(ctx context.Context, template persistence.TaskTemplate, instances []persistence.TaskInstance) (int, error)
	GetTemplate(ctx context.Context, userID, id string) (persistence.TaskTemplate, error)
	ReplaceSeries(ctx context.Context, template persistence.TaskTemplate, from calendar.Date, instances []persistence.TaskInstance) (int, error)
	DeleteTemplate(ctx context.Context, userID, id string) error
	InsertInstances(ctx context.Context, instances []persistence.TaskInstance) (int, error)
	GetInstance(ctx context.Context, userID, id string) (persistence.TaskInstance, error)
	UpdateInstance(ctx context.Context, instance persistence.TaskInstance) error
	DeleteInstance(ctx context.Context, userID, id string) error
	ListInstances(ctx context.Context, filter persistence.InstanceFilter) ([]persistence.TaskInstance, error)
}

// InstanceLister lists task instances.
type InstanceLister interface {
	ListInstances(ctx context.Context, filter persistence.InstanceFilter) ([]persistence.TaskInstance, error)
}

// CategoryStore is the category persistence surface.
type CategoryStore interface {
	CreateCategory(ctx context.Context, category persistence.Category) error
	GetCategory(ctx context.Context, userID, id string) (persistence.Category, error)
	ListCategories(ctx context.Context, userID string) ([]persistence.Category, error)
	DeleteCategory(ctx context.Context, userID, id string) error
}

// SessionStore is the pomodoro session persistence surface.
type SessionStore interface {
	CreateSession(ctx context.Context, session persistence.PomodoroSession) error
	GetSession(ctx context.Context, userID, id string) (persistence.PomodoroSession, error)
	GetRunningSession(ctx context.Context, userID string) (persistence.PomodoroSession, error)
	FinishSession(ctx context.Context, session persistence.PomodoroSession) error
	ListSessions(ctx context.Context, userID string, from, to time.Time) ([]persistence.PomodoroSession, error)
}

// ReminderStore is the reminder persistence surface.
type ReminderStore interface {
	CreateReminder(ctx context.Context, reminder persistence.Reminder) error
	UpdateReminder(ctx context.Context, reminder persistence.Reminder) error
	GetReminder(ctx context.Context, userID, id string) (persistence.Reminder, error)
	ListReminders(ctx context.Context, userID string) ([]persistence.Reminder, error)
	DeleteReminder(ctx context.Context, userID, id string) error
	RecordCheck(ctx context.Context, check persistence.ReminderCheck) (bool, error)
	ListChecks(ctx context.Context, userID string, day calendar.Date) ([]persistence.ReminderCheck, error)
}

// RewardNotifier is told about every successful mint.
type RewardNotifier interface {
	RewardIssued(ctx context.Context, reward notify.Reward) error
}

// DueItemSource lists the items that must be complete for a reason's daily
// reward.
type DueItemSource interface {
	DueItems(ctx context.Context, user persistence.User, day calendar.Date) ([]DueItem, error)
}

// DueItemSourceFunc adapts a function to DueItemSource.
type DueItemSourceFunc func(ctx context.Context, user persistence.User, day calendar.Date) ([]DueItem, error)

// DueItems calls f.
func (f DueItemSourceFunc) DueItems(ctx context.Context, user persistence.User, day calendar.Date) ([]DueItem, error) {
	return f(ctx, user, day)
}

// GateEvaluator runs daily completion evaluations.
type GateEvaluator interface {
	Evaluate(ctx context.Context, params EvaluateParams) (CompletionResult, error)
}
