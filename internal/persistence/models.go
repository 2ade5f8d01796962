package persistence

import (
	"time"

	"github.com/gumwoo/fivlo/internal/calendar"
)

// User is an account holding a coin balance.
//
// CoinBalance is a projection of the user's ledger and is only changed by
// LedgerRepository.AppendEntry.
type User struct {
	ID             string
	Email          string
	DisplayName    string
	PasswordHash   string
	Timezone       string
	Premium        bool
	TelegramChatID *int64
	CoinBalance    int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Category groups tasks under a user-chosen name and color.
type Category struct {
	ID        string
	UserID    string
	Name      string
	Color     string
	CreatedAt time.Time
}

// TaskTemplate is the definition of a recurring task.
type TaskTemplate struct {
	ID         string
	UserID     string
	Title      string
	CategoryID *string
	StartsOn   calendar.Date
	TimeOfDay  *string
	Priority   int
	Repeat     string
	Weekdays   []time.Weekday
	EndsOn     *calendar.Date
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TaskInstance is one dated occurrence of a task. TemplateID is nil for
// one-off tasks.
type TaskInstance struct {
	ID            string
	UserID        string
	TemplateID    *string
	Title         string
	DueOn         calendar.Date
	TimeOfDay     *string
	Priority      int
	CategoryID    *string
	CategoryName  *string
	CategoryColor *string
	Completed     bool
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InstanceFilter narrows task instance queries. Zero values are ignored.
type InstanceFilter struct {
	UserID     string
	From       calendar.Date
	To         calendar.Date
	TemplateID string
}

// LedgerEntry is an immutable coin movement. Entries sharing a non-nil
// DedupeKey for the same user and reason are rejected.
type LedgerEntry struct {
	ID        string
	UserID    string
	Amount    int64
	Reason    string
	EntryDay  calendar.Date
	DedupeKey *string
	Reference *string
	CreatedAt time.Time
}

// AppendResult reports the outcome of LedgerRepository.AppendEntry.
type AppendResult struct {
	Inserted bool
	Entry    LedgerEntry
	Balance  int64
}

// Session kinds and statuses for pomodoro sessions.
const (
	SessionKindFocus = "focus"
	SessionKindBreak = "break"

	SessionRunning   = "running"
	SessionCompleted = "completed"
	SessionAbandoned = "abandoned"
)

// PomodoroSession is a timed focus or break interval.
type PomodoroSession struct {
	ID              string
	UserID          string
	Goal            string
	Kind            string
	Status          string
	StartedAt       time.Time
	EndedAt         *time.Time
	PlannedSeconds  int
	DurationSeconds int
}

// Reminder is a checklist item due at a local time on selected weekdays.
type Reminder struct {
	ID        string
	UserID    string
	Title     string
	TimeOfDay string
	Weekdays  []time.Weekday
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReminderCheck records that a reminder was completed on a day.
type ReminderCheck struct {
	ReminderID string
	UserID     string
	Day        calendar.Date
	CheckedAt  time.Time
}
