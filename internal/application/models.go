package application

import (
	"time"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/persistence"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Email  string
}

// Ledger reason codes. Daily reasons are minted at most once per user and day.
const (
	ReasonTaskCompletion     = "task_completion"
	ReasonPomodoroCompletion = "pomodoro_completion"
	ReasonReminderCompletion = "reminder_completion"
	ReasonPurchase           = "purchase"
)

// CompletionOutcome is the result of a daily completion evaluation.
type CompletionOutcome string

const (
	OutcomeNotApplicable   CompletionOutcome = "not_applicable"
	OutcomeIncomplete      CompletionOutcome = "incomplete"
	OutcomeAlreadyRewarded CompletionOutcome = "already_rewarded"
	OutcomeRewarded        CompletionOutcome = "rewarded"
	OutcomeIneligible      CompletionOutcome = "ineligible"
)

// EvaluateParams identifies the (user, day, reason) to evaluate.
type EvaluateParams struct {
	UserID string
	Day    calendar.Date
	Reason string
	// Eligible is the caller's reward policy for this user and reason.
	Eligible bool
}

// CompletionResult reports the gate outcome. Entry and Balance are set only
// when they are known.
type CompletionResult struct {
	Outcome  CompletionOutcome
	Rewarded bool
	Entry    *persistence.LedgerEntry
	Balance  *int64
}

// DueItem is one unit of work that must be complete for a daily reward.
type DueItem struct {
	ID        string
	Completed bool
}

// TaskInput captures caller provided task fields.
type TaskInput struct {
	Title      string
	CategoryID *string
	Date       calendar.Date
	TimeOfDay  string
	Priority   int
	Repeat     string
	Weekdays   []string
	EndsOn     *calendar.Date
}

// CreateTaskParams wraps the data required to create a task.
type CreateTaskParams struct {
	Principal Principal
	Input     TaskInput
}

// CreateTaskResult returns the stored template (nil for one-off tasks) and
// every instance created.
type CreateTaskResult struct {
	Template  *persistence.TaskTemplate
	Instances []persistence.TaskInstance
}

// UpdateTaskParams edits one instance, optionally regenerating its series.
type UpdateTaskParams struct {
	Principal  Principal
	InstanceID string
	Input      TaskInput
	Regenerate bool
}

// UpdateTaskResult returns the updated instance and, after regeneration,
// the number of instances created.
type UpdateTaskResult struct {
	Instance    persistence.TaskInstance
	Regenerated int
}

// DeleteScope selects what DeleteTask removes.
type DeleteScope string

const (
	DeleteSingle DeleteScope = "single"
	DeleteSeries DeleteScope = "series"
)

// CompletionToggleResult returns the toggled instance with the gate result
// when the instance became completed.
type CompletionToggleResult struct {
	Instance persistence.TaskInstance
	Gate     *CompletionResult
}

// PurchaseResult returns the debit entry and the new balance.
type PurchaseResult struct {
	Item    ShopItem
	Entry   persistence.LedgerEntry
	Balance int64
}

// Reconciliation compares the cached balance with the ledger sum.
type Reconciliation struct {
	UserID        string
	CachedBalance int64
	LedgerSum     int64
}

// Consistent reports whether both values agree.
func (r Reconciliation) Consistent() bool {
	return r.CachedBalance == r.LedgerSum
}

// StartSessionParams starts a pomodoro session.
type StartSessionParams struct {
	Principal      Principal
	Goal           string
	Kind           string
	PlannedSeconds int
}

// SessionResult returns a session and, for completed focus sessions, the
// daily reward evaluation.
type SessionResult struct {
	Session persistence.PomodoroSession
	Gate    *CompletionResult
}

// ReminderInput captures caller provided reminder fields.
type ReminderInput struct {
	Title     string
	TimeOfDay string
	Weekdays  []string
	Active    *bool
}

// ReminderCompletionResult reports the check and the gate evaluation.
type ReminderCompletionResult struct {
	Recorded bool
	Gate     CompletionResult
}

// RegisterParams creates an account.
type RegisterParams struct {
	Email       string
	Password    string
	DisplayName string
	Timezone    string
}

// LoginResult carries the issued token.
type LoginResult struct {
	User      persistence.User
	Token     string
	ExpiresAt time.Time
}
