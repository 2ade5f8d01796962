// Package app wires the stores, services and HTTP handlers into one
// running application.
package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gumwoo/fivlo/internal/application"
	"github.com/gumwoo/fivlo/internal/goalai"
	httptransport "github.com/gumwoo/fivlo/internal/http"
	"github.com/gumwoo/fivlo/internal/notify"
	"github.com/gumwoo/fivlo/internal/persistence/sqlstore"
	"github.com/gumwoo/fivlo/internal/scheduler"
)

// Options configures Build. Zero values select production defaults.
type Options struct {
	// Location is the fallback zone for users without a loadable timezone.
	Location *time.Location

	// DefaultTimezone is assigned to accounts registered without one. Empty
	// uses Location's name.
	DefaultTimezone string

	RewardAmount int64

	// ReminderPremiumOnly restricts reminder rewards to premium accounts.
	ReminderPremiumOnly bool

	JWTSecret []byte
	TokenTTL  time.Duration
	Argon2    application.Argon2idParams
	Catalog   application.Catalog

	// Planner is the chat client behind goal breakdowns. Nil uses the
	// offline fallback.
	Planner      goalai.ChatClient
	PlannerModel string

	Notifier    notify.Notifier
	Now         func() time.Time
	IDGenerator func() string
	Logger      *slog.Logger
}

// App holds every wired service.
type App struct {
	Store      *sqlstore.Store
	Gate       *application.CompletionGate
	Auth       *application.AuthService
	Categories *application.CategoryService
	Tasks      *application.TaskService
	Wallet     *application.WalletService
	Pomodoro   *application.PomodoroService
	Reminders  *application.ReminderService
	Goals      *application.GoalService
	Dispatcher *scheduler.ReminderDispatcher
	logger     *slog.Logger
}

// Build wires every service over store.
func Build(store *sqlstore.Store, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	ids := opts.IDGenerator

	users := store.Users()
	tasksRepo := store.Tasks()
	ledger := store.Ledger()
	sessions := store.Sessions()
	reminders := store.Reminders()

	gate := application.NewCompletionGateWithLogger(users, ledger, ids, now, opts.RewardAmount, logger)
	gate.SetNotifier(notifier)
	gate.SetLocation(loc)
	gate.Register(application.ReasonTaskCompletion, application.TaskDueItems(tasksRepo))
	gate.Register(application.ReasonPomodoroCompletion, application.PomodoroDueItems(sessions, loc))
	gate.Register(application.ReasonReminderCompletion, application.ReminderDueItems(reminders))

	auth := application.NewAuthServiceWithLogger(users, application.NewPasswordHasher(opts.Argon2), opts.JWTSecret, opts.TokenTTL, ids, now, logger)
	if opts.DefaultTimezone != "" {
		auth.SetDefaultTimezone(opts.DefaultTimezone)
	} else {
		auth.SetDefaultTimezone(loc.String())
	}

	tasks := application.NewTaskServiceWithLogger(tasksRepo, store.Categories(), users, gate, ids, now, logger)
	tasks.SetLocation(loc)

	pomodoro := application.NewPomodoroServiceWithLogger(sessions, users, gate, ids, now, logger)
	pomodoro.SetLocation(loc)

	reminderService := application.NewReminderServiceWithLogger(reminders, users, gate, opts.ReminderPremiumOnly, ids, now, logger)
	reminderService.SetLocation(loc)

	goals := application.NewGoalService(goalai.NewPlanner(opts.Planner, opts.PlannerModel), tasks, users, now, logger)
	goals.SetLocation(loc)

	return &App{
		Store:      store,
		Gate:       gate,
		Auth:       auth,
		Categories: application.NewCategoryServiceWithLogger(store.Categories(), ids, now, logger),
		Tasks:      tasks,
		Wallet:     application.NewWalletServiceWithLogger(users, ledger, opts.Catalog, ids, now, logger),
		Pomodoro:   pomodoro,
		Reminders:  reminderService,
		Goals:      goals,
		Dispatcher: scheduler.NewReminderDispatcher(reminders, users, notifier, loc, now, logger),
		logger:     logger,
	}
}

// Handler returns the HTTP API with request logging and bearer auth.
func (a *App) Handler() http.Handler {
	logger := a.logger
	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:       httptransport.NewAuthHandler(a.Auth, logger),
		Tasks:      httptransport.NewTaskHandler(a.Tasks, a.Categories, logger),
		Wallet:     httptransport.NewWalletHandler(a.Wallet, logger),
		Pomodoro:   httptransport.NewPomodoroHandler(a.Pomodoro, logger),
		Reminders:  httptransport.NewReminderHandler(a.Reminders, logger),
		Goals:      httptransport.NewGoalHandler(a.Goals, logger),
		Tokens:     a.Auth,
		Logger:     logger,
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
}
