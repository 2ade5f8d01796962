package http

import (
	"log/slog"
	"net/http"
)

// RouterConfig lists the handlers mounted by NewRouter. Nil handlers leave
// their routes unregistered.
type RouterConfig struct {
	Auth      *AuthHandler
	Tasks     *TaskHandler
	Wallet    *WalletHandler
	Pomodoro  *PomodoroHandler
	Reminders *ReminderHandler
	Goals     *GoalHandler
	// Tokens guards every route except registration, login and health.
	Tokens     TokenValidator
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	requireSession := func(h http.Handler) http.Handler { return h }
	if cfg.Tokens != nil {
		requireSession = RequireSession(cfg.Tokens, cfg.Logger)
	}
	protected := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, requireSession(fn))
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if cfg.Auth != nil {
		mux.HandleFunc("POST /auth/register", cfg.Auth.Register)
		mux.HandleFunc("POST /auth/login", cfg.Auth.Login)
	}

	if cfg.Tasks != nil {
		protected("GET /categories", cfg.Tasks.ListCategories)
		protected("POST /categories", cfg.Tasks.CreateCategory)
		protected("DELETE /categories/{id}", cfg.Tasks.DeleteCategory)

		protected("GET /tasks", cfg.Tasks.List)
		protected("POST /tasks", cfg.Tasks.Create)
		protected("PUT /tasks/{id}", cfg.Tasks.Update)
		protected("DELETE /tasks/{id}", cfg.Tasks.Delete)
		protected("POST /tasks/{id}/completion", cfg.Tasks.SetCompletion)
		protected("POST /task-series/{id}/regenerate", cfg.Tasks.RegenerateSeries)
	}

	if cfg.Wallet != nil {
		protected("GET /wallet", cfg.Wallet.Wallet)
		protected("GET /wallet/ledger", cfg.Wallet.Ledger)
		protected("POST /wallet/purchases", cfg.Wallet.Purchase)
		protected("GET /shop/items", cfg.Wallet.ShopItems)
	}

	if cfg.Pomodoro != nil {
		protected("POST /pomodoro/sessions", cfg.Pomodoro.Start)
		protected("POST /pomodoro/sessions/{id}/complete", cfg.Pomodoro.Complete)
		protected("POST /pomodoro/sessions/{id}/abandon", cfg.Pomodoro.Abandon)
		protected("GET /stats", cfg.Pomodoro.Stats)
		protected("GET /stats/export", cfg.Pomodoro.Export)
	}

	if cfg.Reminders != nil {
		protected("GET /reminders", cfg.Reminders.List)
		protected("POST /reminders", cfg.Reminders.Create)
		protected("PUT /reminders/{id}", cfg.Reminders.Update)
		protected("DELETE /reminders/{id}", cfg.Reminders.Delete)
		protected("POST /reminders/{id}/complete", cfg.Reminders.Complete)
	}

	if cfg.Goals != nil {
		protected("POST /goals/plan", cfg.Goals.Plan)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
