// Package scheduler runs the periodic reminder dispatch.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/logging"
	"github.com/gumwoo/fivlo/internal/notify"
	"github.com/gumwoo/fivlo/internal/persistence"
)

// DefaultSpec fires at the top of every minute.
const DefaultSpec = "* * * * *"

// ReminderSource lists the reminders that may fire.
type ReminderSource interface {
	ListActiveReminders(ctx context.Context) ([]persistence.Reminder, error)
}

// UserSource resolves reminder owners.
type UserSource interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

// ReminderNotifier delivers due reminders.
type ReminderNotifier interface {
	ReminderDue(ctx context.Context, reminder notify.Reminder) error
}

// ReminderDispatcher notifies owners of reminders whose local HH:MM and
// weekday match the current minute.
type ReminderDispatcher struct {
	reminders ReminderSource
	users     UserSource
	notifier  ReminderNotifier
	fallback  *time.Location
	now       func() time.Time
	logger    *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewReminderDispatcher constructs a dispatcher. fallback is the zone used for
// owners without a valid timezone.
func NewReminderDispatcher(reminders ReminderSource, users UserSource, notifier ReminderNotifier, fallback *time.Location, now func() time.Time, logger *slog.Logger) *ReminderDispatcher {
	if fallback == nil {
		fallback = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderDispatcher{
		reminders: reminders,
		users:     users,
		notifier:  notifier,
		fallback:  fallback,
		now:       now,
		logger:    logger.With("component", "reminder_dispatcher"),
	}
}

// Start schedules Tick on spec until ctx is cancelled or Stop is called.
func (d *ReminderDispatcher) Start(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultSpec
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cron != nil {
		return errors.New("scheduler: dispatcher already started")
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(spec, func() {
		tickCtx := logging.ContextWithLogger(ctx, d.logger)
		if _, err := d.Tick(tickCtx, d.now()); err != nil {
			d.logger.ErrorContext(ctx, "reminder tick failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("scheduler: invalid spec %q: %w", spec, err)
	}
	c.Start()
	d.cron = c
	d.logger.InfoContext(ctx, "reminder dispatcher started", "spec", spec)

	go func() {
		<-ctx.Done()
		d.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running tick to finish.
func (d *ReminderDispatcher) Stop() {
	d.mu.Lock()
	c := d.cron
	d.cron = nil
	d.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	d.logger.Info("reminder dispatcher stopped")
}

// Tick notifies every reminder due at now and returns how many were sent.
// Per-reminder failures are logged and skipped.
func (d *ReminderDispatcher) Tick(ctx context.Context, now time.Time) (int, error) {
	reminders, err := d.reminders.ListActiveReminders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list reminders: %w", err)
	}

	users := make(map[string]*persistence.User)
	sent := 0
	for _, reminder := range reminders {
		user, ok := users[reminder.UserID]
		if !ok {
			loaded, err := d.users.GetUser(ctx, reminder.UserID)
			if err != nil {
				d.logger.WarnContext(ctx, "reminder owner lookup failed", "reminder_id", reminder.ID, "user_id", reminder.UserID, "error", err)
				users[reminder.UserID] = nil
				continue
			}
			user = &loaded
			users[reminder.UserID] = user
		}
		if user == nil {
			continue
		}

		local := now.In(calendar.LoadLocation(user.Timezone, d.fallback))
		if !Due(reminder, local) {
			continue
		}
		notice := notify.Reminder{User: *user, Reminder: reminder, Day: calendar.DateOf(local, local.Location())}
		if err := d.notifier.ReminderDue(ctx, notice); err != nil {
			d.logger.WarnContext(ctx, "reminder notification failed", "reminder_id", reminder.ID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// Due reports whether reminder fires in the minute of local.
func Due(reminder persistence.Reminder, local time.Time) bool {
	if !reminder.Active || local.Format("15:04") != reminder.TimeOfDay {
		return false
	}
	for _, day := range reminder.Weekdays {
		if day == local.Weekday() {
			return true
		}
	}
	return false
}
