// Package notify delivers reward and reminder notices to users.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/logging"
	"github.com/gumwoo/fivlo/internal/persistence"
)

// Reward describes a freshly minted ledger entry.
type Reward struct {
	User    persistence.User
	Entry   persistence.LedgerEntry
	Balance int64
}

// Reminder describes a reminder that is due now.
type Reminder struct {
	User     persistence.User
	Reminder persistence.Reminder
	Day      calendar.Date
}

// Notifier is implemented by every delivery channel.
type Notifier interface {
	RewardIssued(ctx context.Context, reward Reward) error
	ReminderDue(ctx context.Context, reminder Reminder) error
}

// LogNotifier writes notices as structured log lines.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier writing to logger, or to the context
// logger when logger is nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) log(ctx context.Context) *slog.Logger {
	if n.logger != nil {
		return n.logger
	}
	return logging.FromContext(ctx)
}

func (n *LogNotifier) RewardIssued(ctx context.Context, reward Reward) error {
	n.log(ctx).InfoContext(ctx, "reward issued",
		slog.String("user_id", reward.User.ID),
		slog.String("reason", reward.Entry.Reason),
		slog.String("day", reward.Entry.EntryDay.String()),
		slog.Int64("amount", reward.Entry.Amount),
		slog.Int64("balance", reward.Balance),
	)
	return nil
}

func (n *LogNotifier) ReminderDue(ctx context.Context, reminder Reminder) error {
	n.log(ctx).InfoContext(ctx, "reminder due",
		slog.String("user_id", reminder.User.ID),
		slog.String("reminder_id", reminder.Reminder.ID),
		slog.String("title", reminder.Reminder.Title),
		slog.String("time", reminder.Reminder.TimeOfDay),
	)
	return nil
}

// Multi fans a notice out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) RewardIssued(ctx context.Context, reward Reward) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.RewardIssued(ctx, reward); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) ReminderDue(ctx context.Context, reminder Reminder) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.ReminderDue(ctx, reminder); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
