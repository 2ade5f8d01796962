package application

import (
	"context"
	"time"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/persistence"
)

// TaskDueItems lists the task instances due on the day.
func TaskDueItems(tasks InstanceLister) DueItemSource {
	return DueItemSourceFunc(func(ctx context.Context, user persistence.User, day calendar.Date) ([]DueItem, error) {
		instances, err := tasks.ListInstances(ctx, persistence.InstanceFilter{UserID: user.ID, From: day, To: day})
		if err != nil {
			return nil, err
		}
		items := make([]DueItem, 0, len(instances))
		for _, instance := range instances {
			items = append(items, DueItem{ID: instance.ID, Completed: instance.Completed})
		}
		return items, nil
	})
}

// SessionLister lists pomodoro sessions started within [from, to).
type SessionLister interface {
	ListSessions(ctx context.Context, userID string, from, to time.Time) ([]persistence.PomodoroSession, error)
}

// PomodoroDueItems lists the completed focus sessions started on the user's
// local day. A day without one is not applicable.
func PomodoroDueItems(sessions SessionLister, fallback *time.Location) DueItemSource {
	return DueItemSourceFunc(func(ctx context.Context, user persistence.User, day calendar.Date) ([]DueItem, error) {
		loc := userLocation(user, fallback)
		list, err := sessions.ListSessions(ctx, user.ID, day.In(loc), day.AddDays(1).In(loc))
		if err != nil {
			return nil, err
		}
		items := make([]DueItem, 0, len(list))
		for _, session := range list {
			if session.Kind != persistence.SessionKindFocus || session.Status != persistence.SessionCompleted {
				continue
			}
			items = append(items, DueItem{ID: session.ID, Completed: true})
		}
		return items, nil
	})
}

// ReminderChecklist reads reminders and their checks.
type ReminderChecklist interface {
	ListReminders(ctx context.Context, userID string) ([]persistence.Reminder, error)
	ListChecks(ctx context.Context, userID string, day calendar.Date) ([]persistence.ReminderCheck, error)
}

// ReminderDueItems lists the active reminders scheduled on the day's weekday.
func ReminderDueItems(reminders ReminderChecklist) DueItemSource {
	return DueItemSourceFunc(func(ctx context.Context, user persistence.User, day calendar.Date) ([]DueItem, error) {
		list, err := reminders.ListReminders(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		checks, err := reminders.ListChecks(ctx, user.ID, day)
		if err != nil {
			return nil, err
		}
		checked := make(map[string]struct{}, len(checks))
		for _, check := range checks {
			checked[check.ReminderID] = struct{}{}
		}

		weekday := day.Weekday()
		items := make([]DueItem, 0, len(list))
		for _, reminder := range list {
			if !reminder.Active || !scheduledOn(reminder.Weekdays, weekday) {
				continue
			}
			_, done := checked[reminder.ID]
			items = append(items, DueItem{ID: reminder.ID, Completed: done})
		}
		return items, nil
	})
}

func scheduledOn(days []time.Weekday, day time.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}
