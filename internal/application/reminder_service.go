package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/persistence"
)

// ReminderService manages reminders and their daily checklist reward.
type ReminderService struct {
	reminders   ReminderStore
	users       UserReader
	gate        GateEvaluator
	premiumOnly bool
	idGenerator func() string
	now         func() time.Time
	location    *time.Location
	logger      *slog.Logger
}

// NewReminderService constructs a ReminderService. With premiumOnly set only
// premium users earn the reminder reward.
func NewReminderService(reminders ReminderStore, users UserReader, gate GateEvaluator, premiumOnly bool, idGenerator func() string, now func() time.Time) *ReminderService {
	return NewReminderServiceWithLogger(reminders, users, gate, premiumOnly, idGenerator, now, nil)
}

// NewReminderServiceWithLogger constructs a ReminderService with a specified logger.
func NewReminderServiceWithLogger(reminders ReminderStore, users UserReader, gate GateEvaluator, premiumOnly bool, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReminderService {
	if idGenerator == nil {
		idGenerator = defaultIDGenerator
	}
	if now == nil {
		now = time.Now
	}
	return &ReminderService{
		reminders:   reminders,
		users:       users,
		gate:        gate,
		premiumOnly: premiumOnly,
		idGenerator: idGenerator,
		now:         now,
		location:    time.UTC,
		logger:      defaultLogger(logger),
	}
}

// SetLocation sets the zone used for users without a valid timezone.
func (s *ReminderService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

func (s *ReminderService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReminderService", operation, attrs...)
}

func (s *ReminderService) user(ctx context.Context, principal Principal) (persistence.User, error) {
	if s == nil || s.reminders == nil || s.users == nil {
		return persistence.User{}, fmt.Errorf("reminder dependencies not configured")
	}
	if strings.TrimSpace(principal.UserID) == "" {
		return persistence.User{}, ErrUnauthorized
	}
	user, err := s.users.GetUser(ctx, principal.UserID)
	if errors.Is(err, persistence.ErrNotFound) {
		return persistence.User{}, ErrUserNotFound
	}
	return user, err
}

func validateReminder(input ReminderInput) (title, timeOfDay string, weekdays []time.Weekday, err error) {
	vErr := &ValidationError{}
	title = strings.TrimSpace(input.Title)
	switch {
	case title == "":
		vErr.add("title", "title is required")
	case utf8.RuneCountInString(title) > maxTitleLength:
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}

	parsed, pErr := time.Parse(timeOfDayLayout, strings.TrimSpace(input.TimeOfDay))
	if pErr != nil {
		vErr.add("time_of_day", "time of day must be HH:MM")
	} else {
		timeOfDay = parsed.Format(timeOfDayLayout)
	}

	weekdays, wErr := calendar.ParseWeekdays(input.Weekdays)
	switch {
	case wErr != nil:
		vErr.add("weekdays", wErr.Error())
	case len(weekdays) == 0:
		vErr.add("weekdays", "select at least one weekday")
	}

	if vErr.HasErrors() {
		return "", "", nil, vErr
	}
	return title, timeOfDay, weekdays, nil
}

// CreateReminder stores a new reminder, active unless Input.Active says otherwise.
func (s *ReminderService) CreateReminder(ctx context.Context, principal Principal, input ReminderInput) (reminder persistence.Reminder, err error) {
	logger := s.loggerWith(ctx, "CreateReminder", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create reminder", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reminder created", "reminder_id", reminder.ID)
	}()

	var user persistence.User
	if user, err = s.user(ctx, principal); err != nil {
		return
	}
	title, timeOfDay, weekdays, vErr := validateReminder(input)
	if vErr != nil {
		err = vErr
		return
	}

	now := s.now().UTC()
	reminder = persistence.Reminder{
		ID:        s.idGenerator(),
		UserID:    user.ID,
		Title:     title,
		TimeOfDay: timeOfDay,
		Weekdays:  weekdays,
		Active:    input.Active == nil || *input.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.reminders.CreateReminder(ctx, reminder); err != nil {
		err = mapRepoError(err)
	}
	return
}

// UpdateReminder replaces the reminder's fields.
func (s *ReminderService) UpdateReminder(ctx context.Context, principal Principal, id string, input ReminderInput) (reminder persistence.Reminder, err error) {
	var user persistence.User
	if user, err = s.user(ctx, principal); err != nil {
		return
	}
	if reminder, err = s.reminders.GetReminder(ctx, user.ID, id); err != nil {
		err = mapRepoError(err)
		return
	}
	title, timeOfDay, weekdays, vErr := validateReminder(input)
	if vErr != nil {
		err = vErr
		return
	}
	reminder.Title = title
	reminder.TimeOfDay = timeOfDay
	reminder.Weekdays = weekdays
	if input.Active != nil {
		reminder.Active = *input.Active
	}
	reminder.UpdatedAt = s.now().UTC()
	if err = s.reminders.UpdateReminder(ctx, reminder); err != nil {
		err = mapRepoError(err)
		return
	}
	s.loggerWith(ctx, "UpdateReminder", "principal_id", user.ID).InfoContext(ctx, "reminder updated", "reminder_id", id)
	return
}

// ListReminders returns the principal's reminders.
func (s *ReminderService) ListReminders(ctx context.Context, principal Principal) ([]persistence.Reminder, error) {
	user, err := s.user(ctx, principal)
	if err != nil {
		return nil, err
	}
	reminders, err := s.reminders.ListReminders(ctx, user.ID)
	return reminders, mapRepoError(err)
}

// DeleteReminder removes a reminder and its checks.
func (s *ReminderService) DeleteReminder(ctx context.Context, principal Principal, id string) error {
	user, err := s.user(ctx, principal)
	if err != nil {
		return err
	}
	return mapRepoError(s.reminders.DeleteReminder(ctx, user.ID, id))
}

// Complete checks the reminder off for day and evaluates the reminder
// reward. A zero day means today in the user's zone. Checks on other days are
// recorded but never rewarded.
func (s *ReminderService) Complete(ctx context.Context, principal Principal, id string, day calendar.Date) (result ReminderCompletionResult, err error) {
	logger := s.loggerWith(ctx, "Complete", "principal_id", principal.UserID, "reminder_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to complete reminder", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "reminder completed", "recorded", result.Recorded, "outcome", string(result.Gate.Outcome))
	}()

	var user persistence.User
	if user, err = s.user(ctx, principal); err != nil {
		return
	}
	var reminder persistence.Reminder
	if reminder, err = s.reminders.GetReminder(ctx, user.ID, id); err != nil {
		err = mapRepoError(err)
		return
	}
	if day.IsZero() {
		day = calendar.DateOf(s.now(), userLocation(user, s.location))
	}

	result.Recorded, err = s.reminders.RecordCheck(ctx, persistence.ReminderCheck{
		ReminderID: reminder.ID,
		UserID:     user.ID,
		Day:        day,
		CheckedAt:  s.now().UTC(),
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	if s.gate == nil {
		return
	}
	result.Gate, err = s.gate.Evaluate(ctx, EvaluateParams{
		UserID:   user.ID,
		Day:      day,
		Reason:   ReasonReminderCompletion,
		Eligible: user.Premium || !s.premiumOnly,
	})
	return
}
