// Package testfixtures builds deterministic domain records, clocks and stores
// for tests.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gumwoo/fivlo/internal/calendar"
	"github.com/gumwoo/fivlo/internal/persistence"
)

var userCounter uint64

var seoul = time.FixedZone("KST", 9*60*60)

// Seoul returns a fixed +09:00 zone that needs no tz database.
func Seoul() *time.Location {
	return seoul
}

// ReferenceTime returns the canonical baseline instant used by fixtures:
// Thursday 2025-03-13 09:00 in Seoul.
func ReferenceTime() time.Time {
	return time.Date(2025, time.March, 13, 9, 0, 0, 0, seoul)
}

// ReferenceDay is the Seoul calendar day of ReferenceTime.
func ReferenceDay() calendar.Date {
	return calendar.DateOf(ReferenceTime(), seoul)
}

// UserOption configures a generated user.
type UserOption func(*persistence.User)

// NewUser returns a deterministic user in the Asia/Seoul zone with optional
// overrides.
func NewUser(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := ReferenceTime().UTC().Add(-time.Duration(idx) * time.Hour)
	user := persistence.User{
		ID:           id,
		Email:        id + "@example.com",
		DisplayName:  fmt.Sprintf("User %03d", idx),
		PasswordHash: "hash-" + id,
		Timezone:     "Asia/Seoul",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the identifier and email.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) {
		u.ID = id
		u.Email = id + "@example.com"
	}
}

// WithTimezone overrides the IANA zone name.
func WithTimezone(name string) UserOption {
	return func(u *persistence.User) {
		u.Timezone = name
	}
}

// WithPremium marks the user premium.
func WithPremium() UserOption {
	return func(u *persistence.User) {
		u.Premium = true
	}
}

// WithTelegramChat sets the Telegram chat receiving notices.
func WithTelegramChat(chatID int64) UserOption {
	return func(u *persistence.User) {
		u.TelegramChatID = &chatID
	}
}

// WithBalance sets the cached coin balance.
func WithBalance(coins int64) UserOption {
	return func(u *persistence.User) {
		u.CoinBalance = coins
	}
}

// NewInstance returns a one-off task instance due on day.
func NewInstance(id, userID string, day calendar.Date, completed bool) persistence.TaskInstance {
	created := ReferenceTime().UTC()
	instance := persistence.TaskInstance{
		ID:        id,
		UserID:    userID,
		Title:     "Task " + id,
		DueOn:     day,
		Priority:  2,
		Completed: completed,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if completed {
		instance.CompletedAt = &created
	}
	return instance
}

// NewReminder returns an active reminder due at timeOfDay on days.
func NewReminder(id, userID, timeOfDay string, days ...time.Weekday) persistence.Reminder {
	created := ReferenceTime().UTC()
	return persistence.Reminder{
		ID:        id,
		UserID:    userID,
		Title:     "Reminder " + id,
		TimeOfDay: timeOfDay,
		Weekdays:  calendar.NormalizeWeekdays(days),
		Active:    true,
		CreatedAt: created,
		UpdatedAt: created,
	}
}
