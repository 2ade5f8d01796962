// Package stats computes read-only pomodoro statistics over a bounded period.
//
// All functions are pure: they take sessions already loaded for a window and
// derive summaries without I/O, so results are safe to recompute.
package stats

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"github.com/gumwoo/fivlo/internal/calendar"
)

// Kind identifies the period granularity of a Window.
type Kind string

const (
	KindDaily   Kind = "daily"
	KindWeekly  Kind = "weekly"
	KindMonthly Kind = "monthly"
)

// ErrUnknownKind is returned for unsupported period names.
var ErrUnknownKind = errors.New("stats: unknown period")

// ParseKind maps user input onto a Kind. "day", "week" and "month" are accepted
// as aliases.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "daily", "day":
		return KindDaily, nil
	case "weekly", "week":
		return KindWeekly, nil
	case "monthly", "month":
		return KindMonthly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
	}
}

// Window is a half-open [Start, End) range in a fixed location.
type Window struct {
	Kind     Kind
	Start    time.Time
	End      time.Time
	Location *time.Location
}

// NewWindow returns the period of the given kind containing reference. Weeks
// start on Monday.
func NewWindow(kind Kind, reference time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	cfg := &now.Config{WeekStartDay: time.Monday, TimeLocation: loc}
	n := cfg.With(reference.In(loc))

	var start, end time.Time
	switch kind {
	case KindDaily:
		start = n.BeginningOfDay()
		end = start.AddDate(0, 0, 1)
	case KindWeekly:
		start = n.BeginningOfWeek()
		end = start.AddDate(0, 0, 7)
	case KindMonthly:
		start = n.BeginningOfMonth()
		end = start.AddDate(0, 1, 0)
	default:
		return Window{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return Window{Kind: kind, Start: start, End: end, Location: loc}, nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// FirstDay is the calendar day the window starts on.
func (w Window) FirstDay() calendar.Date {
	return calendar.DateOf(w.Start, w.Location)
}

// LastDay is the final calendar day inside the window.
func (w Window) LastDay() calendar.Date {
	return calendar.DateOf(w.End, w.Location).AddDays(-1)
}

// Days lists every calendar day covered by the window.
func (w Window) Days() []calendar.Date {
	first, last := w.FirstDay(), w.LastDay()
	days := make([]calendar.Date, 0, first.DaysUntil(last)+1)
	for d := first; !d.After(last); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}
