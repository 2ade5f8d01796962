package recurrence

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/gumwoo/fivlo/internal/calendar"
)

// Repeat represents supported recurrence intervals.
type Repeat string

const (
	// RepeatNone produces a single occurrence on the start date.
	RepeatNone Repeat = "none"
	// RepeatDaily produces an occurrence for every day within the range.
	RepeatDaily Repeat = "daily"
	// RepeatWeekly produces occurrences on the selected weekdays.
	RepeatWeekly Repeat = "weekly"
	// RepeatMonthly produces one occurrence per month on the start day-of-month.
	RepeatMonthly Repeat = "monthly"
)

// ParseRepeat maps a wire value onto a Repeat. The empty string means none.
func ParseRepeat(value string) (Repeat, error) {
	switch Repeat(strings.ToLower(strings.TrimSpace(value))) {
	case "", RepeatNone:
		return RepeatNone, nil
	case RepeatDaily:
		return RepeatDaily, nil
	case RepeatWeekly:
		return RepeatWeekly, nil
	case RepeatMonthly:
		return RepeatMonthly, nil
	default:
		return "", &RuleError{Field: "repeat", Reason: fmt.Sprintf("unsupported repeat %q", value), err: ErrInvalidRecurrence}
	}
}

// MaxSpanYears bounds how far past its start a rule may extend.
const MaxSpanYears = 2

// Rule describes a recurrence configuration for a task template.
type Rule struct {
	Repeat   Repeat
	Weekdays []time.Weekday
	StartsOn calendar.Date
	EndsOn   *calendar.Date
}

var (
	// ErrInvalidRecurrence indicates the rule is malformed.
	ErrInvalidRecurrence = errors.New("recurrence: invalid rule")
	// ErrRecurrenceRangeExceeded indicates the rule would expand past MaxSpanYears.
	ErrRecurrenceRangeExceeded = errors.New("recurrence: range exceeds expansion limit")
)

// RuleError pinpoints the field that made a rule unusable. It unwraps to
// ErrInvalidRecurrence or ErrRecurrenceRangeExceeded.
type RuleError struct {
	Field  string
	Reason string
	err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%v: %s: %s", e.err, e.Field, e.Reason)
}

func (e *RuleError) Unwrap() error { return e.err }

func invalid(field, reason string) error {
	return &RuleError{Field: field, Reason: reason, err: ErrInvalidRecurrence}
}

// Engine expands recurrence rules into calendar dates.
type Engine struct {
	maxSpanYears int
}

// NewEngine constructs an Engine enforcing the default expansion cap.
func NewEngine() *Engine {
	return &Engine{maxSpanYears: MaxSpanYears}
}

// Sequence is a finite, restartable, lazily evaluated list of dates.
type Sequence struct {
	rule     Rule
	end      calendar.Date
	weekdays map[time.Weekday]struct{}
}

// Expand validates rule and returns its occurrences.
//
// The engine enforces the following semantics:
//   - The start date is always the first candidate and the end date is inclusive.
//   - Weekly rules keep only dates whose weekday is selected.
//   - Monthly rules reuse the start day-of-month, clamped to short months.
//   - Repeating rules must end before StartsOn plus the span cap.
func (e *Engine) Expand(rule Rule) (Sequence, error) {
	if rule.StartsOn.IsZero() {
		return Sequence{}, invalid("starts_on", "start date is required")
	}
	if rule.Repeat == "" {
		rule.Repeat = RepeatNone
	}

	seq := Sequence{rule: rule, end: rule.StartsOn}
	switch rule.Repeat {
	case RepeatNone:
		return seq, nil
	case RepeatDaily, RepeatWeekly, RepeatMonthly:
	default:
		return Sequence{}, invalid("repeat", fmt.Sprintf("unsupported repeat %q", rule.Repeat))
	}

	if rule.EndsOn == nil || rule.EndsOn.IsZero() {
		return Sequence{}, invalid("ends_on", "end date is required for repeating tasks")
	}
	end := *rule.EndsOn
	if end.Before(rule.StartsOn) {
		return Sequence{}, invalid("ends_on", "end date must not be before start date")
	}

	span := e.maxSpanYears
	if span <= 0 {
		span = MaxSpanYears
	}
	limit := calendar.New(rule.StartsOn.Year+span, rule.StartsOn.Month, rule.StartsOn.Day)
	if !end.Before(limit) {
		return Sequence{}, &RuleError{
			Field:  "ends_on",
			Reason: fmt.Sprintf("end date must be before %s", limit),
			err:    ErrRecurrenceRangeExceeded,
		}
	}

	if rule.Repeat == RepeatWeekly {
		days := calendar.NormalizeWeekdays(rule.Weekdays)
		if len(days) == 0 {
			return Sequence{}, invalid("weekdays", "weekly tasks need at least one weekday")
		}
		seq.weekdays = make(map[time.Weekday]struct{}, len(days))
		for _, day := range days {
			seq.weekdays[day] = struct{}{}
		}
	}

	seq.end = end
	return seq, nil
}

// All yields the dates in ascending order. Each call starts over.
func (s Sequence) All() iter.Seq[calendar.Date] {
	return func(yield func(calendar.Date) bool) {
		if s.rule.StartsOn.IsZero() {
			return
		}
		switch s.rule.Repeat {
		case RepeatDaily, RepeatWeekly:
			for current := s.rule.StartsOn; !current.After(s.end); current = current.AddDays(1) {
				if s.weekdays != nil {
					if _, ok := s.weekdays[current.Weekday()]; !ok {
						continue
					}
				}
				if !yield(current) {
					return
				}
			}
		case RepeatMonthly:
			dom := s.rule.StartsOn.Day
			for i := 0; ; i++ {
				current := s.rule.StartsOn.AddMonthsClamped(i, dom)
				if current.After(s.end) {
					return
				}
				if !yield(current) {
					return
				}
			}
		default:
			yield(s.rule.StartsOn)
		}
	}
}

// Dates collects every occurrence.
func (s Sequence) Dates() []calendar.Date {
	out := make([]calendar.Date, 0)
	for d := range s.All() {
		out = append(out, d)
	}
	return out
}

// Len counts the occurrences without retaining them.
func (s Sequence) Len() int {
	n := 0
	for range s.All() {
		n++
	}
	return n
}

// Rule returns the rule the sequence was expanded from.
func (s Sequence) Rule() Rule {
	return s.rule
}

// From yields only the dates on or after from.
func (s Sequence) From(from calendar.Date) iter.Seq[calendar.Date] {
	return func(yield func(calendar.Date) bool) {
		for d := range s.All() {
			if d.Before(from) {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}
