package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gumwoo/fivlo/internal/calendar"
)

// ErrInsufficientData signals that a derived value has no sessions to be
// computed from. Compute never returns it; it degrades to zero values.
var ErrInsufficientData = errors.New("stats: insufficient data")

// UnlabeledGoal is the group name for sessions without a goal.
const UnlabeledGoal = "unlabeled"

// SessionKind distinguishes focus sessions from breaks.
type SessionKind string

const (
	SessionFocus SessionKind = "focus"
	SessionBreak SessionKind = "break"
)

// Session is the subset of a pomodoro session the aggregator needs.
type Session struct {
	ID        string
	Goal      string
	Kind      SessionKind
	Completed bool
	StartedAt time.Time
	Duration  time.Duration
}

// Bucket aggregates focus sessions that started within [Start, End).
type Bucket struct {
	Label             string
	Start             time.Time
	End               time.Time
	Sessions          int
	CompletedSessions int
	FocusTime         time.Duration
}

// Active reports whether the bucket holds at least one completed focus session.
func (b Bucket) Active() bool {
	return b.CompletedSessions > 0
}

// GoalTotal is the focus time accumulated under one goal label.
type GoalTotal struct {
	Goal      string
	Sessions  int
	FocusTime time.Duration
}

// Summary is the full statistics object for a window.
type Summary struct {
	Window               Window
	HasData              bool
	// TotalSessions counts focus sessions only; breaks go to BreakSessions.
	TotalSessions        int
	CompletedSessions    int
	BreakSessions        int
	TotalFocusTime       time.Duration
	AverageSessionLength time.Duration
	CompletionRate       float64
	Buckets              []Bucket
	OptimalFocus         *Bucket
	LongestStreak        int
	CurrentStreak        int
	Goals                []GoalTotal
}

// Compute summarizes sessions over window. Sessions starting outside the
// window are ignored. today anchors the current streak of monthly windows.
func Compute(sessions []Session, window Window, today calendar.Date) Summary {
	if window.Location == nil {
		window.Location = time.UTC
	}

	summary := Summary{
		Window:  window,
		Buckets: newBuckets(window),
		Goals:   []GoalTotal{},
	}

	goals := make(map[string]*GoalTotal)
	for _, session := range sessions {
		if !window.Contains(session.StartedAt) {
			continue
		}
		summary.HasData = true

		if session.Kind == SessionBreak {
			summary.BreakSessions++
			continue
		}

		summary.TotalSessions++
		var focus time.Duration
		if session.Completed {
			summary.CompletedSessions++
			if session.Duration > 0 {
				focus = session.Duration
			}
			summary.TotalFocusTime += focus
		}

		if idx := bucketIndex(window, session.StartedAt); idx >= 0 && idx < len(summary.Buckets) {
			b := &summary.Buckets[idx]
			b.Sessions++
			if session.Completed {
				b.CompletedSessions++
				b.FocusTime += focus
			}
		}

		label := session.Goal
		if label == "" {
			label = UnlabeledGoal
		}
		total, ok := goals[label]
		if !ok {
			total = &GoalTotal{Goal: label}
			goals[label] = total
		}
		total.Sessions++
		total.FocusTime += focus
	}

	if summary.CompletedSessions > 0 {
		avg := summary.TotalFocusTime / time.Duration(summary.CompletedSessions)
		summary.AverageSessionLength = avg.Truncate(time.Second)
	}
	if summary.TotalSessions > 0 {
		summary.CompletionRate = round1(float64(summary.CompletedSessions) / float64(summary.TotalSessions) * 100)
	}

	if best, err := OptimalFocusBucket(summary.Buckets); err == nil {
		summary.OptimalFocus = &best
	}

	if window.Kind == KindMonthly {
		summary.LongestStreak = LongestStreak(summary.Buckets)
		summary.CurrentStreak = CurrentStreak(summary.Buckets, window, today)
	}

	for _, total := range goals {
		summary.Goals = append(summary.Goals, *total)
	}
	sort.Slice(summary.Goals, func(i, j int) bool {
		if summary.Goals[i].FocusTime == summary.Goals[j].FocusTime {
			return summary.Goals[i].Goal < summary.Goals[j].Goal
		}
		return summary.Goals[i].FocusTime > summary.Goals[j].FocusTime
	})

	return summary
}

// OptimalFocusBucket returns the bucket with the most focus time, preferring
// the earliest on ties.
func OptimalFocusBucket(buckets []Bucket) (Bucket, error) {
	bestIdx := -1
	for i, b := range buckets {
		if b.FocusTime <= 0 {
			continue
		}
		if bestIdx < 0 || b.FocusTime > buckets[bestIdx].FocusTime {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return Bucket{}, ErrInsufficientData
	}
	return buckets[bestIdx], nil
}

// LongestStreak is the longest run of consecutive active buckets.
func LongestStreak(buckets []Bucket) int {
	longest, run := 0, 0
	for _, b := range buckets {
		if b.Active() {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	return longest
}

// CurrentStreak counts consecutive active day buckets ending at today, or at
// yesterday when today has no activity yet. Days after the window's last day
// anchor at the last day.
func CurrentStreak(buckets []Bucket, window Window, today calendar.Date) int {
	first, last := window.FirstDay(), window.LastDay()
	if today.Before(first) || len(buckets) == 0 {
		return 0
	}

	anchor := today
	if anchor.After(last) {
		anchor = last
	}
	idx := first.DaysUntil(anchor)
	if idx >= len(buckets) {
		idx = len(buckets) - 1
	}
	if anchor.Equal(today) && !buckets[idx].Active() {
		idx--
	}

	streak := 0
	for ; idx >= 0; idx-- {
		if !buckets[idx].Active() {
			break
		}
		streak++
	}
	return streak
}

func newBuckets(window Window) []Bucket {
	loc := window.Location
	if window.Kind == KindDaily {
		y, m, d := window.Start.In(loc).Date()
		buckets := make([]Bucket, 24)
		for h := 0; h < 24; h++ {
			buckets[h] = Bucket{
				Label: fmt.Sprintf("%02d:00", h),
				Start: time.Date(y, m, d, h, 0, 0, 0, loc),
				End:   time.Date(y, m, d, h+1, 0, 0, 0, loc),
			}
		}
		return buckets
	}

	days := window.Days()
	buckets := make([]Bucket, len(days))
	for i, day := range days {
		buckets[i] = Bucket{
			Label: day.String(),
			Start: day.In(loc),
			End:   day.AddDays(1).In(loc),
		}
	}
	return buckets
}

func bucketIndex(window Window, t time.Time) int {
	local := t.In(window.Location)
	if window.Kind == KindDaily {
		return local.Hour()
	}
	return window.FirstDay().DaysUntil(calendar.DateOf(local, window.Location))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
