package testfixtures

import (
	"sync"
	"time"

	"github.com/gumwoo/fivlo/internal/calendar"
)

// Clock provides a controllable time source for tests.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock initialised to the supplied time. When start is the
// zero value, the shared ReferenceTime is used.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the current instant tracked by the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now as a function suitable for dependency injection.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set updates the clock to the provided time.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the updated time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	updated := c.current
	c.mu.Unlock()
	return updated
}

// Today returns the calendar day of the clock in loc.
func (c *Clock) Today(loc *time.Location) calendar.Date {
	return calendar.DateOf(c.Now(), loc)
}

// SetDay moves the clock to hour:minute local time on day in loc.
func (c *Clock) SetDay(day calendar.Date, hour, minute int, loc *time.Location) {
	c.Set(day.In(loc).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute))
}
