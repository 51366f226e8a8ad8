package testutil

import (
	"sync"
	"time"
)

// FixedClock is a wall clock frozen at a chosen instant.
//
// It satisfies fieldpath.Clock, so literal formatting of the "C" (current
// date) sentinel is deterministic in tests and golden files.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at the given date (UTC midnight).
func NewFixedClock(year int, month time.Month, day int) *FixedClock {
	return &FixedClock{now: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Now returns the frozen instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// AddDate moves the clock by the given number of years, months and days.
func (c *FixedClock) AddDate(years, months, days int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(years, months, days)
}
