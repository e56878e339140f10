package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the instant a FixedClock starts at when given the zero time.
var DefaultEpoch = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

// FixedClock provides a deterministic wall clock for tests.
//
// Now returns the same instant until Advance moves it. This keeps created and
// updated timestamps byte-identical across runs, so golden files stay stable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
}

// NewFixedClock creates a clock stopped at start, or at DefaultEpoch when
// start is the zero time.
func NewFixedClock(start time.Time) *FixedClock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	return &FixedClock{start: start, now: start}
}

// Now returns the current instant without moving it.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new instant.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Reset moves the clock back to its start instant.
//
// Used for test reuse.
func (c *FixedClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
