package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the instant a DeterministicClock starts at when none is given.
var DefaultEpoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// DeterministicClock is a controllable wall clock for tests.
//
// Now returns the current instant and then advances by the configured step,
// so consecutive calls produce strictly increasing timestamps without the
// test sleeping. A zero step freezes the clock until Advance or Set.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	now   time.Time
	start time.Time
	step  time.Duration
}

// NewDeterministicClock creates a frozen clock at start (DefaultEpoch when zero).
func NewDeterministicClock(start time.Time) *DeterministicClock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	start = start.UTC()
	return &DeterministicClock{now: start, start: start}
}

// WithStep sets how far Now advances after each call and returns the clock.
func (c *DeterministicClock) WithStep(step time.Duration) *DeterministicClock {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = step
	return c
}

// Now returns the current instant, then advances by the step.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Current returns the instant the next Now call will return.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *DeterministicClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to t.
func (c *DeterministicClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// Reset returns the clock to its start instant.
//
// Used for test reuse so the same scenario produces identical timestamps.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
