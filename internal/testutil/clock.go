package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant a Clock from NewClock returns.
var Epoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// Clock is a deterministic wall clock for tests. Each call to Now returns
// the current instant and then advances it by the step, so rows created in
// sequence get strictly increasing created_at values.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu    sync.Mutex
	start time.Time
	t     time.Time
	step  time.Duration
}

// NewClock creates a clock starting at Epoch that advances one second per call.
func NewClock() *Clock {
	return NewClockAt(Epoch, time.Second)
}

// NewClockAt creates a clock starting at start that advances by step per call.
func NewClockAt(start time.Time, step time.Duration) *Clock {
	return &Clock{start: start, t: start, step: step}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

// Current returns the instant the next Now call will return, without advancing.
func (c *Clock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Reset rewinds the clock to its start.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.start
}
