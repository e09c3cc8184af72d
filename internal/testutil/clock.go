package testutil

import (
	"sync"
	"time"
)

// FixedClock hands out wall-clock readings from a fixed start, advancing
// a constant step per reading. Runs timed with it produce identical
// timestamps on every test execution.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewFixedClock returns a clock whose first Now is start, with each
// subsequent reading advanced by step.
func NewFixedClock(start time.Time, step time.Duration) *FixedClock {
	return &FixedClock{next: start, step: step}
}

// Now returns the next reading and advances the clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}

// Reset rewinds the clock to read t next.
//
// Used for test reuse: the same scenario can run again with identical
// timestamps.
func (c *FixedClock) Reset(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = t
}
