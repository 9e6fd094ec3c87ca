package testutil

import (
	"sync"
	"time"
)

// DeterministicClock hands out wall-clock readings that advance by a fixed
// step on every call, so durations computed from it are exact in tests.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	epoch time.Time
	step  time.Duration
	reads int
}

// NewDeterministicClock creates a clock whose first Now call returns epoch
// and every later call returns the previous reading plus step.
func NewDeterministicClock(epoch time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{epoch: epoch, step: step}
}

// Now returns the next reading.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.epoch.Add(time.Duration(c.reads) * c.step)
	c.reads++
	return t
}

// Reset rewinds the clock to its epoch so a scenario can run again with
// identical readings.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads = 0
}
