// Package testutil holds the deterministic collaborators the engine
// and harness tests plug in via the engine's options: a settable clock
// and recording notification/audit sinks.
package testutil

import (
	"sync"
	"time"
)

// FakeClock is a thread-safe, manually advanced wall clock. It
// satisfies engine.Clock, letting tests place "now" anywhere and march
// it forward to trigger lifecycle transitions.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock frozen at the given instant, normalized
// to UTC to match SystemClock.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now.UTC()}
}

// Now returns the clock's current instant. Implements engine.Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new instant.
func (c *FakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set jumps the clock to the given instant, normalized to UTC. Unlike
// Advance it may move time backwards; tests use it to replay the same
// scenario from an identical starting point.
func (c *FakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now.UTC()
}
