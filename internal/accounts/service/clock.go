package service

import "time"

// Clock supplies the current time. The lifecycle engine derives every state
// from stored timestamps plus this, so injecting a fixed clock makes the
// whole state machine deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by time.Now in UTC.
func SystemClock() Clock { return systemClock{} }

// FixedClock is a Clock pinned to a settable instant, for tests.
type FixedClock struct {
	Time time.Time
}

func (c *FixedClock) Now() time.Time { return c.Time }

// Advance moves the fixed clock forward.
func (c *FixedClock) Advance(d time.Duration) { c.Time = c.Time.Add(d) }
