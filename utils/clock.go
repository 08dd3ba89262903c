package utils

import "time"

// Clock abstracts time so every TTL and expiry decision in the core is
// deterministic under test. Production code always goes through an injected
// Clock, never time.Now directly.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func CreateSystemClock() Clock {
	return systemClock{}
}

// FixedClock is a settable clock for tests and deterministic replays.
type FixedClock struct {
	current time.Time
}

func CreateFixedClock(t time.Time) *FixedClock {
	return &FixedClock{current: t}
}

func (c *FixedClock) Now() time.Time {
	return c.current
}

func (c *FixedClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func (c *FixedClock) Set(t time.Time) {
	c.current = t
}
