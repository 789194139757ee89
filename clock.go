package reactor

import (
	"fmt"
	"time"
)

// ClockID selects the clock a timer source is measured against.
type ClockID uint8

const (
	// Monotonic timers compare deadlines against the monotonic clock reading
	// carried by [time.Time] values obtained from [time.Now], so they are not
	// affected by wall clock adjustments.
	Monotonic ClockID = iota
	// Realtime timers compare deadlines against the wall clock.
	Realtime
)

// String returns a human-readable representation of the clock.
func (c ClockID) String() string {
	switch c {
	case Monotonic:
		return "monotonic"
	case Realtime:
		return "realtime"
	default:
		return fmt.Sprintf("ClockID(%d)", uint8(c))
	}
}

func (c ClockID) valid() bool {
	return c == Monotonic || c == Realtime
}

// Clock provides the current time for each [ClockID]. It may be replaced
// using [WithClock], e.g. to drive timers deterministically in tests.
type Clock interface {
	Now(id ClockID) time.Time
}

// ClockFunc adapts a function to the [Clock] interface.
type ClockFunc func(id ClockID) time.Time

// Now calls f(id).
func (f ClockFunc) Now(id ClockID) time.Time { return f(id) }

// SystemClock is the default [Clock].
type SystemClock struct{}

// Now returns time.Now(), stripped of its monotonic reading for [Realtime].
func (SystemClock) Now(id ClockID) time.Time {
	now := time.Now()
	if id == Realtime {
		return now.Round(0)
	}
	return now
}

// clockSnapshot caches the time of the last wake-up, per clock.
type clockSnapshot struct {
	times [2]time.Time
	valid bool
}

func (c *clockSnapshot) take(clock Clock) {
	c.times[Monotonic] = clock.Now(Monotonic)
	c.times[Realtime] = clock.Now(Realtime)
	c.valid = true
}

// expired reports whether deadline has been reached on the given clock.
func (c *clockSnapshot) expired(id ClockID, deadline time.Time) bool {
	now := c.times[id]
	if id == Realtime {
		deadline = deadline.Round(0)
	}
	return !deadline.After(now)
}

// until returns the delay until deadline on the given clock, never negative.
func (c *clockSnapshot) until(id ClockID, deadline time.Time) time.Duration {
	now := c.times[id]
	if id == Realtime {
		deadline = deadline.Round(0)
	}
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
