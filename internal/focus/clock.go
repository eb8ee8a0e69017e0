// Package focus implements the focus-session core: the session clock,
// the check-in prompt scheduler and the lifecycle controller that owns
// the in-memory state of a running session.
package focus

import "time"

// SessionClock produces a monotonically non-decreasing elapsed duration
// for an active session, excluding paused time. It is not safe for
// concurrent use; the owning controller serializes access.
type SessionClock struct {
	start       time.Time
	planned     time.Duration
	paused      bool
	pausedAt    time.Time
	accumulated time.Duration // total paused time so far
	doneFired   bool
}

// NewSessionClock creates a clock for a session started at start with
// the given planned duration.
func NewSessionClock(start time.Time, planned time.Duration) *SessionClock {
	return &SessionClock{start: start, planned: planned}
}

// Elapsed returns whole seconds of active (unpaused) session time.
// While paused the value is frozen at the pause instant.
func (c *SessionClock) Elapsed(now time.Time) time.Duration {
	if c.paused {
		now = c.pausedAt
	}
	d := now.Sub(c.start) - c.accumulated
	if d < 0 {
		d = 0
	}
	return d.Truncate(time.Second)
}

// Remaining returns the time left until the planned duration, floored
// at zero.
func (c *SessionClock) Remaining(now time.Time) time.Duration {
	r := c.planned - c.Elapsed(now)
	if r < 0 {
		r = 0
	}
	return r
}

// Paused reports whether the clock is currently frozen.
func (c *SessionClock) Paused() bool {
	return c.paused
}

// Pause freezes the clock at now. Returns false if already paused.
func (c *SessionClock) Pause(now time.Time) bool {
	if c.paused {
		return false
	}
	c.paused = true
	c.pausedAt = now
	return true
}

// Resume unfreezes the clock, adding the pause span to the accumulated
// paused duration. Returns false if not paused.
func (c *SessionClock) Resume(now time.Time) bool {
	if !c.paused {
		return false
	}
	span := now.Sub(c.pausedAt)
	if span > 0 {
		c.accumulated += span
	}
	c.paused = false
	return true
}

// CompletionDue reports whether elapsed time has reached the planned
// duration. It fires at most once: subsequent ticks that still observe
// the condition return false.
func (c *SessionClock) CompletionDue(now time.Time) bool {
	if c.doneFired {
		return false
	}
	if c.Elapsed(now) >= c.planned {
		c.doneFired = true
		return true
	}
	return false
}
