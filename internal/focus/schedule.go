package focus

import (
	"fmt"
	"time"

	"ticus/internal/models"
)

// PromptMark is a scheduled check-in prompt. Interval-policy marks are
// expressed in elapsed session time so that pausing the session also
// pushes the prompt out; preferred-time marks are wall-clock instants.
type PromptMark struct {
	Elapsed time.Duration `json:"elapsed,omitempty"`
	At      time.Time     `json:"at,omitempty"`
}

// PromptSchedule decides when a check-in prompt becomes due, per the
// user's configured policy.
type PromptSchedule struct {
	policy   string
	interval time.Duration
	hour     int
	minute   int
	loc      *time.Location
}

// NewPromptSchedule builds a schedule from user settings. The location
// is used to resolve the preferred time of day.
func NewPromptSchedule(s *models.UserSettings, loc *time.Location) (*PromptSchedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch s.CheckinPolicy {
	case models.PolicyInterval:
		if s.CheckinIntervalMinutes < 1 {
			return nil, fmt.Errorf("check-in interval must be at least 1 minute, got %d", s.CheckinIntervalMinutes)
		}
		return &PromptSchedule{
			policy:   models.PolicyInterval,
			interval: time.Duration(s.CheckinIntervalMinutes) * time.Minute,
			loc:      loc,
		}, nil
	case models.PolicyPreferredTime:
		hour, minute, err := models.ParseClockTime(s.PreferredPromptTime)
		if err != nil {
			return nil, err
		}
		return &PromptSchedule{
			policy: models.PolicyPreferredTime,
			hour:   hour,
			minute: minute,
			loc:    loc,
		}, nil
	default:
		return nil, fmt.Errorf("unknown check-in policy %q", s.CheckinPolicy)
	}
}

// First returns the first prompt mark for a session starting at start.
// Interval policy: one full interval of elapsed time. Preferred time:
// the next occurrence of HH:MM strictly after start (rolling to the
// following day when the time has already passed).
func (p *PromptSchedule) First(start time.Time) PromptMark {
	if p.policy == models.PolicyInterval {
		return PromptMark{Elapsed: p.interval}
	}
	return PromptMark{At: p.nextOccurrence(start)}
}

// Next returns the mark following a prompt resolved at now with the
// given elapsed session time.
func (p *PromptSchedule) Next(now time.Time, elapsed time.Duration) PromptMark {
	if p.policy == models.PolicyInterval {
		return PromptMark{Elapsed: elapsed + p.interval}
	}
	return PromptMark{At: p.nextOccurrence(now)}
}

// Due reports whether the mark has been reached. A mark in the past is
// due immediately; overdue marks are never skipped or stacked.
func (p *PromptSchedule) Due(mark PromptMark, now time.Time, elapsed time.Duration) bool {
	if p.policy == models.PolicyInterval {
		return elapsed >= mark.Elapsed
	}
	return !now.Before(mark.At)
}

// nextOccurrence returns the next HH:MM in p.loc strictly after t.
func (p *PromptSchedule) nextOccurrence(t time.Time) time.Time {
	local := t.In(p.loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), p.hour, p.minute, 0, 0, p.loc)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
