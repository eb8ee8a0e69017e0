package models

import (
	"fmt"
	"time"
)

// TimetableEntry is one planned weekly study slot.
type TimetableEntry struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"userId" db:"user_id"`
	Weekday         int       `json:"weekday" db:"weekday"`                 // 0 = Sunday, matching time.Weekday
	StartTime       string    `json:"startTime" db:"start_time"`             // "HH:MM"
	DurationMinutes int       `json:"durationMinutes" db:"duration_minutes"`
	Subject         string    `json:"subject" db:"subject"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// CreateTimetableEntryRequest creates or replaces a weekly slot.
type CreateTimetableEntryRequest struct {
	Weekday         int    `json:"weekday" yaml:"weekday"`
	StartTime       string `json:"startTime" yaml:"startTime"`
	DurationMinutes int    `json:"durationMinutes" yaml:"durationMinutes"`
	Subject         string `json:"subject" yaml:"subject"`
}

// Validate checks weekday, time-of-day and duration bounds.
func (r *CreateTimetableEntryRequest) Validate() error {
	if r.Weekday < 0 || r.Weekday > 6 {
		return fmt.Errorf("weekday must be between 0 (Sunday) and 6 (Saturday)")
	}
	if _, _, err := ParseClockTime(r.StartTime); err != nil {
		return fmt.Errorf("startTime: %w", err)
	}
	if r.DurationMinutes <= 0 {
		return fmt.Errorf("durationMinutes must be positive")
	}
	if r.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	return nil
}

// TimetableTemplate is a named set of slots that can be applied to a
// user's timetable in one call. Templates are seeded from a YAML file.
type TimetableTemplate struct {
	Name  string                        `json:"name" yaml:"name"`
	Slots []CreateTimetableEntryRequest `json:"slots" yaml:"slots"`
}
