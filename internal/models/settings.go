package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Check-in scheduling policies. Mutually exclusive, chosen per user.
const (
	PolicyInterval      = "interval"       // prompt every N minutes of elapsed time
	PolicyPreferredTime = "preferred_time" // prompt at a daily HH:MM
)

// UserSettings holds the per-user focus preferences consumed by the
// check-in scheduler and the notification layer.
type UserSettings struct {
	UserID                 string    `json:"userId" db:"user_id"`
	CheckinPolicy          string    `json:"checkinPolicy" db:"checkin_policy"`
	CheckinIntervalMinutes int       `json:"checkinIntervalMinutes" db:"checkin_interval_minutes"`
	PreferredPromptTime    string    `json:"preferredPromptTime" db:"preferred_prompt_time"` // "HH:MM"
	SoundEnabled           bool      `json:"soundEnabled" db:"sound_enabled"`
	DailyGoalMinutes       int       `json:"dailyGoalMinutes" db:"daily_goal_minutes"`
	UpdatedAt              time.Time `json:"updatedAt" db:"updated_at"`
}

// DefaultUserSettings returns the settings applied to a user who has
// never saved any.
func DefaultUserSettings(userID string) *UserSettings {
	return &UserSettings{
		UserID:                 userID,
		CheckinPolicy:          PolicyInterval,
		CheckinIntervalMinutes: 25,
		PreferredPromptTime:    "09:00",
		SoundEnabled:           true,
		DailyGoalMinutes:       120,
	}
}

// Validate checks policy, interval and preferred-time constraints.
func (s *UserSettings) Validate() error {
	switch s.CheckinPolicy {
	case PolicyInterval, PolicyPreferredTime:
	default:
		return fmt.Errorf("checkinPolicy must be %q or %q", PolicyInterval, PolicyPreferredTime)
	}
	if s.CheckinIntervalMinutes < 1 {
		return fmt.Errorf("checkinIntervalMinutes must be at least 1")
	}
	if _, _, err := ParseClockTime(s.PreferredPromptTime); err != nil {
		return fmt.Errorf("preferredPromptTime: %w", err)
	}
	if s.DailyGoalMinutes < 0 {
		return fmt.Errorf("dailyGoalMinutes must not be negative")
	}
	return nil
}

// UpdateUserSettingsRequest is a partial settings update. Nil fields are
// left unchanged.
type UpdateUserSettingsRequest struct {
	CheckinPolicy          *string `json:"checkinPolicy,omitempty"`
	CheckinIntervalMinutes *int    `json:"checkinIntervalMinutes,omitempty"`
	PreferredPromptTime    *string `json:"preferredPromptTime,omitempty"`
	SoundEnabled           *bool   `json:"soundEnabled,omitempty"`
	DailyGoalMinutes       *int    `json:"dailyGoalMinutes,omitempty"`
}

// Apply merges the non-nil fields into s.
func (r *UpdateUserSettingsRequest) Apply(s *UserSettings) {
	if r.CheckinPolicy != nil {
		s.CheckinPolicy = *r.CheckinPolicy
	}
	if r.CheckinIntervalMinutes != nil {
		s.CheckinIntervalMinutes = *r.CheckinIntervalMinutes
	}
	if r.PreferredPromptTime != nil {
		s.PreferredPromptTime = *r.PreferredPromptTime
	}
	if r.SoundEnabled != nil {
		s.SoundEnabled = *r.SoundEnabled
	}
	if r.DailyGoalMinutes != nil {
		s.DailyGoalMinutes = *r.DailyGoalMinutes
	}
}

// ParseClockTime parses an "HH:MM" wall-clock time of day.
func ParseClockTime(v string) (hour, minute int, err error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", v)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", v)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", v)
	}
	return hour, minute, nil
}
