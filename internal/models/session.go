package models

import (
	"fmt"
	"time"
)

// Session status values. Transitions are forward-only:
// in_progress -> completed | abandoned.
const (
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionAbandoned  = "abandoned"
)

// Session represents one timed focus attempt tied to a subject and
// planned duration.
type Session struct {
	ID                     string    `json:"id" db:"id"`
	UserID                 string    `json:"userId" db:"user_id"`
	Subject                string    `json:"subject" db:"subject"`
	PlannedDurationMinutes int       `json:"plannedDurationMinutes" db:"planned_duration_minutes"`
	StartTimestamp         time.Time `json:"startTimestamp" db:"start_timestamp"`
	Status                 string    `json:"status" db:"status"`

	// Set only when the session is finalized.
	ActualDurationMinutes int        `json:"actualDurationMinutes" db:"actual_duration_minutes"`
	TotalCheckins         int        `json:"totalCheckins" db:"total_checkins"`
	SuccessfulCheckins    int        `json:"successfulCheckins" db:"successful_checkins"`
	FocusAccuracy         float64    `json:"focusAccuracy" db:"focus_accuracy"`
	FinalizedAt           *time.Time `json:"finalizedAt,omitempty" db:"finalized_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Terminal reports whether the session has reached a terminal status.
func (s *Session) Terminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionAbandoned
}

// CheckIn is one focus-verification prompt-response event. Check-ins are
// append-only: never updated or deleted once recorded.
type CheckIn struct {
	ID                  string    `json:"id" db:"id"`
	SessionID           string    `json:"sessionId" db:"session_id"`
	Timestamp           time.Time `json:"timestamp" db:"timestamp"`
	WasFocused          bool      `json:"wasFocused" db:"was_focused"`
	ResponseTimeSeconds int       `json:"responseTimeSeconds" db:"response_time_seconds"`
}

// CreateSessionRequest starts a new focus session. Either Subject and
// PlannedDurationMinutes are given directly, or SlotID references a
// timetable entry to copy them from.
type CreateSessionRequest struct {
	Subject                string `json:"subject"`
	PlannedDurationMinutes int    `json:"plannedDurationMinutes"`
	SlotID                 string `json:"slotId,omitempty"`
}

// Validate checks the request when no timetable slot is referenced.
func (r *CreateSessionRequest) Validate() error {
	if r.SlotID != "" {
		return nil
	}
	if r.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if r.PlannedDurationMinutes <= 0 {
		return fmt.Errorf("plannedDurationMinutes must be positive")
	}
	return nil
}

// FinalizeSessionRequest carries the terminal metrics for a session.
type FinalizeSessionRequest struct {
	SessionID             string  `json:"sessionId"`
	Status                string  `json:"status"`
	ActualDurationMinutes int     `json:"actualDurationMinutes"`
	TotalCheckins         int     `json:"totalCheckins"`
	SuccessfulCheckins    int     `json:"successfulCheckins"`
	FocusAccuracy         float64 `json:"focusAccuracy"`
}

// Validate enforces the terminal-status and check-in-count invariants.
func (r *FinalizeSessionRequest) Validate() error {
	if r.Status != SessionCompleted && r.Status != SessionAbandoned {
		return fmt.Errorf("status must be %s or %s", SessionCompleted, SessionAbandoned)
	}
	if r.SuccessfulCheckins > r.TotalCheckins {
		return fmt.Errorf("successfulCheckins (%d) exceeds totalCheckins (%d)", r.SuccessfulCheckins, r.TotalCheckins)
	}
	if r.ActualDurationMinutes < 0 {
		return fmt.Errorf("actualDurationMinutes must not be negative")
	}
	return nil
}

// FocusAccuracy computes the percentage of check-ins answered "still
// focused". A session with no check-ins counts as fully focused.
func FocusAccuracy(successful, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(successful) / float64(total) * 100
}

// RespondCheckInRequest is the user's answer to an outstanding prompt.
type RespondCheckInRequest struct {
	WasFocused bool `json:"wasFocused"`
}

// EndSessionRequest ends the active session explicitly.
type EndSessionRequest struct {
	Status string `json:"status"` // defaults to abandoned
}

// ActiveSessionView is the API snapshot of the in-memory session state.
type ActiveSessionView struct {
	Session           Session    `json:"session"`
	ElapsedSeconds    int        `json:"elapsedSeconds"`
	RemainingSeconds  int        `json:"remainingSeconds"`
	Paused            bool       `json:"paused"`
	PromptPending     bool       `json:"promptPending"`
	ResponseRemaining int        `json:"responseRemainingSeconds"`
	NextPromptAt      *time.Time `json:"nextPromptAt,omitempty"`
	CheckIns          []CheckIn  `json:"checkIns"`
}
