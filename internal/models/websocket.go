package models

import (
	"time"

	"github.com/gofiber/contrib/websocket"
)

// Session event types pushed over the live WebSocket stream.
const (
	EventTick             = "tick"
	EventPromptDue        = "prompt_due"
	EventPromptResolved   = "prompt_resolved"
	EventSessionPaused    = "session_paused"
	EventSessionResumed   = "session_resumed"
	EventSessionCompleted = "session_completed"
	EventSessionEnded     = "session_ended"
	EventSessionDue       = "session_due" // timetable reminder
	EventPersistError     = "persist_error"
)

// SessionEvent is one message on the live session stream.
type SessionEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Tick payload
	ElapsedSeconds   int  `json:"elapsed_seconds,omitempty"`
	RemainingSeconds int  `json:"remaining_seconds,omitempty"`
	Paused           bool `json:"paused,omitempty"`

	// Prompt payload
	ResponseWindowSeconds int    `json:"response_window_seconds,omitempty"`
	Sound                 bool   `json:"sound,omitempty"` // false when the user muted prompts
	WasFocused            *bool  `json:"was_focused,omitempty"`
	AutoResolved          bool   `json:"auto_resolved,omitempty"`

	// Terminal payload
	Status        string  `json:"status,omitempty"`
	FocusAccuracy float64 `json:"focus_accuracy,omitempty"`

	// Reminder / error payload
	Subject string `json:"subject,omitempty"`
	Message string `json:"message,omitempty"`
}

// UserConnection tracks one WebSocket connection and its write pump.
type UserConnection struct {
	ConnID    string
	UserID    string
	Conn      *websocket.Conn
	CreatedAt time.Time
	WriteChan chan SessionEvent
	StopChan  chan struct{}
}
