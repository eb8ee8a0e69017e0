package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"ticus/internal/focus"
	"ticus/internal/middleware"
	"ticus/internal/models"
	"ticus/internal/services"
)

// SessionHandler exposes the focus-session lifecycle over REST.
type SessionHandler struct {
	sessions  *services.SessionService
	settings  *services.SettingsService
	timetable *services.TimetableService
	registry  *focus.Registry
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *services.SessionService, settings *services.SettingsService, timetable *services.TimetableService, registry *focus.Registry) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		settings:  settings,
		timetable: timetable,
		registry:  registry,
	}
}

// Create starts a new focus session.
// POST /api/sessions
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var req models.CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	ctx := context.Background()

	subject := req.Subject
	planned := req.PlannedDurationMinutes
	if req.SlotID != "" {
		slot, err := h.timetable.Get(ctx, req.SlotID, userID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Timetable slot not found",
			})
		}
		subject = slot.Subject
		planned = slot.DurationMinutes
	}

	if _, active := h.registry.Get(userID); active {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A session is already in progress",
		})
	}

	settings, err := h.settings.Get(ctx, userID)
	if err != nil {
		log.Printf("❌ Failed to load settings for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load settings",
		})
	}

	ctrl, err := h.startSession(ctx, userID, subject, planned, settings)
	if errors.Is(err, focus.ErrSessionActive) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A session is already in progress",
		})
	}
	if err != nil {
		log.Printf("❌ Failed to start session for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start session",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(ctrl.View())
}

func (h *SessionHandler) startSession(ctx context.Context, userID, subject string, planned int, settings *models.UserSettings) (*focus.Controller, error) {
	session, err := h.sessions.Create(ctx, userID, subject, planned, time.Now())
	if err != nil {
		return nil, err
	}
	return h.registry.Start(*session, settings)
}

// Active returns the live state of the user's session, restoring it
// from the durable mirror after a server restart.
// GET /api/sessions/active
func (h *SessionHandler) Active(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	ctrl, ok := h.registry.Get(userID)
	if !ok {
		settings, err := h.settings.Get(context.Background(), userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to load settings",
			})
		}
		restored, err := h.registry.Restore(context.Background(), userID, settings)
		if errors.Is(err, focus.ErrNoSnapshot) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "No active session",
			})
		}
		if err != nil {
			log.Printf("❌ Failed to restore session for %s: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to restore session",
			})
		}
		ctrl = restored
	}

	return c.JSON(ctrl.View())
}

// Pause suspends the clock, the scheduler and any open prompt.
// POST /api/sessions/active/pause
func (h *SessionHandler) Pause(c *fiber.Ctx) error {
	return h.withActive(c, func(ctrl *focus.Controller) error {
		if err := ctrl.Pause(); err != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(ctrl.View())
	})
}

// Resume continues a paused session.
// POST /api/sessions/active/resume
func (h *SessionHandler) Resume(c *fiber.Ctx) error {
	return h.withActive(c, func(ctrl *focus.Controller) error {
		if err := ctrl.Resume(); err != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(ctrl.View())
	})
}

// Respond answers the outstanding focus prompt.
// POST /api/sessions/active/checkin
func (h *SessionHandler) Respond(c *fiber.Ctx) error {
	var req models.RespondCheckInRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	return h.withActive(c, func(ctrl *focus.Controller) error {
		checkIn, err := ctrl.Respond(req.WasFocused)
		if errors.Is(err, focus.ErrNoPromptPending) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "No check-in prompt is pending",
			})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(checkIn)
	})
}

// End finalizes the active session ahead of its planned duration.
// POST /api/sessions/active/end
func (h *SessionHandler) End(c *fiber.Ctx) error {
	var req models.EndSessionRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	status := req.Status
	if status == "" {
		status = models.SessionAbandoned
	}
	if status != models.SessionCompleted && status != models.SessionAbandoned {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "status must be completed or abandoned",
		})
	}

	return h.withActive(c, func(ctrl *focus.Controller) error {
		if err := ctrl.End(status); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"session_id": ctrl.SessionID(),
			"status":     status,
		})
	})
}

// History lists the user's finalized sessions, newest first.
// GET /api/sessions
func (h *SessionHandler) History(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	sessions, err := h.sessions.List(context.Background(), userID, limit, offset)
	if err != nil {
		log.Printf("❌ Failed to list sessions for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list sessions",
		})
	}
	if sessions == nil {
		sessions = []models.Session{}
	}

	return c.JSON(fiber.Map{
		"sessions": sessions,
		"limit":    limit,
		"offset":   offset,
	})
}

// CheckIns lists one session's check-in records.
// GET /api/sessions/:id/checkins
func (h *SessionHandler) CheckIns(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	sessionID := c.Params("id")

	ctx := context.Background()
	if _, err := h.sessions.Get(ctx, sessionID, userID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	checkIns, err := h.sessions.ListCheckIns(ctx, sessionID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list check-ins",
		})
	}
	if checkIns == nil {
		checkIns = []models.CheckIn{}
	}

	return c.JSON(fiber.Map{"checkins": checkIns})
}

func (h *SessionHandler) withActive(c *fiber.Ctx, fn func(*focus.Controller) error) error {
	userID := middleware.UserID(c)
	ctrl, ok := h.registry.Get(userID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No active session",
		})
	}
	return fn(ctrl)
}
