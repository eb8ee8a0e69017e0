package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"ticus/internal/middleware"
	"ticus/internal/models"
	"ticus/internal/services"
)

// TimetableHandler exposes the weekly study plan.
type TimetableHandler struct {
	timetable *services.TimetableService
	reminders *services.ReminderService
}

// NewTimetableHandler creates a new timetable handler.
func NewTimetableHandler(timetable *services.TimetableService, reminders *services.ReminderService) *TimetableHandler {
	return &TimetableHandler{timetable: timetable, reminders: reminders}
}

// List returns the user's timetable.
// GET /api/timetable
func (h *TimetableHandler) List(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	entries, err := h.timetable.List(context.Background(), userID)
	if err != nil {
		log.Printf("❌ Failed to list timetable for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list timetable",
		})
	}
	if entries == nil {
		entries = []models.TimetableEntry{}
	}
	return c.JSON(fiber.Map{"entries": entries})
}

// Create adds a slot to the timetable.
// POST /api/timetable
func (h *TimetableHandler) Create(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var req models.CreateTimetableEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	entry, err := h.timetable.Create(context.Background(), userID, &req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.refreshReminders(userID)
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// Update replaces one slot.
// PUT /api/timetable/:id
func (h *TimetableHandler) Update(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	slotID := c.Params("id")

	var req models.CreateTimetableEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	entry, err := h.timetable.Update(context.Background(), slotID, userID, &req)
	if errors.Is(err, services.ErrSlotNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Timetable slot not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.refreshReminders(userID)
	return c.JSON(entry)
}

// Delete removes one slot.
// DELETE /api/timetable/:id
func (h *TimetableHandler) Delete(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	slotID := c.Params("id")

	err := h.timetable.Delete(context.Background(), slotID, userID)
	if errors.Is(err, services.ErrSlotNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Timetable slot not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete timetable slot",
		})
	}

	h.refreshReminders(userID)
	return c.SendStatus(fiber.StatusNoContent)
}

// Templates lists the available timetable templates.
// GET /api/timetable/templates
func (h *TimetableHandler) Templates(c *fiber.Ctx) error {
	templates := h.timetable.Templates()
	if templates == nil {
		templates = []models.TimetableTemplate{}
	}
	return c.JSON(fiber.Map{"templates": templates})
}

// ApplyTemplate replaces the user's timetable with a named template.
// POST /api/timetable/templates/:name/apply
func (h *TimetableHandler) ApplyTemplate(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	name := c.Params("name")

	entries, err := h.timetable.ApplyTemplate(context.Background(), userID, name)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.refreshReminders(userID)
	return c.JSON(fiber.Map{"entries": entries})
}

func (h *TimetableHandler) refreshReminders(userID string) {
	if h.reminders == nil {
		return
	}
	if err := h.reminders.Refresh(context.Background(), userID); err != nil {
		log.Printf("⚠️  Failed to refresh reminders for %s: %v", userID, err)
	}
}
