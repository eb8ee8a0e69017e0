package handlers

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"

	"ticus/internal/middleware"
	"ticus/internal/models"
	"ticus/internal/services"
)

// SettingsHandler exposes the per-user focus preferences.
type SettingsHandler struct {
	settings *services.SettingsService
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get returns the user's settings, defaults included.
// GET /api/settings
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	settings, err := h.settings.Get(context.Background(), userID)
	if err != nil {
		log.Printf("❌ Failed to load settings for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load settings",
		})
	}
	return c.JSON(settings)
}

// Update applies a partial settings change. Changes take effect on the
// next session; the active session keeps the schedule it started with.
// PUT /api/settings
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var req models.UpdateUserSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	settings, err := h.settings.Update(context.Background(), userID, &req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(settings)
}
