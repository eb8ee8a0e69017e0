package handlers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"ticus/internal/middleware"
	"ticus/internal/services"
)

// AnalyticsHandler exposes study statistics and the xlsx export.
type AnalyticsHandler struct {
	analytics *services.AnalyticsService
	export    *services.ExportService
	loc       *time.Location
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(analytics *services.AnalyticsService, export *services.ExportService, loc *time.Location) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, export: export, loc: loc}
}

// Summary aggregates finalized sessions over a date range. Defaults to
// the trailing 7 days.
// GET /api/analytics/summary?from=2026-08-01&to=2026-08-30
func (h *AnalyticsHandler) Summary(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	to := time.Now().In(h.loc)
	from := to.AddDate(0, 0, -7)

	if v := c.Query("from"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "from must be YYYY-MM-DD",
			})
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "to must be YYYY-MM-DD",
			})
		}
		// Inclusive end date.
		to = parsed.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from must be before to",
		})
	}

	summary, err := h.analytics.Summary(context.Background(), userID, from, to)
	if err != nil {
		log.Printf("❌ Failed to compute summary for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute summary",
		})
	}
	return c.JSON(summary)
}

// Today reports progress against the daily goal.
// GET /api/analytics/today
func (h *AnalyticsHandler) Today(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	progress, err := h.analytics.TodayProgress(context.Background(), userID)
	if err != nil {
		log.Printf("❌ Failed to compute daily progress for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute daily progress",
		})
	}
	return c.JSON(progress)
}

// Export streams the user's session history as an xlsx workbook.
// GET /api/analytics/export
func (h *AnalyticsHandler) Export(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	buf, err := h.export.SessionsXLSX(context.Background(), userID)
	if err != nil {
		log.Printf("❌ Failed to export sessions for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export sessions",
		})
	}

	filename := fmt.Sprintf("ticus-sessions-%s.xlsx", time.Now().In(h.loc).Format("2006-01-02"))
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}
