package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"ticus/internal/database"
	"ticus/internal/focus"
	"ticus/internal/services"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	db          *database.DB
	redis       *services.RedisService
	connManager *services.ConnectionManager
	registry    *focus.Registry
}

// NewHealthHandler creates a new health handler. redis may be nil when
// the mirror runs in memory.
func NewHealthHandler(db *database.DB, redis *services.RedisService, connManager *services.ConnectionManager, registry *focus.Registry) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, connManager: connManager, registry: registry}
}

// Handle responds with server health status.
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "ok"
	if err := h.db.PingContext(ctx); err != nil {
		status = "degraded"
		dbStatus = err.Error()
	}

	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = "ok"
		if err := h.redis.Ping(ctx); err != nil {
			status = "degraded"
			redisStatus = err.Error()
		}
	}

	return c.JSON(fiber.Map{
		"status":          status,
		"database":        dbStatus,
		"redis":           redisStatus,
		"connections":     h.connManager.Count(),
		"active_sessions": len(h.registry.ActiveUserIDs()),
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}
