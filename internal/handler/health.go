package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agentscope/agentscope/internal/pkg/database"
)

// HealthHandler exposes liveness and readiness probes
type HealthHandler struct {
	db    *database.PostgresDB
	redis *database.RedisDB
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.PostgresDB, redis *database.RedisDB) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready handles GET /ready. It verifies the backing stores are reachable.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	checks := fiber.Map{"postgres": "ok", "redis": "ok"}
	healthy := true

	if err := h.db.Pool.Ping(c.Context()); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	}
	if err := h.redis.Client.Ping(c.Context()).Err(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"checks": checks,
		})
	}
	return c.JSON(fiber.Map{"status": "ok", "checks": checks})
}
