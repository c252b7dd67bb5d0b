package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/agentscope/agentscope/internal/domain"
)

// Scope headers set by the upstream gateway after authenticating the
// caller. The service trusts them; it never derives scope from payloads.
const (
	HeaderTenantID  = "X-Scope-Tenant-Id"
	HeaderAgentID   = "X-Scope-Agent-Id"
	HeaderAgentName = "X-Scope-Agent-Name"
	HeaderUserID    = "X-Scope-User-Id"
)

const (
	localIngestionContext = "ingestionContext"
	localUserID           = "scopeUserID"
)

// IngestionScope materializes the IngestionContext for OTLP ingest routes.
// Requests without a complete scope are rejected before any payload parsing.
func IngestionScope() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantID, err := uuid.Parse(c.Get(HeaderTenantID))
		if err != nil {
			return unauthorized(c, "missing or invalid tenant id")
		}
		agentID, err := uuid.Parse(c.Get(HeaderAgentID))
		if err != nil {
			return unauthorized(c, "missing or invalid agent id")
		}
		agentName := c.Get(HeaderAgentName)
		if agentName == "" {
			return unauthorized(c, "missing agent name")
		}

		c.Locals(localIngestionContext, domain.IngestionContext{
			TenantID:  tenantID,
			AgentID:   agentID,
			AgentName: agentName,
			UserID:    c.Get(HeaderUserID),
		})

		return c.Next()
	}
}

// QueryScope requires the authenticated user id on analytics routes.
func QueryScope() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get(HeaderUserID)
		if userID == "" {
			return unauthorized(c, "missing user id")
		}

		c.Locals(localUserID, userID)

		return c.Next()
	}
}

// GetIngestionContext returns the ingest scope attached by IngestionScope.
func GetIngestionContext(c *fiber.Ctx) (domain.IngestionContext, bool) {
	ictx, ok := c.Locals(localIngestionContext).(domain.IngestionContext)
	return ictx, ok
}

// GetQueryContext returns the caller scope for analytics routes, with the
// optional agent narrowing filter taken from the agent query parameter.
func GetQueryContext(c *fiber.Ctx) (domain.QueryContext, bool) {
	userID, ok := c.Locals(localUserID).(string)
	if !ok || userID == "" {
		return domain.QueryContext{}, false
	}
	return domain.QueryContext{
		UserID:    userID,
		AgentName: c.Query("agent"),
	}, true
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "Unauthorized",
		"message": message,
	})
}
