package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/service"
)

// AgentHandler handles agent registry endpoints
type AgentHandler struct {
	logger *zap.Logger
	agents *service.AgentService
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(logger *zap.Logger, agents *service.AgentService) *AgentHandler {
	return &AgentHandler{
		logger: logger,
		agents: agents,
	}
}

// RenameRequest is the body of a rename call.
type RenameRequest struct {
	NewName string `json:"new_name"`
}

// List handles GET /api/v1/agents.
func (h *AgentHandler) List(c *fiber.Ctx) error {
	q, ok := RequireQueryContext(c)
	if !ok {
		return nil
	}

	agents, err := h.agents.ListAgents(c.Context(), q)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"agents": agents})
}

// Delete handles DELETE /api/v1/agents/:name.
func (h *AgentHandler) Delete(c *fiber.Ctx) error {
	q, ok := RequireQueryContext(c)
	if !ok {
		return nil
	}

	name := c.Params("name")
	if err := h.agents.DeleteAgent(c.Context(), q.UserID, name); err != nil {
		return serviceError(c, err)
	}

	h.logger.Info("agent deleted",
		zap.String("user_id", q.UserID),
		zap.String("agent_name", name),
	)
	return c.SendStatus(fiber.StatusNoContent)
}

// Rename handles POST /api/v1/agents/:name/rename. The rename cascades to
// every table carrying a denormalized agent name in one transaction.
func (h *AgentHandler) Rename(c *fiber.Ctx) error {
	q, ok := RequireQueryContext(c)
	if !ok {
		return nil
	}

	var req RenameRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}

	from := c.Params("name")
	if err := h.agents.RenameAgent(c.Context(), q.UserID, from, req.NewName); err != nil {
		return serviceError(c, err)
	}

	h.logger.Info("agent renamed",
		zap.String("user_id", q.UserID),
		zap.String("from", from),
		zap.String("to", req.NewName),
	)
	return c.JSON(fiber.Map{"name": req.NewName})
}
