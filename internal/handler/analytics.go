package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/service"
)

// AnalyticsHandler handles the windowed analytics query endpoints
type AnalyticsHandler struct {
	logger     *zap.Logger
	analytics  *service.AnalyticsService
	timeseries *service.TimeSeriesService
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(
	logger *zap.Logger,
	analytics *service.AnalyticsService,
	timeseries *service.TimeSeriesService,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		logger:     logger,
		analytics:  analytics,
		timeseries: timeseries,
	}
}

// Overview handles GET /api/v1/analytics/overview.
func (h *AnalyticsHandler) Overview(c *fiber.Ctx) error {
	q, ok := RequireQueryContext(c)
	if !ok {
		return nil
	}

	overview, err := h.analytics.Overview(c.Context(), q, c.Query("range"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(overview)
}

// Summary handles GET /api/v1/analytics/summary. The metric query
// parameter selects which windowed total to return.
func (h *AnalyticsHandler) Summary(c *fiber.Ctx) error {
	q, ok := RequireQueryContext(c)
	if !ok {
		return nil
	}

	rng := c.Query("range")
	var (
		point interface{}
		err   error
	)
	switch c.Query("metric", "tokens") {
	case "tokens":
		point, err = h.analytics.TokenUsageSummary(c.Context(), q, rng)
	case "cost":
		point, err = h.analytics.SpendSummary(c.Context(), q, rng)
	case "messages":
		point, err = h.analytics.MessageCountSummary(c.Context(), q, rng)
	case "error_rate":
		point, err = h.analytics.ErrorRateSummary(c.Context(), q, rng)
	default:
		return errorResponse(c, fiber.StatusBadRequest, "unknown metric")
	}
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(point)
}

// Series handles GET /api/v1/analytics/series.
func (h *AnalyticsHandler) Series(c *fiber.Ctx) error {
	q, ok := RequireQueryContext(c)
	if !ok {
		return nil
	}

	points, err := h.timeseries.Series(c.Context(), q, c.Query("range"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"series": points})
}

// Models handles GET /api/v1/analytics/models.
func (h *AnalyticsHandler) Models(c *fiber.Ctx) error {
	q, ok := RequireQueryContext(c)
	if !ok {
		return nil
	}

	usage, err := h.timeseries.ModelBreakdown(c.Context(), q, c.Query("range"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"models": usage})
}

// Agents handles GET /api/v1/analytics/agents.
func (h *AnalyticsHandler) Agents(c *fiber.Ctx) error {
	q, ok := RequireQueryContext(c)
	if !ok {
		return nil
	}

	roster, err := h.timeseries.AgentRoster(c.Context(), q, c.Query("range"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"agents": roster})
}

// Skills handles GET /api/v1/analytics/skills.
func (h *AnalyticsHandler) Skills(c *fiber.Ctx) error {
	q, ok := RequireQueryContext(c)
	if !ok {
		return nil
	}

	skills, err := h.timeseries.ActiveSkills(c.Context(), q, c.Query("range"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"skills": skills})
}

// Messages handles GET /api/v1/messages, the keyset-paginated message
// search endpoint.
func (h *AnalyticsHandler) Messages(c *fiber.Ctx) error {
	q, ok := RequireQueryContext(c)
	if !ok {
		return nil
	}

	params := service.SearchParams{
		Range:       c.Query("range"),
		Status:      c.Query("status"),
		ServiceType: c.Query("service_type"),
		Model:       c.Query("model"),
		CostMin:     parseQueryFloat(c, "cost_min"),
		CostMax:     parseQueryFloat(c, "cost_max"),
		Limit:       parseQueryInt(c, "limit", 0),
		Cursor:      c.Query("cursor"),
	}

	page, err := h.analytics.SearchMessages(c.Context(), q, params)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(page)
}
