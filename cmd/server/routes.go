package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentscope/agentscope/internal/middleware"
)

// registerRoutes registers all HTTP routes
func registerRoutes(app *fiber.App, deps *Dependencies) {
	// Health check routes (no scope required)
	app.Get("/health", deps.HealthHandler.Health)
	app.Get("/healthz", deps.HealthHandler.Health)
	app.Get("/ready", deps.HealthHandler.Ready)
	app.Get("/readyz", deps.HealthHandler.Ready)

	// Prometheus metrics
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// OTLP ingest endpoints (ingestion scope from trusted headers)
	ingest := app.Group("/v1", middleware.IngestionScope())
	{
		ingest.Post("/traces", deps.OTLPHandler.ReceiveTraces)
		ingest.Post("/metrics", deps.OTLPHandler.ReceiveMetrics)
		ingest.Post("/logs", deps.OTLPHandler.ReceiveLogs)
	}

	// Analytics query surface
	api := app.Group("/api/v1", middleware.QueryScope())
	{
		api.Get("/analytics/overview", deps.AnalyticsHandler.Overview)
		api.Get("/analytics/summary", deps.AnalyticsHandler.Summary)
		api.Get("/analytics/series", deps.AnalyticsHandler.Series)
		api.Get("/analytics/models", deps.AnalyticsHandler.Models)
		api.Get("/analytics/agents", deps.AnalyticsHandler.Agents)
		api.Get("/analytics/skills", deps.AnalyticsHandler.Skills)

		api.Get("/messages", deps.AnalyticsHandler.Messages)

		api.Get("/agents", deps.AgentHandler.List)
		api.Delete("/agents/:name", deps.AgentHandler.Delete)
		api.Post("/agents/:name/rename", deps.AgentHandler.Rename)
	}
}
