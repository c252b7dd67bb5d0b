package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/config"
	"github.com/agentscope/agentscope/internal/handler"
	"github.com/agentscope/agentscope/internal/pkg/database"
	"github.com/agentscope/agentscope/internal/receiver"
	pgrepo "github.com/agentscope/agentscope/internal/repository/postgres"
	"github.com/agentscope/agentscope/internal/seen"
	"github.com/agentscope/agentscope/internal/service"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	// Database connections
	Postgres *database.PostgresDB
	Redis    *database.RedisDB

	// Repositories
	MessageRepo   *pgrepo.MessageRepository
	LlmCallRepo   *pgrepo.LlmCallRepository
	ToolRepo      *pgrepo.ToolExecutionRepository
	SnapshotRepo  *pgrepo.SnapshotRepository
	LogRepo       *pgrepo.LogRepository
	AgentRepo     *pgrepo.AgentRepository
	AnalyticsRepo *pgrepo.AnalyticsRepository
	PricingRepo   *pgrepo.PricingRepository

	// Services
	PricingService    *service.PricingService
	IngestionService  *service.IngestionService
	MetricsService    *service.MetricsService
	LogsService       *service.LogsService
	AnalyticsService  *service.AnalyticsService
	TimeSeriesService *service.TimeSeriesService
	AgentService      *service.AgentService

	// Handlers
	HealthHandler    *handler.HealthHandler
	OTLPHandler      *handler.OTLPHandler
	AnalyticsHandler *handler.AnalyticsHandler
	AgentHandler     *handler.AgentHandler

	// gRPC OTLP receiver
	GRPCReceiver *receiver.GRPCReceiver

	cancelPricingRefresh context.CancelFunc
}

// initDependencies initializes all dependencies
func initDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	ctx := context.Background()

	pgDB, err := database.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	deps.Postgres = pgDB

	redisDB, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		pgDB.Close()
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	deps.Redis = redisDB

	// Repositories
	deps.MessageRepo = pgrepo.NewMessageRepository(pgDB)
	deps.LlmCallRepo = pgrepo.NewLlmCallRepository(pgDB)
	deps.ToolRepo = pgrepo.NewToolExecutionRepository(pgDB)
	deps.SnapshotRepo = pgrepo.NewSnapshotRepository(pgDB)
	deps.LogRepo = pgrepo.NewLogRepository(pgDB)
	deps.AgentRepo = pgrepo.NewAgentRepository(pgDB)
	deps.AnalyticsRepo = pgrepo.NewAnalyticsRepository(pgDB)
	deps.PricingRepo = pgrepo.NewPricingRepository(pgDB)

	// Services
	deps.PricingService = service.NewPricingService(deps.PricingRepo, logger)
	if err := deps.PricingService.Refresh(ctx); err != nil {
		logger.Warn("initial pricing refresh failed, using defaults", zap.Error(err))
	}
	if cfg.Pricing.RefreshEnabled {
		refreshCtx, cancel := context.WithCancel(context.Background())
		deps.cancelPricingRefresh = cancel
		interval := cfg.Pricing.RefreshInterval
		if interval <= 0 {
			interval = 30 * time.Minute
		}
		deps.PricingService.StartRefresh(refreshCtx, interval)
	}

	deps.IngestionService = service.NewIngestionService(
		deps.MessageRepo,
		deps.LlmCallRepo,
		deps.ToolRepo,
		deps.AgentRepo,
		deps.PricingService,
		seen.NewRedisStore(redisDB),
		logger,
	)
	deps.MetricsService = service.NewMetricsService(deps.SnapshotRepo, logger)
	deps.LogsService = service.NewLogsService(deps.LogRepo, logger)
	deps.AnalyticsService = service.NewAnalyticsService(deps.AnalyticsRepo, deps.MessageRepo, logger)
	deps.TimeSeriesService = service.NewTimeSeriesService(deps.AnalyticsRepo, deps.AgentRepo, logger)
	deps.AgentService = service.NewAgentService(deps.AgentRepo, pgDB, logger)

	// Handlers
	deps.HealthHandler = handler.NewHealthHandler(pgDB, redisDB)
	deps.OTLPHandler = handler.NewOTLPHandler(
		logger,
		deps.IngestionService,
		deps.MetricsService,
		deps.LogsService,
		cfg.Ingest.MaxBatchSpans,
	)
	deps.AnalyticsHandler = handler.NewAnalyticsHandler(
		logger,
		deps.AnalyticsService,
		deps.TimeSeriesService,
	)
	deps.AgentHandler = handler.NewAgentHandler(logger, deps.AgentService)

	// gRPC OTLP receiver
	deps.GRPCReceiver = receiver.NewGRPCReceiver(
		fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort),
		logger,
		deps.IngestionService,
		deps.MetricsService,
		deps.LogsService,
	)

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() {
	if d.cancelPricingRefresh != nil {
		d.cancelPricingRefresh()
	}
	if d.Postgres != nil {
		d.Postgres.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}
