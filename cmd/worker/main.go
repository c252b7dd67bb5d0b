package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/config"
	"github.com/agentscope/agentscope/internal/pkg/database"
	"github.com/agentscope/agentscope/internal/pkg/logger"
	pgrepo "github.com/agentscope/agentscope/internal/repository/postgres"
	"github.com/agentscope/agentscope/internal/service"
	"github.com/agentscope/agentscope/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Log

	log.Info("starting worker service")

	// Initialize dependencies
	deps, cleanup, err := initWorkerDependencies(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer cleanup()

	// Create worker server
	workerServer, err := worker.NewServer(log, cfg, deps)
	if err != nil {
		log.Fatal("failed to create worker server", zap.Error(err))
	}

	// Start worker in a goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- workerServer.Start()
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down worker...")
		workerServer.Stop()
	case err := <-errCh:
		if err != nil {
			log.Error("worker server error", zap.Error(err))
		}
	}

	log.Info("worker stopped")
}

// initWorkerDependencies initializes dependencies for the worker
func initWorkerDependencies(cfg *config.Config, log *zap.Logger) (*worker.Dependencies, func(), error) {
	ctx := context.Background()

	pgDB, err := database.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	messageRepo := pgrepo.NewMessageRepository(pgDB)
	pricingRepo := pgrepo.NewPricingRepository(pgDB)

	pricing := service.NewPricingService(pricingRepo, log)
	if err := pricing.Refresh(ctx); err != nil {
		log.Warn("initial pricing refresh failed, using defaults", zap.Error(err))
	}

	deps := &worker.Dependencies{
		Messages: messageRepo,
		Pricing:  pricing,
	}

	cleanup := func() {
		pgDB.Close()
	}

	return deps, cleanup, nil
}
