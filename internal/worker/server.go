package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/config"
	"github.com/agentscope/agentscope/internal/service"
)

// Server is the worker server
type Server struct {
	logger    *zap.Logger
	config    *config.Config
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	client    *asynq.Client
}

// Dependencies holds everything the workers need
type Dependencies struct {
	Messages BackfillMessageRepository
	Pricing  service.Pricing
}

// NewServer creates a new worker server
func NewServer(logger *zap.Logger, cfg *config.Config, deps *Dependencies) (*Server, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing failed",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
			Logger: &asynqLogger{logger: logger},
		},
	)

	costWorker := NewCostWorker(logger, deps.Messages, deps.Pricing)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCostBackfill, costWorker.ProcessTask)

	scheduler := asynq.NewScheduler(redisOpt, nil)
	client := asynq.NewClient(redisOpt)

	return &Server{
		logger:    logger,
		config:    cfg,
		server:    server,
		mux:       mux,
		scheduler: scheduler,
		client:    client,
	}, nil
}

// Start starts the worker server
func (s *Server) Start() error {
	if err := s.registerScheduledTasks(); err != nil {
		return fmt.Errorf("failed to register scheduled tasks: %w", err)
	}

	go func() {
		if err := s.scheduler.Run(); err != nil {
			s.logger.Error("scheduler stopped", zap.Error(err))
		}
	}()

	s.logger.Info("starting worker server",
		zap.Int("concurrency", s.config.Worker.Concurrency),
	)

	return s.server.Run(s.mux)
}

// Stop stops the worker server
func (s *Server) Stop() {
	s.server.Shutdown()
	s.scheduler.Shutdown()
	s.client.Close()
}

// Client returns the asynq client for enqueuing tasks
func (s *Server) Client() *asynq.Client {
	return s.client
}

// registerScheduledTasks registers periodic tasks with the scheduler
func (s *Server) registerScheduledTasks() error {
	if !s.config.Worker.CostEnabled {
		return nil
	}

	interval := s.config.Worker.CostIntervalMin
	if interval <= 0 {
		interval = 15
	}
	payload, err := json.Marshal(&CostBackfillPayload{BatchSize: s.config.Worker.CostBatchSize})
	if err != nil {
		return fmt.Errorf("failed to marshal cost backfill payload: %w", err)
	}

	_, err = s.scheduler.Register(
		fmt.Sprintf("@every %dm", interval),
		asynq.NewTask(TypeCostBackfill, payload),
		asynq.Queue("low"),
	)
	if err != nil {
		return fmt.Errorf("failed to register cost backfill task: %w", err)
	}

	return nil
}

// asynqLogger adapts zap to asynq's logger interface
type asynqLogger struct {
	logger *zap.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.logger.Sugar().Debug(args...) }
func (l *asynqLogger) Info(args ...interface{})  { l.logger.Sugar().Info(args...) }
func (l *asynqLogger) Warn(args ...interface{})  { l.logger.Sugar().Warn(args...) }
func (l *asynqLogger) Error(args ...interface{}) { l.logger.Sugar().Error(args...) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.logger.Sugar().Fatal(args...) }
