package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/service"
)

const (
	// TypeCostBackfill is the task type for cost backfill
	TypeCostBackfill = "cost:backfill"
)

// CostBackfillPayload is the payload for cost backfill tasks
type CostBackfillPayload struct {
	BatchSize int `json:"batch_size"`
}

// NewCostBackfillTask creates a new cost backfill task
func NewCostBackfillTask(payload *CostBackfillPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cost backfill payload: %w", err)
	}
	return asynq.NewTask(TypeCostBackfill, data, asynq.MaxRetry(3)), nil
}

// BackfillMessageRepository is the message repository slice the worker needs.
type BackfillMessageRepository interface {
	ListMissingCost(ctx context.Context, limit int) ([]domain.AgentMessage, error)
	UpdateCost(ctx context.Context, id uuid.UUID, cost float64) error
}

// CostWorker recomputes costs for messages whose pricing was unknown at
// ingest time. It covers price-table entries that arrive after an agent
// already reported traffic.
type CostWorker struct {
	logger   *zap.Logger
	messages BackfillMessageRepository
	pricing  service.Pricing
}

// NewCostWorker creates a new cost worker
func NewCostWorker(logger *zap.Logger, messages BackfillMessageRepository, pricing service.Pricing) *CostWorker {
	return &CostWorker{
		logger:   logger,
		messages: messages,
		pricing:  pricing,
	}
}

// ProcessTask processes one cost backfill batch. Messages whose model
// still has no pricing keep their NULL cost and are picked up again by a
// later run.
func (w *CostWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload CostBackfillPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal cost backfill payload: %w", err)
	}
	if payload.BatchSize <= 0 {
		payload.BatchSize = 500
	}

	messages, err := w.messages.ListMissingCost(ctx, payload.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list messages missing cost: %w", err)
	}

	updated := 0
	for _, m := range messages {
		if m.Model == nil {
			continue
		}
		cost, ok := w.pricing.CostFor(*m.Model, m.InputTokens, m.OutputTokens)
		if !ok {
			continue
		}
		if err := w.messages.UpdateCost(ctx, m.ID, cost); err != nil {
			return fmt.Errorf("failed to backfill cost: %w", err)
		}
		updated++
	}

	w.logger.Info("cost backfill batch done",
		zap.Int("scanned", len(messages)),
		zap.Int("updated", updated),
	)
	return nil
}
