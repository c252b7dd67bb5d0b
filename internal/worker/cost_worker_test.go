package worker

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/service"
)

// MockBackfillRepository is a mock implementation of BackfillMessageRepository
type MockBackfillRepository struct {
	mock.Mock
}

func (m *MockBackfillRepository) ListMissingCost(ctx context.Context, limit int) ([]domain.AgentMessage, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.AgentMessage), args.Error(1)
}

func (m *MockBackfillRepository) UpdateCost(ctx context.Context, id uuid.UUID, cost float64) error {
	args := m.Called(ctx, id, cost)
	return args.Error(0)
}

func strPtr(s string) *string { return &s }

func TestCostWorkerBackfillsKnownModelsOnly(t *testing.T) {
	repo := new(MockBackfillRepository)
	pricing := service.NewPricingService(nil, zap.NewNop())
	w := NewCostWorker(zap.NewNop(), repo, pricing)

	priced := domain.AgentMessage{ID: uuid.New(), Model: strPtr("claude-sonnet-4"), InputTokens: 1000, OutputTokens: 500}
	unknown := domain.AgentMessage{ID: uuid.New(), Model: strPtr("mystery-model"), InputTokens: 10}

	repo.On("ListMissingCost", mock.Anything, 500).Return([]domain.AgentMessage{priced, unknown}, nil)
	repo.On("UpdateCost", mock.Anything, priced.ID, mock.MatchedBy(func(cost float64) bool {
		return cost > 0.0104 && cost < 0.0106
	})).Return(nil)

	task, err := NewCostBackfillTask(&CostBackfillPayload{})
	require.NoError(t, err)
	require.NoError(t, w.ProcessTask(context.Background(), task))

	repo.AssertNumberOfCalls(t, "UpdateCost", 1)
}

func TestCostWorkerRejectsBadPayload(t *testing.T) {
	w := NewCostWorker(zap.NewNop(), new(MockBackfillRepository), service.NewPricingService(nil, zap.NewNop()))

	err := w.ProcessTask(context.Background(), asynq.NewTask(TypeCostBackfill, []byte("not json")))
	assert.Error(t, err)
}
