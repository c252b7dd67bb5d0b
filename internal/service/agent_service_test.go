package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/domain"
	apperrors "github.com/agentscope/agentscope/internal/pkg/errors"
)

// MockAgentStore is a mock implementation of AgentStore
type MockAgentStore struct {
	mock.Mock
}

func (m *MockAgentStore) GetByName(ctx context.Context, userID, name string) (*domain.Agent, error) {
	args := m.Called(ctx, userID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentStore) List(ctx context.Context, scope domain.ScopeFilter) ([]domain.Agent, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).([]domain.Agent), args.Error(1)
}

func (m *MockAgentStore) Delete(ctx context.Context, agentID uuid.UUID) error {
	args := m.Called(ctx, agentID)
	return args.Error(0)
}

func (m *MockAgentStore) NameTaken(ctx context.Context, tenantID uuid.UUID, name string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, name, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAgentStore) Rename(ctx context.Context, tx pgx.Tx, agentID uuid.UUID, tenantID uuid.UUID, from, to string) error {
	args := m.Called(ctx, tx, agentID, tenantID, from, to)
	return args.Error(0)
}

func TestDeleteAgent(t *testing.T) {
	store := new(MockAgentStore)
	svc := NewAgentService(store, nil, zap.NewNop())

	agent := &domain.Agent{ID: uuid.New(), Name: "planner"}
	store.On("GetByName", mock.Anything, "user-1", "planner").Return(agent, nil)
	store.On("Delete", mock.Anything, agent.ID).Return(nil)

	require.NoError(t, svc.DeleteAgent(context.Background(), "user-1", "planner"))
	store.AssertExpectations(t)
}

func TestDeleteAgentNotFound(t *testing.T) {
	store := new(MockAgentStore)
	svc := NewAgentService(store, nil, zap.NewNop())

	store.On("GetByName", mock.Anything, "user-1", "ghost").Return(nil, apperrors.NotFound("agent"))

	err := svc.DeleteAgent(context.Background(), "user-1", "ghost")
	assert.True(t, apperrors.IsNotFound(err))
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRenameAgentConflict(t *testing.T) {
	store := new(MockAgentStore)
	svc := NewAgentService(store, nil, zap.NewNop())

	agent := &domain.Agent{ID: uuid.New(), TenantID: uuid.New(), Name: "planner"}
	store.On("GetByName", mock.Anything, "user-1", "planner").Return(agent, nil)
	store.On("NameTaken", mock.Anything, agent.TenantID, "executor", agent.ID).Return(true, nil)

	err := svc.RenameAgent(context.Background(), "user-1", "planner", "executor")
	assert.True(t, apperrors.IsConflict(err))
	store.AssertNotCalled(t, "Rename", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRenameAgentRejectsNoopTargets(t *testing.T) {
	store := new(MockAgentStore)
	svc := NewAgentService(store, nil, zap.NewNop())

	err := svc.RenameAgent(context.Background(), "user-1", "planner", "planner")
	assert.True(t, apperrors.IsValidation(err))

	err = svc.RenameAgent(context.Background(), "user-1", "planner", "")
	assert.True(t, apperrors.IsValidation(err))

	store.AssertNotCalled(t, "GetByName", mock.Anything, mock.Anything, mock.Anything)
}
