package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/pkg/database"
	apperrors "github.com/agentscope/agentscope/internal/pkg/errors"
)

// AgentStore defines the registry operations the lifecycle service needs.
type AgentStore interface {
	GetByName(ctx context.Context, userID, name string) (*domain.Agent, error)
	List(ctx context.Context, scope domain.ScopeFilter) ([]domain.Agent, error)
	Delete(ctx context.Context, agentID uuid.UUID) error
	NameTaken(ctx context.Context, tenantID uuid.UUID, name string, excludeID uuid.UUID) (bool, error)
	// Rename updates the agent row and every denormalized agent-name table
	// on the supplied transaction.
	Rename(ctx context.Context, tx pgx.Tx, agentID uuid.UUID, tenantID uuid.UUID, from, to string) error
}

// AgentService handles agent lifecycle operations.
type AgentService struct {
	agents AgentStore
	db     *database.PostgresDB
	logger *zap.Logger
}

// NewAgentService creates a new agent lifecycle service
func NewAgentService(agents AgentStore, db *database.PostgresDB, logger *zap.Logger) *AgentService {
	return &AgentService{
		agents: agents,
		db:     db,
		logger: logger.Named("agent"),
	}
}

// ListAgents returns the agents visible to the caller.
func (s *AgentService) ListAgents(ctx context.Context, q domain.QueryContext) ([]domain.Agent, error) {
	return s.agents.List(ctx, queryScope(q))
}

// DeleteAgent removes an agent by name. A name the caller cannot see is a
// not-found error.
func (s *AgentService) DeleteAgent(ctx context.Context, userID, name string) error {
	agent, err := s.agents.GetByName(ctx, userID, name)
	if err != nil {
		return err
	}

	if err := s.agents.Delete(ctx, agent.ID); err != nil {
		return err
	}

	s.logger.Info("agent deleted",
		zap.String("agent", name),
		zap.String("user_id", userID),
	)
	return nil
}

// RenameAgent renames an agent and rewrites every denormalized agent-name
// column in one transaction. Partial application is never acceptable: all
// statements commit together or none do. A target name already used by
// another agent in the same tenant is a conflict.
func (s *AgentService) RenameAgent(ctx context.Context, userID, from, to string) error {
	if to == "" || to == from {
		return apperrors.Validation("invalid target name")
	}

	agent, err := s.agents.GetByName(ctx, userID, from)
	if err != nil {
		return err
	}

	taken, err := s.agents.NameTaken(ctx, agent.TenantID, to, agent.ID)
	if err != nil {
		return err
	}
	if taken {
		return apperrors.Conflict("agent name already in use")
	}

	err = database.Transaction(ctx, s.db, func(tx pgx.Tx) error {
		return s.agents.Rename(ctx, tx, agent.ID, agent.TenantID, from, to)
	})
	if err != nil {
		return err
	}

	s.logger.Info("agent renamed",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("user_id", userID),
	)
	return nil
}
