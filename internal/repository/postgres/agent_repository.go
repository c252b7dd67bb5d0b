package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/pkg/database"
	apperrors "github.com/agentscope/agentscope/internal/pkg/errors"
)

// AgentRepository handles agent registry operations in PostgreSQL
type AgentRepository struct {
	db *database.PostgresDB
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(db *database.PostgresDB) *AgentRepository {
	return &AgentRepository{db: db}
}

// GetByName retrieves an agent visible to the caller by name
func (r *AgentRepository) GetByName(ctx context.Context, userID, name string) (*domain.Agent, error) {
	args := []any{}
	scope := scopeCondition(domain.ScopeFilter{UserID: userID}, &args)
	args = append(args, name)
	query := fmt.Sprintf(`
		SELECT id, tenant_id, user_id, name, service_type, created_at, last_seen_at
		FROM agents
		WHERE %s AND name = $%d
	`, scope, len(args))

	var agent domain.Agent
	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(
		&agent.ID,
		&agent.TenantID,
		&agent.UserID,
		&agent.Name,
		&agent.ServiceType,
		&agent.CreatedAt,
		&agent.LastSeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("agent")
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return &agent, nil
}

// List returns all agents visible to the caller, most recently seen first
func (r *AgentRepository) List(ctx context.Context, scope domain.ScopeFilter) ([]domain.Agent, error) {
	args := []any{}
	cond := scopeCondition(scope.WithAgent(""), &args)
	query := fmt.Sprintf(`
		SELECT id, tenant_id, user_id, name, service_type, created_at, last_seen_at
		FROM agents
		WHERE %s
		ORDER BY last_seen_at DESC NULLS LAST, name ASC
	`, cond)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		var agent domain.Agent
		if err := rows.Scan(
			&agent.ID,
			&agent.TenantID,
			&agent.UserID,
			&agent.Name,
			&agent.ServiceType,
			&agent.CreatedAt,
			&agent.LastSeenAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, agent)
	}

	return agents, rows.Err()
}

// TouchLastSeen bumps an agent's last_seen_at after a telemetry batch
func (r *AgentRepository) TouchLastSeen(ctx context.Context, agentID uuid.UUID, at time.Time) error {
	query := `UPDATE agents SET last_seen_at = $2 WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, agentID, at)
	if err != nil {
		return fmt.Errorf("failed to touch agent: %w", err)
	}

	return nil
}

// Delete removes an agent by id
func (r *AgentRepository) Delete(ctx context.Context, agentID uuid.UUID) error {
	query := `DELETE FROM agents WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, agentID)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("agent")
	}

	return nil
}

// NameTaken reports whether another agent in the tenant already uses name
func (r *AgentRepository) NameTaken(ctx context.Context, tenantID uuid.UUID, name string, excludeID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM agents WHERE tenant_id = $1 AND name = $2 AND id <> $3)`

	var taken bool
	err := r.db.Pool.QueryRow(ctx, query, tenantID, name, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check agent name: %w", err)
	}

	return taken, nil
}

// Rename updates the agent row and every table carrying a denormalized
// agent name inside one transaction. Partial application on failure is not
// acceptable, so every statement runs on the supplied tx.
func (r *AgentRepository) Rename(ctx context.Context, tx pgx.Tx, agentID uuid.UUID, tenantID uuid.UUID, from, to string) error {
	if _, err := tx.Exec(ctx, `UPDATE agents SET name = $2 WHERE id = $1`, agentID, to); err != nil {
		return fmt.Errorf("failed to rename agent in agents: %w", err)
	}

	denormalized := []string{
		"agent_messages",
		"token_usage_snapshots",
		"cost_snapshots",
		"agent_logs",
		"notification_rules",
		"notification_logs",
	}
	for _, table := range denormalized {
		query := fmt.Sprintf(`UPDATE %s SET agent_name = $3 WHERE tenant_id = $1 AND agent_name = $2`, table)
		if _, err := tx.Exec(ctx, query, tenantID, from, to); err != nil {
			return fmt.Errorf("failed to rename agent in %s: %w", table, err)
		}
	}

	return nil
}
