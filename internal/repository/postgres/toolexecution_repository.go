package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/pkg/database"
)

// ToolExecutionRepository handles tool execution persistence in PostgreSQL
type ToolExecutionRepository struct {
	db *database.PostgresDB
}

// NewToolExecutionRepository creates a new tool execution repository
func NewToolExecutionRepository(db *database.PostgresDB) *ToolExecutionRepository {
	return &ToolExecutionRepository{db: db}
}

const insertToolExecutionQuery = `
	INSERT INTO tool_executions (id, tenant_id, agent_id, user_id,
		llm_call_id, tool_name, duration_ms, status, error_message, timestamp)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func toolExecutionArgs(e *domain.ToolExecution) []any {
	return []any{
		e.ID, e.TenantID, e.AgentID, e.UserID, e.LlmCallID,
		e.ToolName, e.DurationMs, e.Status, e.ErrorMessage, e.Timestamp,
	}
}

// Create persists a single tool execution
func (r *ToolExecutionRepository) Create(ctx context.Context, e *domain.ToolExecution) error {
	if _, err := r.db.Pool.Exec(ctx, insertToolExecutionQuery, toolExecutionArgs(e)...); err != nil {
		return fmt.Errorf("failed to create tool execution: %w", err)
	}
	return nil
}

// CreateBatch persists multiple tool executions in one round trip
func (r *ToolExecutionRepository) CreateBatch(ctx context.Context, executions []*domain.ToolExecution) error {
	if len(executions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range executions {
		batch.Queue(insertToolExecutionQuery, toolExecutionArgs(e)...)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	for range executions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to create tool executions: %w", err)
		}
	}

	return nil
}
