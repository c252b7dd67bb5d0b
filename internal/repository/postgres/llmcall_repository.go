package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/pkg/database"
)

// LlmCallRepository handles llm call persistence in PostgreSQL
type LlmCallRepository struct {
	db *database.PostgresDB
}

// NewLlmCallRepository creates a new llm call repository
func NewLlmCallRepository(db *database.PostgresDB) *LlmCallRepository {
	return &LlmCallRepository{db: db}
}

const insertLlmCallQuery = `
	INSERT INTO llm_calls (id, tenant_id, agent_id, user_id, message_id,
		system, request_model, response_model, input_tokens, output_tokens,
		cache_read_tokens, cache_creation_tokens, duration_ms, ttft_ms,
		temperature, max_tokens, timestamp)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		$15, $16, $17)
`

func llmCallArgs(c *domain.LlmCall) []any {
	return []any{
		c.ID, c.TenantID, c.AgentID, c.UserID, c.MessageID,
		c.System, c.RequestModel, c.ResponseModel, c.InputTokens,
		c.OutputTokens, c.CacheReadTokens, c.CacheCreationTokens,
		c.DurationMs, c.TimeToFirstTokenMs, c.Temperature, c.MaxTokens,
		c.Timestamp,
	}
}

// Create persists a single llm call
func (r *LlmCallRepository) Create(ctx context.Context, c *domain.LlmCall) error {
	if _, err := r.db.Pool.Exec(ctx, insertLlmCallQuery, llmCallArgs(c)...); err != nil {
		return fmt.Errorf("failed to create llm call: %w", err)
	}
	return nil
}

// CreateBatch persists multiple llm calls in one round trip
func (r *LlmCallRepository) CreateBatch(ctx context.Context, calls []*domain.LlmCall) error {
	if len(calls) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range calls {
		batch.Queue(insertLlmCallQuery, llmCallArgs(c)...)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	for range calls {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to create llm calls: %w", err)
		}
	}

	return nil
}
