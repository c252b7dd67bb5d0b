package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/pkg/database"
)

// SnapshotRepository handles token usage and cost snapshot persistence in
// PostgreSQL. Snapshots are independent time-series rows from the metric
// pipeline, never linked to spans.
type SnapshotRepository struct {
	db *database.PostgresDB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *database.PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const insertTokenUsageQuery = `
	INSERT INTO token_usage_snapshots (id, tenant_id, agent_id, user_id,
		agent_name, input_tokens, output_tokens, total_tokens,
		cache_read_tokens, cache_creation_tokens, timestamp)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

const insertCostSnapshotQuery = `
	INSERT INTO cost_snapshots (id, tenant_id, agent_id, user_id, agent_name,
		model, amount, timestamp)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// CreateTokenUsageBatch persists token usage snapshots in one round trip
func (r *SnapshotRepository) CreateTokenUsageBatch(ctx context.Context, snapshots []*domain.TokenUsageSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		batch.Queue(insertTokenUsageQuery,
			s.ID, s.TenantID, s.AgentID, s.UserID, s.AgentName,
			s.InputTokens, s.OutputTokens, s.TotalTokens,
			s.CacheReadTokens, s.CacheCreationTokens, s.Timestamp,
		)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to create token usage snapshots: %w", err)
		}
	}

	return nil
}

// CreateCostBatch persists cost snapshots in one round trip
func (r *SnapshotRepository) CreateCostBatch(ctx context.Context, snapshots []*domain.CostSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		batch.Queue(insertCostSnapshotQuery,
			s.ID, s.TenantID, s.AgentID, s.UserID, s.AgentName,
			s.Model, s.Amount, s.Timestamp,
		)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to create cost snapshots: %w", err)
		}
	}

	return nil
}
