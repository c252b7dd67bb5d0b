package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/pkg/database"
)

// LogRepository handles agent log persistence in PostgreSQL
type LogRepository struct {
	db *database.PostgresDB
}

// NewLogRepository creates a new log repository
func NewLogRepository(db *database.PostgresDB) *LogRepository {
	return &LogRepository{db: db}
}

const insertLogQuery = `
	INSERT INTO agent_logs (id, tenant_id, agent_id, user_id, agent_name,
		severity, body, attributes, timestamp)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// CreateBatch persists log records in one round trip
func (r *LogRepository) CreateBatch(ctx context.Context, logs []*domain.AgentLog) error {
	if len(logs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, l := range logs {
		batch.Queue(insertLogQuery,
			l.ID, l.TenantID, l.AgentID, l.UserID, l.AgentName,
			l.Severity, l.Body, l.Attributes, l.Timestamp,
		)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	for range logs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to create agent logs: %w", err)
		}
	}

	return nil
}
