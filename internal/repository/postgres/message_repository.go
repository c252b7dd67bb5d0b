package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/pkg/database"
	"github.com/agentscope/agentscope/internal/pkg/pagination"
)

// MessageRepository handles agent message persistence in PostgreSQL
type MessageRepository struct {
	db *database.PostgresDB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *database.PostgresDB) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `id, tenant_id, agent_id, user_id, trace_id, session_id,
	start_time, duration_ms, input_tokens, output_tokens, cache_read_tokens,
	cache_creation_tokens, cost, status, error_message, description,
	service_type, agent_name, model, routing_tier, routing_reason, skill_name`

const insertMessageQuery = `
	INSERT INTO agent_messages (` + messageColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		$16, $17, $18, $19, $20, $21, $22)
`

func messageArgs(m *domain.AgentMessage) []any {
	return []any{
		m.ID, m.TenantID, m.AgentID, m.UserID, m.TraceID, m.SessionID,
		m.StartTime, m.DurationMs, m.InputTokens, m.OutputTokens,
		m.CacheReadTokens, m.CacheCreationTokens, m.Cost, m.Status,
		m.ErrorMessage, m.Description, m.ServiceType, m.AgentName,
		m.Model, m.RoutingTier, m.RoutingReason, m.SkillName,
	}
}

// Create persists a single agent message
func (r *MessageRepository) Create(ctx context.Context, m *domain.AgentMessage) error {
	if _, err := r.db.Pool.Exec(ctx, insertMessageQuery, messageArgs(m)...); err != nil {
		return fmt.Errorf("failed to create agent message: %w", err)
	}
	return nil
}

// CreateBatch persists multiple agent messages in one round trip
func (r *MessageRepository) CreateBatch(ctx context.Context, messages []*domain.AgentMessage) error {
	if len(messages) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range messages {
		batch.Queue(insertMessageQuery, messageArgs(m)...)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	for range messages {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to create agent messages: %w", err)
		}
	}

	return nil
}

// ApplyRollup pushes child llm-call aggregates into a parent message.
// Token columns are overwritten; model and routing tier only fill NULL
// columns so a value set at insert wins; cost is replaced with the
// recomputed value, NULL when no pricing resolved.
func (r *MessageRepository) ApplyRollup(ctx context.Context, rollup *domain.MessageRollup) error {
	query := `
		UPDATE agent_messages
		SET input_tokens = $2,
		    output_tokens = $3,
		    cache_read_tokens = $4,
		    cache_creation_tokens = $5,
		    model = COALESCE(model, NULLIF($6, '')),
		    routing_tier = COALESCE(routing_tier, NULLIF($7, '')),
		    cost = $8
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query,
		rollup.MessageID,
		rollup.InputTokens,
		rollup.OutputTokens,
		rollup.CacheReadTokens,
		rollup.CacheCreationTokens,
		rollup.Model,
		rollup.RoutingTier,
		rollup.Cost,
	)
	if err != nil {
		return fmt.Errorf("failed to apply rollup: %w", err)
	}

	return nil
}

// searchConditions renders the shared WHERE clause for Search, CountSearch
// and DistinctModels.
func searchConditions(filter *domain.MessageSearchFilter, args *[]any) string {
	conds := []string{
		scopeCondition(filter.Scope, args),
		windowCondition("start_time", filter.Window, args),
	}
	if filter.Status != "" {
		*args = append(*args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(*args)))
	}
	if filter.ServiceType != "" {
		*args = append(*args, filter.ServiceType)
		conds = append(conds, fmt.Sprintf("service_type = $%d", len(*args)))
	}
	if filter.Model != "" {
		*args = append(*args, filter.Model)
		conds = append(conds, fmt.Sprintf("model = $%d", len(*args)))
	}
	if filter.CostMin != nil {
		*args = append(*args, *filter.CostMin)
		conds = append(conds, fmt.Sprintf("cost >= $%d", len(*args)))
	}
	if filter.CostMax != nil {
		*args = append(*args, *filter.CostMax)
		conds = append(conds, fmt.Sprintf("cost <= $%d", len(*args)))
	}
	return strings.Join(conds, " AND ")
}

// Search returns up to limit messages ordered by (start_time DESC, id DESC),
// resuming after cursor when supplied. Callers pass limit+1 to detect a
// following page.
func (r *MessageRepository) Search(ctx context.Context, filter *domain.MessageSearchFilter, cursor *pagination.Cursor, limit int) ([]domain.AgentMessage, error) {
	args := []any{}
	where := searchConditions(filter, &args)
	if cursor != nil {
		args = append(args, cursor.Timestamp)
		tsArg := len(args)
		args = append(args, cursor.ID)
		idArg := len(args)
		where = fmt.Sprintf("%s AND (start_time < $%d OR (start_time = $%d AND id < $%d))",
			where, tsArg, tsArg, idArg)
	}
	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT %s
		FROM agent_messages
		WHERE %s
		ORDER BY start_time DESC, id DESC
		LIMIT $%d
	`, messageColumns, where, len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.AgentMessage
	for rows.Next() {
		var m domain.AgentMessage
		if err := rows.Scan(
			&m.ID, &m.TenantID, &m.AgentID, &m.UserID, &m.TraceID, &m.SessionID,
			&m.StartTime, &m.DurationMs, &m.InputTokens, &m.OutputTokens,
			&m.CacheReadTokens, &m.CacheCreationTokens, &m.Cost, &m.Status,
			&m.ErrorMessage, &m.Description, &m.ServiceType, &m.AgentName,
			&m.Model, &m.RoutingTier, &m.RoutingReason, &m.SkillName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// CountSearch returns the total number of messages matching the filter,
// unaffected by any cursor.
func (r *MessageRepository) CountSearch(ctx context.Context, filter *domain.MessageSearchFilter) (int64, error) {
	args := []any{}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM agent_messages WHERE %s`, searchConditions(filter, &args))

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}

// DistinctModels returns the sorted distinct model names present in the
// filtered window.
func (r *MessageRepository) DistinctModels(ctx context.Context, filter *domain.MessageSearchFilter) ([]string, error) {
	args := []any{}
	query := fmt.Sprintf(`
		SELECT DISTINCT model
		FROM agent_messages
		WHERE %s AND model IS NOT NULL
		ORDER BY model ASC
	`, searchConditions(filter, &args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var models []string
	for rows.Next() {
		var model string
		if err := rows.Scan(&model); err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		models = append(models, model)
	}

	return models, rows.Err()
}

// ListMissingCost returns messages with tokens but no stored cost, oldest
// first, for the backfill worker.
func (r *MessageRepository) ListMissingCost(ctx context.Context, limit int) ([]domain.AgentMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM agent_messages
		WHERE cost IS NULL
		  AND model IS NOT NULL
		  AND input_tokens + output_tokens > 0
		ORDER BY start_time ASC
		LIMIT $1
	`, messageColumns)

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages missing cost: %w", err)
	}
	defer rows.Close()

	var messages []domain.AgentMessage
	for rows.Next() {
		var m domain.AgentMessage
		if err := rows.Scan(
			&m.ID, &m.TenantID, &m.AgentID, &m.UserID, &m.TraceID, &m.SessionID,
			&m.StartTime, &m.DurationMs, &m.InputTokens, &m.OutputTokens,
			&m.CacheReadTokens, &m.CacheCreationTokens, &m.Cost, &m.Status,
			&m.ErrorMessage, &m.Description, &m.ServiceType, &m.AgentName,
			&m.Model, &m.RoutingTier, &m.RoutingReason, &m.SkillName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// UpdateCost stores a backfilled cost for one message
func (r *MessageRepository) UpdateCost(ctx context.Context, id uuid.UUID, cost float64) error {
	query := `UPDATE agent_messages SET cost = $2 WHERE id = $1`

	if _, err := r.db.Pool.Exec(ctx, query, id, cost); err != nil {
		return fmt.Errorf("failed to update cost: %w", err)
	}

	return nil
}
