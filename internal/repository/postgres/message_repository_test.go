package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/pkg/database"
	"github.com/agentscope/agentscope/internal/pkg/pagination"
)

// seedScope inserts a tenant and agent fixture, returning their ids
func seedScope(t *testing.T, db *database.PostgresDB, tenantName, userID, agentName string) (uuid.UUID, uuid.UUID) {
	ctx := context.Background()
	tenantID := uuid.New()
	agentID := uuid.New()

	_, err := db.Pool.Exec(ctx,
		`INSERT INTO tenants (id, name, user_id, created_at) VALUES ($1, $2, $3, NOW())`,
		tenantID, tenantName, userID)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx,
		`INSERT INTO agents (id, tenant_id, user_id, name, service_type, created_at)
		 VALUES ($1, $2, $3, $4, 'assistant', NOW())`,
		agentID, tenantID, userID, agentName)
	require.NoError(t, err)

	return tenantID, agentID
}

func testMessage(tenantID, agentID uuid.UUID, userID, agentName string, at time.Time) *domain.AgentMessage {
	return &domain.AgentMessage{
		ID:           uuid.New(),
		TenantID:     tenantID,
		AgentID:      agentID,
		UserID:       userID,
		TraceID:      "0123456789abcdef0123456789abcdef",
		StartTime:    domain.FormatTime(at),
		DurationMs:   1200,
		InputTokens:  100,
		OutputTokens: 50,
		Status:       domain.StatusOK,
		AgentName:    agentName,
	}
}

func TestMessageRepositorySearchKeysetOrdering(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	defer cleanupTenant(t, db, "it-search-tenant")

	ctx := context.Background()
	tenantID, agentID := seedScope(t, db, "it-search-tenant", "it-search-user", "searcher")
	repo := NewMessageRepository(db)

	base := time.Now().Add(-time.Hour)
	var messages []*domain.AgentMessage
	for i := 0; i < 5; i++ {
		messages = append(messages, testMessage(tenantID, agentID, "it-search-user", "searcher", base.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, repo.CreateBatch(ctx, messages))

	filter := &domain.MessageSearchFilter{Scope: domain.ScopeFilter{UserID: "it-search-user"}}

	// first page: newest first, limit+1 fetch leaves one behind
	page, err := repo.Search(ctx, filter, nil, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	for i := 1; i < len(page); i++ {
		prev := fmt.Sprintf("%s|%s", page[i-1].StartTime, page[i-1].ID)
		cur := fmt.Sprintf("%s|%s", page[i].StartTime, page[i].ID)
		assert.Greater(t, prev, cur, "rows must be (start_time, id) descending")
	}

	// resuming from the last row's cursor yields the older remainder only
	last := page[len(page)-1]
	rest, err := repo.Search(ctx, filter, pagination.New(last.StartTime, last.ID.String()), 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	for _, m := range rest {
		assert.Less(t, m.StartTime, last.StartTime)
	}

	total, err := repo.CountSearch(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total, "count ignores the cursor")
}

func TestMessageRepositoryApplyRollup(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	defer cleanupTenant(t, db, "it-rollup-tenant")

	ctx := context.Background()
	tenantID, agentID := seedScope(t, db, "it-rollup-tenant", "it-rollup-user", "roller")
	repo := NewMessageRepository(db)

	msg := testMessage(tenantID, agentID, "it-rollup-user", "roller", time.Now())
	msg.InputTokens = 0
	msg.OutputTokens = 0
	require.NoError(t, repo.Create(ctx, msg))

	cost := 0.0125
	err := repo.ApplyRollup(ctx, &domain.MessageRollup{
		MessageID:    msg.ID,
		InputTokens:  900,
		OutputTokens: 450,
		Model:        "claude-sonnet-4",
		RoutingTier:  "standard",
		Cost:         &cost,
	})
	require.NoError(t, err)

	var inputTokens int64
	var model, tier *string
	var stored *float64
	err = db.Pool.QueryRow(ctx,
		`SELECT input_tokens, model, routing_tier, cost FROM agent_messages WHERE id = $1`, msg.ID).
		Scan(&inputTokens, &model, &tier, &stored)
	require.NoError(t, err)
	assert.Equal(t, int64(900), inputTokens)
	require.NotNil(t, model)
	assert.Equal(t, "claude-sonnet-4", *model)
	require.NotNil(t, stored)
	assert.InDelta(t, cost, *stored, 1e-9)

	// second rollup must not displace the already-set model
	err = repo.ApplyRollup(ctx, &domain.MessageRollup{
		MessageID:    msg.ID,
		InputTokens:  1000,
		OutputTokens: 500,
		Model:        "gpt-4o",
		Cost:         nil,
	})
	require.NoError(t, err)

	err = db.Pool.QueryRow(ctx,
		`SELECT input_tokens, model, cost FROM agent_messages WHERE id = $1`, msg.ID).
		Scan(&inputTokens, &model, &stored)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), inputTokens, "tokens overwrite unconditionally")
	assert.Equal(t, "claude-sonnet-4", *model, "first-written model wins")
	assert.Nil(t, stored, "cost is replaced, including with NULL")
}
