package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/pkg/database"
	apperrors "github.com/agentscope/agentscope/internal/pkg/errors"
)

func TestAgentRepositoryGetByName(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	defer cleanupTenant(t, db, "it-agent-tenant")

	ctx := context.Background()
	_, agentID := seedScope(t, db, "it-agent-tenant", "it-agent-user", "planner")
	repo := NewAgentRepository(db)

	agent, err := repo.GetByName(ctx, "it-agent-user", "planner")
	require.NoError(t, err)
	assert.Equal(t, agentID, agent.ID)
	assert.Equal(t, "planner", agent.Name)

	_, err = repo.GetByName(ctx, "it-agent-user", "missing")
	assert.True(t, apperrors.IsNotFound(err))

	// another user cannot see the agent
	_, err = repo.GetByName(ctx, "someone-else", "planner")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestAgentRepositoryRenameUpdatesEveryTable(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	defer cleanupTenant(t, db, "it-rename-tenant")

	ctx := context.Background()
	tenantID, agentID := seedScope(t, db, "it-rename-tenant", "it-rename-user", "old-name")
	repo := NewAgentRepository(db)

	msg := testMessage(tenantID, agentID, "it-rename-user", "old-name", time.Now())
	require.NoError(t, NewMessageRepository(db).Create(ctx, msg))

	_, err := db.Pool.Exec(ctx,
		`INSERT INTO token_usage_snapshots (id, tenant_id, agent_id, user_id, agent_name,
			input_tokens, output_tokens, total_tokens, cache_read_tokens, cache_creation_tokens, timestamp)
		 VALUES ($1, $2, $3, 'it-rename-user', 'old-name', 10, 5, 15, 0, 0, $4)`,
		uuid.New(), tenantID, agentID, domain.FormatTime(time.Now()))
	require.NoError(t, err)

	err = database.Transaction(ctx, db, func(tx pgx.Tx) error {
		return repo.Rename(ctx, tx, agentID, tenantID, "old-name", "new-name")
	})
	require.NoError(t, err)

	agent, err := repo.GetByName(ctx, "it-rename-user", "new-name")
	require.NoError(t, err)
	assert.Equal(t, agentID, agent.ID)

	var stale int64
	err = db.Pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM agent_messages WHERE tenant_id = $1 AND agent_name = 'old-name')
		     + (SELECT COUNT(*) FROM token_usage_snapshots WHERE tenant_id = $1 AND agent_name = 'old-name')
	`, tenantID).Scan(&stale)
	require.NoError(t, err)
	assert.Zero(t, stale, "no denormalized row may keep the old name")
}

func TestAgentRepositoryRenameRollsBackAtomically(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	defer cleanupTenant(t, db, "it-atomic-tenant")

	ctx := context.Background()
	tenantID, agentID := seedScope(t, db, "it-atomic-tenant", "it-atomic-user", "keeper")
	repo := NewAgentRepository(db)

	msg := testMessage(tenantID, agentID, "it-atomic-user", "keeper", time.Now())
	require.NoError(t, NewMessageRepository(db).Create(ctx, msg))

	forced := assert.AnError
	err := database.Transaction(ctx, db, func(tx pgx.Tx) error {
		if err := repo.Rename(ctx, tx, agentID, tenantID, "keeper", "replaced"); err != nil {
			return err
		}
		return forced
	})
	require.ErrorIs(t, err, forced)

	// the agent row and the message rows both keep the original name
	agent, err := repo.GetByName(ctx, "it-atomic-user", "keeper")
	require.NoError(t, err)
	assert.Equal(t, agentID, agent.ID)

	var count int64
	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM agent_messages WHERE tenant_id = $1 AND agent_name = 'keeper'`, tenantID).
		Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAgentRepositoryNameTaken(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	defer cleanupTenant(t, db, "it-taken-tenant")

	ctx := context.Background()
	tenantID, agentID := seedScope(t, db, "it-taken-tenant", "it-taken-user", "first")

	otherID := uuid.New()
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO agents (id, tenant_id, user_id, name, service_type, created_at)
		 VALUES ($1, $2, 'it-taken-user', 'second', '', NOW())`,
		otherID, tenantID)
	require.NoError(t, err)

	repo := NewAgentRepository(db)

	taken, err := repo.NameTaken(ctx, tenantID, "second", agentID)
	require.NoError(t, err)
	assert.True(t, taken)

	// an agent's own name does not conflict with itself
	taken, err = repo.NameTaken(ctx, tenantID, "first", agentID)
	require.NoError(t, err)
	assert.False(t, taken)
}
