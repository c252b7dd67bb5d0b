package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/agentscope/agentscope/internal/config"
	"github.com/agentscope/agentscope/internal/pkg/database"
)

// getTestDB returns a database connection for integration tests.
// Returns nil if the database is not available (skips tests).
func getTestDB(t *testing.T) *database.PostgresDB {
	if os.Getenv("POSTGRES_TEST_HOST") == "" {
		t.Skip("Skipping integration test: POSTGRES_TEST_HOST not set")
		return nil
	}

	cfg := config.PostgresConfig{
		Host:     os.Getenv("POSTGRES_TEST_HOST"),
		Port:     5432,
		User:     os.Getenv("POSTGRES_TEST_USER"),
		Password: os.Getenv("POSTGRES_TEST_PASS"),
		Database: os.Getenv("POSTGRES_TEST_DB"),
		SSLMode:  "disable",
		MaxConns: 5,
		MinConns: 1,
	}

	if cfg.Database == "" {
		cfg.Database = "test_agentscope"
	}
	if cfg.User == "" {
		cfg.User = "postgres"
	}

	db, err := database.NewPostgres(context.Background(), cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to PostgreSQL: %v", err)
		return nil
	}

	return db
}

// cleanupTenant removes a test tenant and everything scoped under it
func cleanupTenant(t *testing.T, db *database.PostgresDB, names ...string) {
	ctx := context.Background()
	tables := []string{
		"agent_messages", "llm_calls", "tool_executions",
		"token_usage_snapshots", "cost_snapshots", "agent_logs",
		"notification_logs", "notification_rules", "agents",
	}
	for _, name := range names {
		for _, table := range tables {
			_, _ = db.Pool.Exec(ctx,
				"DELETE FROM "+table+" WHERE tenant_id IN (SELECT id FROM tenants WHERE name = $1)", name)
		}
		_, _ = db.Pool.Exec(ctx, "DELETE FROM tenants WHERE name = $1", name)
	}
}
