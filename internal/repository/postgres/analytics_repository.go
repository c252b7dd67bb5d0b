package postgres

import (
	"context"
	"fmt"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/pkg/database"
)

// AnalyticsRepository runs the windowed aggregate queries behind summaries,
// time series and breakdowns. Window cutoffs compare lexicographically
// against the stored timestamp format, so no date parsing happens in SQL.
type AnalyticsRepository struct {
	db *database.PostgresDB
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *database.PostgresDB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// SumTokens totals token usage snapshots inside the window
func (r *AnalyticsRepository) SumTokens(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) (int64, error) {
	args := []any{}
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(total_tokens), 0)
		FROM token_usage_snapshots
		WHERE %s AND %s
	`, scopeCondition(scope, &args), windowCondition("timestamp", w, &args))

	var total int64
	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum tokens: %w", err)
	}

	return total, nil
}

// SumCost totals cost snapshots inside the window
func (r *AnalyticsRepository) SumCost(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) (float64, error) {
	args := []any{}
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(amount), 0)
		FROM cost_snapshots
		WHERE %s AND %s
	`, scopeCondition(scope, &args), windowCondition("timestamp", w, &args))

	var total float64
	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum cost: %w", err)
	}

	return total, nil
}

// CountMessages counts agent messages inside the window
func (r *AnalyticsRepository) CountMessages(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) (int64, error) {
	args := []any{}
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM agent_messages
		WHERE %s AND %s
	`, scopeCondition(scope, &args), windowCondition("start_time", w, &args))

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}

// MessageStatusCounts returns the error and total message counts inside the
// window, for error-rate summaries.
func (r *AnalyticsRepository) MessageStatusCounts(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) (errored, total int64, err error) {
	args := []any{}
	query := fmt.Sprintf(`
		SELECT COUNT(*) FILTER (WHERE status = 'error'), COUNT(*)
		FROM agent_messages
		WHERE %s AND %s
	`, scopeCondition(scope, &args), windowCondition("start_time", w, &args))

	if err := r.db.Pool.QueryRow(ctx, query, args...).Scan(&errored, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to count message statuses: %w", err)
	}

	return errored, total, nil
}

// Series returns bucketed message totals over the window, oldest bucket
// first. Bucket keys are substrings of the stored timestamp so they stay
// stable and sortable: "YYYY-MM-DDTHH:00" hourly, "YYYY-MM-DD" daily.
func (r *AnalyticsRepository) Series(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow, daily bool) ([]domain.SeriesPoint, error) {
	bucket := `LEFT(start_time, 13) || ':00'`
	if daily {
		bucket = `LEFT(start_time, 10)`
	}

	args := []any{}
	query := fmt.Sprintf(`
		SELECT %s AS bucket,
		       COALESCE(SUM(input_tokens + output_tokens), 0),
		       COALESCE(SUM(cost), 0),
		       COUNT(*)
		FROM agent_messages
		WHERE %s AND %s
		GROUP BY bucket
		ORDER BY bucket ASC
	`, bucket, scopeCondition(scope, &args), windowCondition("start_time", w, &args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var points []domain.SeriesPoint
	for rows.Next() {
		var p domain.SeriesPoint
		if err := rows.Scan(&p.Bucket, &p.Tokens, &p.Cost, &p.Messages); err != nil {
			return nil, fmt.Errorf("failed to scan series point: %w", err)
		}
		points = append(points, p)
	}

	return points, rows.Err()
}

// ModelBreakdown returns per-model token, cost and call totals over the
// window. Share percentages are computed by the caller from the token
// column. Rows without a rolled-up model are excluded.
func (r *AnalyticsRepository) ModelBreakdown(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) ([]domain.ModelUsage, error) {
	args := []any{}
	query := fmt.Sprintf(`
		SELECT model,
		       COALESCE(SUM(input_tokens + output_tokens), 0),
		       COALESCE(SUM(cost), 0),
		       COUNT(*)
		FROM agent_messages
		WHERE %s AND %s AND model IS NOT NULL
		GROUP BY model
		ORDER BY 2 DESC
	`, scopeCondition(scope, &args), windowCondition("start_time", w, &args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query model breakdown: %w", err)
	}
	defer rows.Close()

	var usages []domain.ModelUsage
	for rows.Next() {
		var u domain.ModelUsage
		if err := rows.Scan(&u.Model, &u.Tokens, &u.Cost, &u.Calls); err != nil {
			return nil, fmt.Errorf("failed to scan model usage: %w", err)
		}
		usages = append(usages, u)
	}

	return usages, rows.Err()
}

// MessageStatsByAgent returns per-agent message totals over the window.
// Sparklines and registry fields are filled in by the caller.
func (r *AnalyticsRepository) MessageStatsByAgent(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) ([]domain.AgentActivity, error) {
	args := []any{}
	query := fmt.Sprintf(`
		SELECT agent_name,
		       COUNT(*),
		       COALESCE(MAX(start_time), ''),
		       COALESCE(SUM(input_tokens + output_tokens), 0),
		       COALESCE(SUM(cost), 0)
		FROM agent_messages
		WHERE %s AND %s
		GROUP BY agent_name
		ORDER BY 2 DESC
	`, scopeCondition(scope, &args), windowCondition("start_time", w, &args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.AgentActivity
	for rows.Next() {
		var a domain.AgentActivity
		if err := rows.Scan(&a.AgentName, &a.MessageCount, &a.LastActive, &a.TotalTokens, &a.TotalCost); err != nil {
			return nil, fmt.Errorf("failed to scan agent stats: %w", err)
		}
		stats = append(stats, a)
	}

	return stats, rows.Err()
}

// HourlyTokensByAgent returns hourly token buckets per agent over the
// window, keyed agent name then bucket ("YYYY-MM-DDTHH:00"). Hours with no
// traffic are absent; callers densify before downsampling.
func (r *AnalyticsRepository) HourlyTokensByAgent(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) (map[string]map[string]int64, error) {
	args := []any{}
	query := fmt.Sprintf(`
		SELECT agent_name,
		       LEFT(start_time, 13) || ':00' AS bucket,
		       COALESCE(SUM(input_tokens + output_tokens), 0)
		FROM agent_messages
		WHERE %s AND %s
		GROUP BY agent_name, bucket
	`, scopeCondition(scope, &args), windowCondition("start_time", w, &args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly tokens: %w", err)
	}
	defer rows.Close()

	buckets := make(map[string]map[string]int64)
	for rows.Next() {
		var agent, bucket string
		var tokens int64
		if err := rows.Scan(&agent, &bucket, &tokens); err != nil {
			return nil, fmt.Errorf("failed to scan hourly tokens: %w", err)
		}
		if buckets[agent] == nil {
			buckets[agent] = make(map[string]int64)
		}
		buckets[agent][bucket] = tokens
	}

	return buckets, rows.Err()
}

// SkillCounts returns per-skill message counts over the window, busiest
// skill first.
func (r *AnalyticsRepository) SkillCounts(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) ([]domain.SkillActivity, error) {
	args := []any{}
	query := fmt.Sprintf(`
		SELECT skill_name, COUNT(*)
		FROM agent_messages
		WHERE %s AND %s AND skill_name <> ''
		GROUP BY skill_name
		ORDER BY 2 DESC, skill_name ASC
	`, scopeCondition(scope, &args), windowCondition("start_time", w, &args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query skill counts: %w", err)
	}
	defer rows.Close()

	var skills []domain.SkillActivity
	for rows.Next() {
		var s domain.SkillActivity
		if err := rows.Scan(&s.SkillName, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan skill counts: %w", err)
		}
		skills = append(skills, s)
	}

	return skills, rows.Err()
}
