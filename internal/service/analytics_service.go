package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/domain"
	apperrors "github.com/agentscope/agentscope/internal/pkg/errors"
	"github.com/agentscope/agentscope/internal/pkg/pagination"
)

// maxSearchLimit caps one page of message search results.
const maxSearchLimit = 200

// defaultSearchLimit applies when the caller does not ask for a page size.
const defaultSearchLimit = 50

// AnalyticsRepository defines the windowed aggregate queries behind the
// summary surface.
type AnalyticsRepository interface {
	SumTokens(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) (int64, error)
	SumCost(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) (float64, error)
	CountMessages(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) (int64, error)
	MessageStatusCounts(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) (errored, total int64, err error)
}

// MessageSearcher defines the message search queries.
type MessageSearcher interface {
	Search(ctx context.Context, filter *domain.MessageSearchFilter, cursor *pagination.Cursor, limit int) ([]domain.AgentMessage, error)
	CountSearch(ctx context.Context, filter *domain.MessageSearchFilter) (int64, error)
	DistinctModels(ctx context.Context, filter *domain.MessageSearchFilter) ([]string, error)
}

// AnalyticsService computes windowed summaries with trend percentages and
// serves keyset-paginated message search.
type AnalyticsService struct {
	analytics AnalyticsRepository
	messages  MessageSearcher
	now       func() time.Time
	logger    *zap.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(analytics AnalyticsRepository, messages MessageSearcher, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		analytics: analytics,
		messages:  messages,
		now:       time.Now,
		logger:    logger.Named("analytics"),
	}
}

// ComputeTrend returns the percentage change from previous to current,
// rounded and clamped to [-999, 999]. A near-zero previous value yields 0
// to avoid division blowups, including the 0-vs-0 case.
func ComputeTrend(current, previous float64) int {
	if math.Abs(previous) < 1e-6 {
		return 0
	}
	pct := math.Round((current - previous) / previous * 100)
	if pct > 999 {
		return 999
	}
	if pct < -999 {
		return -999
	}
	return int(pct)
}

// rangeDuration maps a range token to its window length. Unknown tokens
// behave exactly like "24h".
func rangeDuration(rng string) time.Duration {
	switch rng {
	case "1h":
		return time.Hour
	case "6h":
		return 6 * time.Hour
	case "24h":
		return 24 * time.Hour
	case "7d":
		return 7 * 24 * time.Hour
	case "30d":
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// windows returns the symmetric current/previous window pair for a range
// token: [now-d, now) and [now-2d, now-d).
func (s *AnalyticsService) windows(rng string) (current, previous domain.TimeWindow) {
	d := rangeDuration(rng)
	now := s.now()

	cut := domain.FormatTime(now.Add(-d))
	current = domain.TimeWindow{From: cut, To: domain.FormatTime(now)}
	previous = domain.TimeWindow{From: domain.FormatTime(now.Add(-2 * d)), To: cut}
	return current, previous
}

// summarize runs one total function over the window pair and folds the two
// values into a summary point.
func (s *AnalyticsService) summarize(ctx context.Context, rng string, total func(context.Context, domain.TimeWindow) (float64, error)) (domain.SummaryPoint, error) {
	current, previous := s.windows(rng)

	cur, err := total(ctx, current)
	if err != nil {
		return domain.SummaryPoint{}, err
	}
	prev, err := total(ctx, previous)
	if err != nil {
		return domain.SummaryPoint{}, err
	}

	return domain.SummaryPoint{Value: cur, TrendPct: ComputeTrend(cur, prev)}, nil
}

func queryScope(q domain.QueryContext) domain.ScopeFilter {
	return domain.ScopeFilter{UserID: q.UserID, AgentName: q.AgentName}
}

// TokenUsageSummary returns the window's token total with its trend.
func (s *AnalyticsService) TokenUsageSummary(ctx context.Context, q domain.QueryContext, rng string) (domain.SummaryPoint, error) {
	scope := queryScope(q)
	return s.summarize(ctx, rng, func(ctx context.Context, w domain.TimeWindow) (float64, error) {
		tokens, err := s.analytics.SumTokens(ctx, scope, w)
		return float64(tokens), err
	})
}

// SpendSummary returns the window's cost total with its trend.
func (s *AnalyticsService) SpendSummary(ctx context.Context, q domain.QueryContext, rng string) (domain.SummaryPoint, error) {
	scope := queryScope(q)
	return s.summarize(ctx, rng, func(ctx context.Context, w domain.TimeWindow) (float64, error) {
		return s.analytics.SumCost(ctx, scope, w)
	})
}

// MessageCountSummary returns the window's message count with its trend.
func (s *AnalyticsService) MessageCountSummary(ctx context.Context, q domain.QueryContext, rng string) (domain.SummaryPoint, error) {
	scope := queryScope(q)
	return s.summarize(ctx, rng, func(ctx context.Context, w domain.TimeWindow) (float64, error) {
		count, err := s.analytics.CountMessages(ctx, scope, w)
		return float64(count), err
	})
}

// ErrorRateSummary returns the window's errored-message share (0..1) with
// its trend. A window with no messages has rate 0.
func (s *AnalyticsService) ErrorRateSummary(ctx context.Context, q domain.QueryContext, rng string) (domain.SummaryPoint, error) {
	scope := queryScope(q)
	return s.summarize(ctx, rng, func(ctx context.Context, w domain.TimeWindow) (float64, error) {
		errored, total, err := s.analytics.MessageStatusCounts(ctx, scope, w)
		if err != nil || total == 0 {
			return 0, err
		}
		return float64(errored) / float64(total), nil
	})
}

// Overview bundles the four summaries and a risk score for one range.
func (s *AnalyticsService) Overview(ctx context.Context, q domain.QueryContext, rng string) (*domain.UsageOverview, error) {
	tokens, err := s.TokenUsageSummary(ctx, q, rng)
	if err != nil {
		return nil, err
	}
	cost, err := s.SpendSummary(ctx, q, rng)
	if err != nil {
		return nil, err
	}
	messages, err := s.MessageCountSummary(ctx, q, rng)
	if err != nil {
		return nil, err
	}
	errorRate, err := s.ErrorRateSummary(ctx, q, rng)
	if err != nil {
		return nil, err
	}

	return &domain.UsageOverview{
		Tokens:    tokens,
		Cost:      cost,
		Messages:  messages,
		ErrorRate: errorRate,
		RiskScore: riskScore(errorRate, cost),
	}, nil
}

// riskScore folds the error-rate level and the error/cost trends into a
// 0..100 indicator. The level dominates; worsening trends push it up.
func riskScore(errorRate, cost domain.SummaryPoint) int {
	score := int(math.Round(errorRate.Value * 100))
	if errorRate.TrendPct > 0 {
		score += errorRate.TrendPct / 10
	}
	if cost.TrendPct > 0 {
		score += cost.TrendPct / 20
	}
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// SearchParams narrows a message search. Zero values do not constrain.
type SearchParams struct {
	Range       string
	Status      string
	ServiceType string
	Model       string
	CostMin     *float64
	CostMax     *float64
	Limit       int
	Cursor      string
}

// SearchMessages returns one keyset page of messages, newest first,
// together with the window's total count and distinct model list. The page
// limit is capped at 200; limit+1 rows are fetched to detect a following
// page without a second count query.
func (s *AnalyticsService) SearchMessages(ctx context.Context, q domain.QueryContext, params SearchParams) (*domain.MessagePage, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, apperrors.Validation("invalid cursor")
	}

	window, _ := s.windows(params.Range)
	if params.Range == "" {
		window = domain.TimeWindow{}
	}
	filter := &domain.MessageSearchFilter{
		Scope:       queryScope(q),
		Window:      window,
		Status:      params.Status,
		ServiceType: params.ServiceType,
		Model:       params.Model,
		CostMin:     params.CostMin,
		CostMax:     params.CostMax,
	}

	rows, err := s.messages.Search(ctx, filter, cursor, limit+1)
	if err != nil {
		return nil, err
	}

	page := &domain.MessagePage{Messages: rows}
	if len(rows) > limit {
		page.Messages = rows[:limit]
		last := page.Messages[limit-1]
		next := pagination.New(last.StartTime, last.ID.String()).Encode()
		page.NextCursor = &next
	}

	if page.TotalCount, err = s.messages.CountSearch(ctx, filter); err != nil {
		return nil, err
	}
	if page.Models, err = s.messages.DistinctModels(ctx, filter); err != nil {
		return nil, err
	}

	return page, nil
}
