package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/domain"
	apperrors "github.com/agentscope/agentscope/internal/pkg/errors"
	"github.com/agentscope/agentscope/internal/pkg/pagination"
)

// MockAnalyticsRepository is a mock implementation of AnalyticsRepository
type MockAnalyticsRepository struct {
	mock.Mock
}

func (m *MockAnalyticsRepository) SumTokens(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) (int64, error) {
	args := m.Called(ctx, scope, w)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAnalyticsRepository) SumCost(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) (float64, error) {
	args := m.Called(ctx, scope, w)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockAnalyticsRepository) CountMessages(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) (int64, error) {
	args := m.Called(ctx, scope, w)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAnalyticsRepository) MessageStatusCounts(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) (int64, int64, error) {
	args := m.Called(ctx, scope, w)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

// MockMessageSearcher is a mock implementation of MessageSearcher
type MockMessageSearcher struct {
	mock.Mock
}

func (m *MockMessageSearcher) Search(ctx context.Context, filter *domain.MessageSearchFilter, cursor *pagination.Cursor, limit int) ([]domain.AgentMessage, error) {
	args := m.Called(ctx, filter, cursor, limit)
	return args.Get(0).([]domain.AgentMessage), args.Error(1)
}

func (m *MockMessageSearcher) CountSearch(ctx context.Context, filter *domain.MessageSearchFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageSearcher) DistinctModels(ctx context.Context, filter *domain.MessageSearchFilter) ([]string, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]string), args.Error(1)
}

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		previous float64
		want     int
	}{
		{"fifty percent up", 150, 100, 50},
		{"both zero", 0, 0, 0},
		{"previous zero", 42, 0, 0},
		{"previous near zero", 42, 1e-7, 0},
		{"halved", 50, 100, -50},
		{"clamped high", 100000, 1, 999},
		{"clamped low", -100000, 1, -999},
		{"rounded", 101, 300, -66},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeTrend(tt.current, tt.previous))
		})
	}
}

func TestRangeDuration(t *testing.T) {
	assert.Equal(t, time.Hour, rangeDuration("1h"))
	assert.Equal(t, 6*time.Hour, rangeDuration("6h"))
	assert.Equal(t, 7*24*time.Hour, rangeDuration("7d"))
	assert.Equal(t, 30*24*time.Hour, rangeDuration("30d"))
	// unknown tokens behave exactly like 24h
	assert.Equal(t, 24*time.Hour, rangeDuration("yesterday"))
	assert.Equal(t, 24*time.Hour, rangeDuration(""))
}

func TestWindowsAreSymmetricAndAdjacent(t *testing.T) {
	svc := NewAnalyticsService(nil, nil, zap.NewNop())
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return fixed }

	current, previous := svc.windows("6h")

	assert.Equal(t, domain.FormatTime(fixed.Add(-6*time.Hour)), current.From)
	assert.Equal(t, domain.FormatTime(fixed), current.To)
	assert.Equal(t, domain.FormatTime(fixed.Add(-12*time.Hour)), previous.From)
	assert.Equal(t, current.From, previous.To, "windows must be adjacent, not overlapping")
}

func TestTokenUsageSummary(t *testing.T) {
	repo := new(MockAnalyticsRepository)
	svc := NewAnalyticsService(repo, nil, zap.NewNop())

	repo.On("SumTokens", mock.Anything, mock.Anything, mock.Anything).Return(int64(300), nil).Once()
	repo.On("SumTokens", mock.Anything, mock.Anything, mock.Anything).Return(int64(200), nil).Once()

	got, err := svc.TokenUsageSummary(context.Background(), domain.QueryContext{UserID: "u"}, "24h")
	require.NoError(t, err)
	assert.Equal(t, 300.0, got.Value)
	assert.Equal(t, 50, got.TrendPct)
}

func TestErrorRateSummaryEmptyWindow(t *testing.T) {
	repo := new(MockAnalyticsRepository)
	svc := NewAnalyticsService(repo, nil, zap.NewNop())

	repo.On("MessageStatusCounts", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), int64(0), nil)

	got, err := svc.ErrorRateSummary(context.Background(), domain.QueryContext{UserID: "u"}, "24h")
	require.NoError(t, err)
	assert.Zero(t, got.Value)
	assert.Zero(t, got.TrendPct)
}

func searchResults(n int, start time.Time) []domain.AgentMessage {
	msgs := make([]domain.AgentMessage, n)
	for i := range msgs {
		msgs[i] = domain.AgentMessage{
			ID:        uuid.New(),
			StartTime: domain.FormatTime(start.Add(-time.Duration(i) * time.Minute)),
		}
	}
	return msgs
}

func TestSearchMessagesPaginatesWithLimitPlusOne(t *testing.T) {
	searcher := new(MockMessageSearcher)
	svc := NewAnalyticsService(new(MockAnalyticsRepository), searcher, zap.NewNop())

	rows := searchResults(3, time.Now())
	searcher.On("Search", mock.Anything, mock.Anything, (*pagination.Cursor)(nil), 3).Return(rows, nil)
	searcher.On("CountSearch", mock.Anything, mock.Anything).Return(int64(10), nil)
	searcher.On("DistinctModels", mock.Anything, mock.Anything).Return([]string{"claude-sonnet-4", "gpt-4o"}, nil)

	page, err := svc.SearchMessages(context.Background(), domain.QueryContext{UserID: "u"}, SearchParams{Limit: 2})
	require.NoError(t, err)

	assert.Len(t, page.Messages, 2, "the probe row is not returned")
	assert.Equal(t, int64(10), page.TotalCount)
	assert.Equal(t, []string{"claude-sonnet-4", "gpt-4o"}, page.Models)

	require.NotNil(t, page.NextCursor)
	cursor, err := pagination.Decode(*page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[1].StartTime, cursor.Timestamp)
	assert.Equal(t, rows[1].ID.String(), cursor.ID)
}

func TestSearchMessagesLastPageHasNoCursor(t *testing.T) {
	searcher := new(MockMessageSearcher)
	svc := NewAnalyticsService(new(MockAnalyticsRepository), searcher, zap.NewNop())

	searcher.On("Search", mock.Anything, mock.Anything, mock.Anything, 3).Return(searchResults(2, time.Now()), nil)
	searcher.On("CountSearch", mock.Anything, mock.Anything).Return(int64(2), nil)
	searcher.On("DistinctModels", mock.Anything, mock.Anything).Return([]string{}, nil)

	page, err := svc.SearchMessages(context.Background(), domain.QueryContext{UserID: "u"}, SearchParams{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Messages, 2)
	assert.Nil(t, page.NextCursor)
}

func TestSearchMessagesCapsLimit(t *testing.T) {
	searcher := new(MockMessageSearcher)
	svc := NewAnalyticsService(new(MockAnalyticsRepository), searcher, zap.NewNop())

	searcher.On("Search", mock.Anything, mock.Anything, mock.Anything, maxSearchLimit+1).Return([]domain.AgentMessage{}, nil)
	searcher.On("CountSearch", mock.Anything, mock.Anything).Return(int64(0), nil)
	searcher.On("DistinctModels", mock.Anything, mock.Anything).Return([]string{}, nil)

	_, err := svc.SearchMessages(context.Background(), domain.QueryContext{UserID: "u"}, SearchParams{Limit: 5000})
	require.NoError(t, err)
	searcher.AssertCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, maxSearchLimit+1)
}

func TestSearchMessagesRejectsBadCursor(t *testing.T) {
	svc := NewAnalyticsService(new(MockAnalyticsRepository), new(MockMessageSearcher), zap.NewNop())

	_, err := svc.SearchMessages(context.Background(), domain.QueryContext{UserID: "u"}, SearchParams{Cursor: "no-separator"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestRiskScoreClamped(t *testing.T) {
	assert.Equal(t, 0, riskScore(domain.SummaryPoint{}, domain.SummaryPoint{}))
	assert.Equal(t, 100, riskScore(domain.SummaryPoint{Value: 1, TrendPct: 999}, domain.SummaryPoint{TrendPct: 999}))

	score := riskScore(domain.SummaryPoint{Value: 0.2, TrendPct: 50}, domain.SummaryPoint{TrendPct: 40})
	assert.Equal(t, 27, score)
}
