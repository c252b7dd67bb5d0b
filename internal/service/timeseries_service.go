package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/domain"
)

// sparklineBuckets is the fixed length of agent roster sparklines.
const sparklineBuckets = 24

// TimeSeriesRepository defines the bucketed aggregate queries behind the
// time-series surface.
type TimeSeriesRepository interface {
	Series(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow, daily bool) ([]domain.SeriesPoint, error)
	ModelBreakdown(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) ([]domain.ModelUsage, error)
	MessageStatsByAgent(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) ([]domain.AgentActivity, error)
	HourlyTokensByAgent(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) (map[string]map[string]int64, error)
	SkillCounts(ctx context.Context, scope domain.ScopeFilter, w domain.TimeWindow) ([]domain.SkillActivity, error)
}

// AgentLister is the registry slice the roster needs.
type AgentLister interface {
	List(ctx context.Context, scope domain.ScopeFilter) ([]domain.Agent, error)
}

// TimeSeriesService produces bucketed series, per-model breakdowns, the
// agent roster and skill activity.
type TimeSeriesService struct {
	series TimeSeriesRepository
	agents AgentLister
	now    func() time.Time
	logger *zap.Logger
}

// NewTimeSeriesService creates a new time-series service
func NewTimeSeriesService(series TimeSeriesRepository, agents AgentLister, logger *zap.Logger) *TimeSeriesService {
	return &TimeSeriesService{
		series: series,
		agents: agents,
		now:    time.Now,
		logger: logger.Named("timeseries"),
	}
}

// Downsample reduces a series to target contiguous sum buckets. Input no
// longer than the target passes through unchanged; otherwise bucket
// boundaries are floor(i*len/target), so uneven remainders fold into the
// bucket sums instead of being dropped.
func Downsample(series []int64, target int) []int64 {
	if len(series) <= target || target <= 0 {
		return series
	}

	size := float64(len(series)) / float64(target)
	out := make([]int64, target)
	for i := 0; i < target; i++ {
		lo := int(math.Floor(float64(i) * size))
		hi := int(math.Floor(float64(i+1) * size))
		for _, v := range series[lo:hi] {
			out[i] += v
		}
	}
	return out
}

// window returns the current range window and whether daily buckets apply.
func (s *TimeSeriesService) window(rng string) (domain.TimeWindow, bool) {
	d := rangeDuration(rng)
	now := s.now()
	w := domain.TimeWindow{
		From: domain.FormatTime(now.Add(-d)),
		To:   domain.FormatTime(now),
	}
	return w, d > 24*time.Hour
}

// bucketKeys returns every bucket key covering [from, to), in order.
// Alignment happens in local time to match the stored timestamp format the
// keys are substrings of.
func bucketKeys(from, to time.Time, daily bool) []string {
	step := time.Hour
	width := 13
	suffix := ":00"
	start := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), 0, 0, 0, time.Local)
	if daily {
		step = 24 * time.Hour
		width = 10
		suffix = ""
		start = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.Local)
	}

	var keys []string
	for t := start; t.Before(to); t = t.Add(step) {
		keys = append(keys, domain.FormatTime(t)[:width]+suffix)
	}
	return keys
}

// Series returns the bucketed token/cost/message series for a range.
// Buckets with no traffic are zero-filled, so consumers always see a dense
// series.
func (s *TimeSeriesService) Series(ctx context.Context, q domain.QueryContext, rng string) ([]domain.SeriesPoint, error) {
	w, daily := s.window(rng)

	points, err := s.series.Series(ctx, queryScope(q), w, daily)
	if err != nil {
		return nil, err
	}

	byBucket := make(map[string]domain.SeriesPoint, len(points))
	for _, p := range points {
		byBucket[p.Bucket] = p
	}

	now := s.now()
	dense := []domain.SeriesPoint{}
	for _, key := range bucketKeys(now.Add(-rangeDuration(rng)), now, daily) {
		if p, ok := byBucket[key]; ok {
			dense = append(dense, p)
		} else {
			dense = append(dense, domain.SeriesPoint{Bucket: key})
		}
	}

	return dense, nil
}

// ModelBreakdown returns per-model usage with each model's token share of
// the window total, rounded to one decimal, zero when the total is zero.
func (s *TimeSeriesService) ModelBreakdown(ctx context.Context, q domain.QueryContext, rng string) ([]domain.ModelUsage, error) {
	w, _ := s.window(rng)

	usages, err := s.series.ModelBreakdown(ctx, queryScope(q), w)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, u := range usages {
		total += u.Tokens
	}
	for i := range usages {
		if total > 0 {
			usages[i].SharePct = math.Round(float64(usages[i].Tokens)/float64(total)*1000) / 10
		}
	}

	return usages, nil
}

// AgentRoster returns every visible agent with its windowed totals and a
// fixed-length hourly token sparkline. Agents without traffic in the
// window still appear, zero-valued.
func (s *TimeSeriesService) AgentRoster(ctx context.Context, q domain.QueryContext, rng string) ([]domain.AgentActivity, error) {
	scope := queryScope(q)
	w, _ := s.window(rng)

	registry, err := s.agents.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	stats, err := s.series.MessageStatsByAgent(ctx, scope, w)
	if err != nil {
		return nil, err
	}
	hourly, err := s.series.HourlyTokensByAgent(ctx, scope, w)
	if err != nil {
		return nil, err
	}

	statsByName := make(map[string]domain.AgentActivity, len(stats))
	for _, st := range stats {
		statsByName[st.AgentName] = st
	}

	now := s.now()
	hourKeys := bucketKeys(now.Add(-rangeDuration(rng)), now, false)

	roster := make([]domain.AgentActivity, 0, len(registry))
	for _, agent := range registry {
		activity := statsByName[agent.Name]
		activity.AgentName = agent.Name
		activity.ServiceType = agent.ServiceType

		series := make([]int64, len(hourKeys))
		for i, key := range hourKeys {
			series[i] = hourly[agent.Name][key]
		}
		if len(series) > sparklineBuckets {
			series = Downsample(series, sparklineBuckets)
		}
		activity.Sparkline = series

		roster = append(roster, activity)
	}

	return roster, nil
}

// ActiveSkills returns per-skill message counts over the range, busiest
// first.
func (s *TimeSeriesService) ActiveSkills(ctx context.Context, q domain.QueryContext, rng string) ([]domain.SkillActivity, error) {
	w, _ := s.window(rng)
	return s.series.SkillCounts(ctx, queryScope(q), w)
}
