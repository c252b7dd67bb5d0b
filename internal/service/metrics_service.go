package service

import (
	"context"
	"time"

	colmetricpb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	metricpb "go.opentelemetry.io/proto/otlp/metrics/v1"
	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/otelcodec"
	"github.com/agentscope/agentscope/internal/pkg/id"
	"github.com/agentscope/agentscope/internal/pkg/metrics"
)

// SnapshotRepository defines persistence for the metric pipeline's
// time-series rows.
type SnapshotRepository interface {
	CreateTokenUsageBatch(ctx context.Context, snapshots []*domain.TokenUsageSnapshot) error
	CreateCostBatch(ctx context.Context, snapshots []*domain.CostSnapshot) error
}

// MetricsService turns OTLP metric export batches into token usage and
// cost snapshot rows. Only the gen_ai usage metric names are interpreted;
// everything else is ignored and not counted as accepted.
type MetricsService struct {
	snapshots SnapshotRepository
	logger    *zap.Logger
}

// NewMetricsService creates a new metric ingestion service
func NewMetricsService(snapshots SnapshotRepository, logger *zap.Logger) *MetricsService {
	return &MetricsService{
		snapshots: snapshots,
		logger:    logger.Named("metrics"),
	}
}

// IngestMetrics persists one metric export batch and returns the number of
// data points accepted.
func (s *MetricsService) IngestMetrics(ctx context.Context, ictx domain.IngestionContext, req *colmetricpb.ExportMetricsServiceRequest) (int, error) {
	start := time.Now()
	defer func() {
		metrics.IngestLatency.WithLabelValues("metrics").Observe(time.Since(start).Seconds())
	}()

	var (
		tokenRows []*domain.TokenUsageSnapshot
		costRows  []*domain.CostSnapshot
	)

	for _, rm := range req.GetResourceMetrics() {
		resAttrs := otelcodec.ExtractAttributes(rm.GetResource().GetAttributes())
		for _, sm := range rm.GetScopeMetrics() {
			for _, metric := range sm.GetMetrics() {
				points := numberPoints(metric)
				if len(points) == 0 {
					continue
				}
				switch metric.GetName() {
				case "gen_ai.usage.input_tokens":
					tokenRows = append(tokenRows, s.tokenSnapshots(ictx, points, setInputTokens)...)
				case "gen_ai.usage.output_tokens":
					tokenRows = append(tokenRows, s.tokenSnapshots(ictx, points, setOutputTokens)...)
				case "gen_ai.usage.total_tokens":
					tokenRows = append(tokenRows, s.tokenSnapshots(ictx, points, setTotalTokens)...)
				case "gen_ai.usage.cache_read_tokens":
					tokenRows = append(tokenRows, s.tokenSnapshots(ictx, points, setCacheReadTokens)...)
				case "gen_ai.usage.cache_creation_tokens":
					tokenRows = append(tokenRows, s.tokenSnapshots(ictx, points, setCacheCreationTokens)...)
				case "gen_ai.usage.cost", "gen_ai.cost.usd":
					costRows = append(costRows, s.costSnapshots(ictx, resAttrs, points)...)
				}
			}
		}
	}

	accepted := 0
	if err := s.snapshots.CreateTokenUsageBatch(ctx, tokenRows); err != nil {
		return accepted, err
	}
	accepted += len(tokenRows)
	metrics.MetricPointsIngested.WithLabelValues(ictx.TenantID.String(), "token_usage").Add(float64(len(tokenRows)))

	if err := s.snapshots.CreateCostBatch(ctx, costRows); err != nil {
		return accepted, err
	}
	accepted += len(costRows)
	metrics.MetricPointsIngested.WithLabelValues(ictx.TenantID.String(), "cost").Add(float64(len(costRows)))

	return accepted, nil
}

// numberPoints extracts the data points of a gauge or sum payload. Other
// metric kinds carry nothing this pipeline stores.
func numberPoints(metric *metricpb.Metric) []*metricpb.NumberDataPoint {
	switch data := metric.GetData().(type) {
	case *metricpb.Metric_Gauge:
		return data.Gauge.GetDataPoints()
	case *metricpb.Metric_Sum:
		return data.Sum.GetDataPoints()
	}
	return nil
}

// pointValue reads a data point's numeric value, preferring the double
// field over the integer field when both are set.
func pointValue(p *metricpb.NumberDataPoint) float64 {
	if v, ok := p.GetValue().(*metricpb.NumberDataPoint_AsDouble); ok {
		return v.AsDouble
	}
	return float64(p.GetAsInt())
}

type tokenFieldSetter func(*domain.TokenUsageSnapshot, int64)

func setInputTokens(s *domain.TokenUsageSnapshot, v int64)         { s.InputTokens = v }
func setOutputTokens(s *domain.TokenUsageSnapshot, v int64)        { s.OutputTokens = v }
func setTotalTokens(s *domain.TokenUsageSnapshot, v int64)         { s.TotalTokens = v }
func setCacheReadTokens(s *domain.TokenUsageSnapshot, v int64)     { s.CacheReadTokens = v }
func setCacheCreationTokens(s *domain.TokenUsageSnapshot, v int64) { s.CacheCreationTokens = v }

// tokenSnapshots builds one zero-filled snapshot row per data point, with
// only the field named by the metric set.
func (s *MetricsService) tokenSnapshots(ictx domain.IngestionContext, points []*metricpb.NumberDataPoint, set tokenFieldSetter) []*domain.TokenUsageSnapshot {
	rows := make([]*domain.TokenUsageSnapshot, 0, len(points))
	for _, p := range points {
		row := &domain.TokenUsageSnapshot{
			ID:        id.NewUUID(),
			TenantID:  ictx.TenantID,
			AgentID:   ictx.AgentID,
			UserID:    ictx.UserID,
			AgentName: ictx.AgentName,
			Timestamp: otelcodec.NanoToDatetime(p.GetTimeUnixNano()),
		}
		set(row, int64(pointValue(p)))
		rows = append(rows, row)
	}
	return rows
}

// costSnapshots builds one cost row per data point. The model comes from
// the point's own attributes, falling back to the resource-level agent
// name.
func (s *MetricsService) costSnapshots(ictx domain.IngestionContext, resAttrs map[string]any, points []*metricpb.NumberDataPoint) []*domain.CostSnapshot {
	rows := make([]*domain.CostSnapshot, 0, len(points))
	for _, p := range points {
		pointAttrs := otelcodec.ExtractAttributes(p.GetAttributes())
		model := otelcodec.AttrString(pointAttrs, "model")
		if model == "" {
			model = otelcodec.AttrString(pointAttrs, otelcodec.AttrGenAIResponseModel)
		}
		if model == "" {
			model = otelcodec.AttrString(resAttrs, otelcodec.AttrServiceName)
		}

		rows = append(rows, &domain.CostSnapshot{
			ID:        id.NewUUID(),
			TenantID:  ictx.TenantID,
			AgentID:   ictx.AgentID,
			UserID:    ictx.UserID,
			AgentName: ictx.AgentName,
			Model:     model,
			Amount:    pointValue(p),
			Timestamp: otelcodec.NanoToDatetime(p.GetTimeUnixNano()),
		})
	}
	return rows
}
