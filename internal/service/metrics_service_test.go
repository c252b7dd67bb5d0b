package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	colmetricpb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricpb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/domain"
)

// MockSnapshotRepository is a mock implementation of SnapshotRepository
type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) CreateTokenUsageBatch(ctx context.Context, snapshots []*domain.TokenUsageSnapshot) error {
	args := m.Called(ctx, snapshots)
	return args.Error(0)
}

func (m *MockSnapshotRepository) CreateCostBatch(ctx context.Context, snapshots []*domain.CostSnapshot) error {
	args := m.Called(ctx, snapshots)
	return args.Error(0)
}

func gaugeMetric(name string, points ...*metricpb.NumberDataPoint) *metricpb.Metric {
	return &metricpb.Metric{
		Name: name,
		Data: &metricpb.Metric_Gauge{Gauge: &metricpb.Gauge{DataPoints: points}},
	}
}

func sumMetric(name string, points ...*metricpb.NumberDataPoint) *metricpb.Metric {
	return &metricpb.Metric{
		Name: name,
		Data: &metricpb.Metric_Sum{Sum: &metricpb.Sum{DataPoints: points}},
	}
}

func intPoint(value int64, at time.Time) *metricpb.NumberDataPoint {
	return &metricpb.NumberDataPoint{
		TimeUnixNano: uint64(at.UnixNano()),
		Value:        &metricpb.NumberDataPoint_AsInt{AsInt: value},
	}
}

func metricsRequest(metrics ...*metricpb.Metric) *colmetricpb.ExportMetricsServiceRequest {
	return &colmetricpb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricpb.ResourceMetrics{{
			Resource: &resourcepb.Resource{Attributes: []*commonpb.KeyValue{
				kv("service.name", "planner"),
			}},
			ScopeMetrics: []*metricpb.ScopeMetrics{{Metrics: metrics}},
		}},
	}
}

func TestIngestMetricsTokenNameTable(t *testing.T) {
	repo := new(MockSnapshotRepository)
	svc := NewMetricsService(repo, zap.NewNop())

	var tokenRows []*domain.TokenUsageSnapshot
	repo.On("CreateTokenUsageBatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		tokenRows = args.Get(1).([]*domain.TokenUsageSnapshot)
	}).Return(nil)
	repo.On("CreateCostBatch", mock.Anything, mock.Anything).Return(nil)

	now := time.Now()
	req := metricsRequest(
		gaugeMetric("gen_ai.usage.input_tokens", intPoint(120, now)),
		sumMetric("gen_ai.usage.output_tokens", intPoint(60, now)),
		gaugeMetric("gen_ai.usage.total_tokens", intPoint(180, now)),
		gaugeMetric("http.server.request_count", intPoint(999, now)), // not interpreted
	)

	accepted, err := svc.IngestMetrics(context.Background(), testIngestionContext(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, accepted, "unknown metric names are not counted")

	require.Len(t, tokenRows, 3)
	assert.Equal(t, int64(120), tokenRows[0].InputTokens)
	assert.Zero(t, tokenRows[0].OutputTokens, "unrelated fields stay zero-filled")
	assert.Equal(t, int64(60), tokenRows[1].OutputTokens)
	assert.Equal(t, int64(180), tokenRows[2].TotalTokens)
}

func TestIngestMetricsCostSnapshots(t *testing.T) {
	repo := new(MockSnapshotRepository)
	svc := NewMetricsService(repo, zap.NewNop())

	var costRows []*domain.CostSnapshot
	repo.On("CreateTokenUsageBatch", mock.Anything, mock.Anything).Return(nil)
	repo.On("CreateCostBatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		costRows = args.Get(1).([]*domain.CostSnapshot)
	}).Return(nil)

	now := time.Now()
	withModel := &metricpb.NumberDataPoint{
		TimeUnixNano: uint64(now.UnixNano()),
		Value:        &metricpb.NumberDataPoint_AsDouble{AsDouble: 0.42},
		Attributes:   []*commonpb.KeyValue{kv("model", "claude-sonnet-4")},
	}
	withoutModel := intPoint(2, now)

	req := metricsRequest(
		gaugeMetric("gen_ai.usage.cost", withModel),
		sumMetric("gen_ai.cost.usd", withoutModel),
	)

	accepted, err := svc.IngestMetrics(context.Background(), testIngestionContext(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)

	require.Len(t, costRows, 2)
	assert.Equal(t, "claude-sonnet-4", costRows[0].Model)
	assert.InDelta(t, 0.42, costRows[0].Amount, 1e-9)
	assert.Equal(t, "planner", costRows[1].Model, "model falls back to the resource agent name")
	assert.InDelta(t, 2.0, costRows[1].Amount, 1e-9)
}

func TestPointValuePrefersDouble(t *testing.T) {
	p := &metricpb.NumberDataPoint{Value: &metricpb.NumberDataPoint_AsDouble{AsDouble: 1.5}}
	assert.Equal(t, 1.5, pointValue(p))

	p = &metricpb.NumberDataPoint{Value: &metricpb.NumberDataPoint_AsInt{AsInt: 7}}
	assert.Equal(t, 7.0, pointValue(p))
}
