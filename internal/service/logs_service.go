package service

import (
	"context"
	"encoding/json"
	"time"

	collogpb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/otelcodec"
	"github.com/agentscope/agentscope/internal/pkg/id"
	"github.com/agentscope/agentscope/internal/pkg/metrics"
)

// LogRepository defines persistence for agent log rows.
type LogRepository interface {
	CreateBatch(ctx context.Context, logs []*domain.AgentLog) error
}

// LogsService turns OTLP log export batches into agent log rows.
type LogsService struct {
	logs   LogRepository
	logger *zap.Logger
}

// NewLogsService creates a new log ingestion service
func NewLogsService(logs LogRepository, logger *zap.Logger) *LogsService {
	return &LogsService{
		logs:   logs,
		logger: logger.Named("logs"),
	}
}

// IngestLogs persists one log export batch and returns the number of
// records accepted.
func (s *LogsService) IngestLogs(ctx context.Context, ictx domain.IngestionContext, req *collogpb.ExportLogsServiceRequest) (int, error) {
	start := time.Now()
	defer func() {
		metrics.IngestLatency.WithLabelValues("logs").Observe(time.Since(start).Seconds())
	}()

	var rows []*domain.AgentLog
	for _, rl := range req.GetResourceLogs() {
		for _, sl := range rl.GetScopeLogs() {
			for _, record := range sl.GetLogRecords() {
				if record == nil {
					continue
				}

				row := &domain.AgentLog{
					ID:        id.NewUUID(),
					TenantID:  ictx.TenantID,
					AgentID:   ictx.AgentID,
					UserID:    ictx.UserID,
					AgentName: ictx.AgentName,
					Severity:  otelcodec.SeverityToString(int32(record.SeverityNumber)),
					Body:      bodyToString(record.Body),
					Timestamp: otelcodec.NanoToDatetime(record.TimeUnixNano),
				}
				if attrs := otelcodec.ExtractAttributes(record.Attributes); len(attrs) > 0 {
					if encoded, err := json.Marshal(attrs); err == nil {
						row.Attributes = string(encoded)
					}
				}
				rows = append(rows, row)
			}
		}
	}

	if err := s.logs.CreateBatch(ctx, rows); err != nil {
		return 0, err
	}
	metrics.LogRecordsIngested.WithLabelValues(ictx.TenantID.String()).Add(float64(len(rows)))

	return len(rows), nil
}

// bodyToString stores string bodies as-is and serializes structured bodies
// to JSON so nothing is dropped.
func bodyToString(body *commonpb.AnyValue) string {
	if body == nil {
		return ""
	}
	if s, ok := body.Value.(*commonpb.AnyValue_StringValue); ok {
		return s.StringValue
	}
	encoded, err := json.Marshal(anyValueToGo(body))
	if err != nil {
		return ""
	}
	return string(encoded)
}

// anyValueToGo converts an OTLP AnyValue tree to plain Go values for JSON
// serialization.
func anyValueToGo(v *commonpb.AnyValue) any {
	switch val := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue
	case *commonpb.AnyValue_IntValue:
		return val.IntValue
	case *commonpb.AnyValue_DoubleValue:
		return val.DoubleValue
	case *commonpb.AnyValue_BoolValue:
		return val.BoolValue
	case *commonpb.AnyValue_ArrayValue:
		items := make([]any, 0, len(val.ArrayValue.GetValues()))
		for _, item := range val.ArrayValue.GetValues() {
			items = append(items, anyValueToGo(item))
		}
		return items
	case *commonpb.AnyValue_KvlistValue:
		m := make(map[string]any, len(val.KvlistValue.GetValues()))
		for _, kv := range val.KvlistValue.GetValues() {
			m[kv.GetKey()] = anyValueToGo(kv.GetValue())
		}
		return m
	}
	return nil
}
