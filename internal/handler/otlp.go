package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	collogpb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricpb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	metricpb "go.opentelemetry.io/proto/otlp/metrics/v1"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/agentscope/agentscope/internal/service"
)

// OTLPHandler handles the OTLP/HTTP export endpoints. Bodies are accepted
// as binary protobuf or protojson, selected by Content-Type.
type OTLPHandler struct {
	logger    *zap.Logger
	ingestion *service.IngestionService
	metrics   *service.MetricsService
	logs      *service.LogsService
	maxSpans  int
}

// NewOTLPHandler creates a new OTLP ingest handler. maxSpans caps the span
// count of a single trace export; zero disables the cap.
func NewOTLPHandler(
	logger *zap.Logger,
	ingestion *service.IngestionService,
	metrics *service.MetricsService,
	logs *service.LogsService,
	maxSpans int,
) *OTLPHandler {
	return &OTLPHandler{
		logger:    logger,
		ingestion: ingestion,
		metrics:   metrics,
		logs:      logs,
		maxSpans:  maxSpans,
	}
}

// ReceiveTraces handles POST /v1/traces.
func (h *OTLPHandler) ReceiveTraces(c *fiber.Ctx) error {
	ictx, ok := RequireIngestionContext(c)
	if !ok {
		return nil
	}

	var req coltracepb.ExportTraceServiceRequest
	if err := unmarshalOTLP(c, &req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid OTLP request body")
	}

	total := 0
	for _, rs := range req.GetResourceSpans() {
		for _, ss := range rs.GetScopeSpans() {
			total += len(ss.GetSpans())
		}
	}
	if h.maxSpans > 0 && total > h.maxSpans {
		return errorResponse(c, fiber.StatusRequestEntityTooLarge, "Trace batch exceeds span limit")
	}

	accepted, err := h.ingestion.IngestTraces(c.Context(), ictx, &req)
	if err != nil {
		h.logger.Error("trace ingest failed",
			zap.String("tenant_id", ictx.TenantID.String()),
			zap.Int("accepted", accepted),
			zap.Error(err),
		)
	}

	rejected := total - accepted
	if err != nil && rejected == 0 {
		// Every span row was written but the parent rollup update failed.
		return errorResponse(c, fiber.StatusInternalServerError, "Spans were stored but parent rollups failed")
	}

	resp := &coltracepb.ExportTraceServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &coltracepb.ExportTracePartialSuccess{
			RejectedSpans: int64(rejected),
			ErrorMessage:  "some spans could not be persisted",
		}
	}
	return marshalOTLP(c, resp)
}

// ReceiveMetrics handles POST /v1/metrics.
func (h *OTLPHandler) ReceiveMetrics(c *fiber.Ctx) error {
	ictx, ok := RequireIngestionContext(c)
	if !ok {
		return nil
	}

	var req colmetricpb.ExportMetricsServiceRequest
	if err := unmarshalOTLP(c, &req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid OTLP request body")
	}

	accepted, err := h.metrics.IngestMetrics(c.Context(), ictx, &req)
	if err != nil {
		h.logger.Error("metrics ingest failed",
			zap.String("tenant_id", ictx.TenantID.String()),
			zap.Int("accepted", accepted),
			zap.Error(err),
		)
	}

	resp := &colmetricpb.ExportMetricsServiceResponse{}
	if err != nil {
		total := 0
		for _, rm := range req.GetResourceMetrics() {
			for _, sm := range rm.GetScopeMetrics() {
				for _, m := range sm.GetMetrics() {
					switch data := m.GetData().(type) {
					case *metricpb.Metric_Gauge:
						total += len(data.Gauge.GetDataPoints())
					case *metricpb.Metric_Sum:
						total += len(data.Sum.GetDataPoints())
					}
				}
			}
		}
		resp.PartialSuccess = &colmetricpb.ExportMetricsPartialSuccess{
			RejectedDataPoints: int64(total - accepted),
			ErrorMessage:       "some data points could not be persisted",
		}
	}
	return marshalOTLP(c, resp)
}

// ReceiveLogs handles POST /v1/logs.
func (h *OTLPHandler) ReceiveLogs(c *fiber.Ctx) error {
	ictx, ok := RequireIngestionContext(c)
	if !ok {
		return nil
	}

	var req collogpb.ExportLogsServiceRequest
	if err := unmarshalOTLP(c, &req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid OTLP request body")
	}

	accepted, err := h.logs.IngestLogs(c.Context(), ictx, &req)
	if err != nil {
		h.logger.Error("logs ingest failed",
			zap.String("tenant_id", ictx.TenantID.String()),
			zap.Int("accepted", accepted),
			zap.Error(err),
		)
	}

	resp := &collogpb.ExportLogsServiceResponse{}
	total := 0
	for _, rl := range req.GetResourceLogs() {
		for _, sl := range rl.GetScopeLogs() {
			total += len(sl.GetLogRecords())
		}
	}
	if rejected := total - accepted; rejected > 0 {
		resp.PartialSuccess = &collogpb.ExportLogsPartialSuccess{
			RejectedLogRecords: int64(rejected),
			ErrorMessage:       "some log records could not be persisted",
		}
	}
	return marshalOTLP(c, resp)
}

const contentTypeProtobuf = "application/x-protobuf"

func unmarshalOTLP(c *fiber.Ctx, msg proto.Message) error {
	body := c.Body()
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), contentTypeProtobuf) {
		return proto.Unmarshal(body, msg)
	}
	return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(body, msg)
}

func marshalOTLP(c *fiber.Ctx, msg proto.Message) error {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), contentTypeProtobuf) {
		out, err := proto.Marshal(msg)
		if err != nil {
			return errorResponse(c, fiber.StatusInternalServerError, "Failed to encode response")
		}
		c.Set(fiber.HeaderContentType, contentTypeProtobuf)
		return c.Send(out)
	}
	out, err := protojson.Marshal(msg)
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to encode response")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(out)
}
