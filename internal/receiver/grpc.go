// Package receiver implements the OTLP gRPC collector services.
package receiver

import (
	"context"
	"fmt"
	"net"

	collogpb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricpb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	metricpb "go.opentelemetry.io/proto/otlp/metrics/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/agentscope/agentscope/internal/service"
)

// GRPCReceiver hosts the OTLP TraceService, MetricsService and LogsService
// on a single gRPC server. Export never fails the RPC for data problems;
// rejected items are reported through the OTLP partial-success message.
type GRPCReceiver struct {
	logger    *zap.Logger
	ingestion *service.IngestionService
	metrics   *service.MetricsService
	logs      *service.LogsService
	server    *grpc.Server
	listener  net.Listener
	addr      string
}

// NewGRPCReceiver creates a gRPC receiver listening on addr.
func NewGRPCReceiver(
	addr string,
	logger *zap.Logger,
	ingestion *service.IngestionService,
	metrics *service.MetricsService,
	logs *service.LogsService,
) *GRPCReceiver {
	return &GRPCReceiver{
		logger:    logger.Named("grpc"),
		ingestion: ingestion,
		metrics:   metrics,
		logs:      logs,
		addr:      addr,
	}
}

// Start begins serving and blocks until the server stops.
func (r *GRPCReceiver) Start() error {
	lis, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.addr, err)
	}
	r.listener = lis

	r.server = grpc.NewServer()

	// Wrapper types keep the three Export methods from colliding.
	coltracepb.RegisterTraceServiceServer(r.server, &traceService{receiver: r})
	colmetricpb.RegisterMetricsServiceServer(r.server, &metricsService{receiver: r})
	collogpb.RegisterLogsServiceServer(r.server, &logsService{receiver: r})

	reflection.Register(r.server)

	r.logger.Info("otlp grpc server listening", zap.String("addr", r.addr))
	return r.server.Serve(lis)
}

// Shutdown stops the server, draining in-flight RPCs.
func (r *GRPCReceiver) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.server.Stop()
		return ctx.Err()
	}
}

type traceService struct {
	coltracepb.UnimplementedTraceServiceServer
	receiver *GRPCReceiver
}

// Export implements the TraceService Export RPC.
func (s *traceService) Export(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	ictx, err := ScopeFromMetadata(ctx)
	if err != nil {
		return nil, err
	}

	total := countSpans(req)
	accepted, err := s.receiver.ingestion.IngestTraces(ctx, ictx, req)
	if err != nil {
		s.receiver.logger.Error("trace export failed",
			zap.String("tenant_id", ictx.TenantID.String()),
			zap.Int("accepted", accepted),
			zap.Error(err),
		)
	}

	rejected := total - accepted
	if err != nil && rejected == 0 {
		// Every span row was written but the parent rollup update failed.
		return nil, status.Error(codes.Internal, "spans were stored but parent rollups failed")
	}

	resp := &coltracepb.ExportTraceServiceResponse{}
	if rejected > 0 {
		resp.PartialSuccess = &coltracepb.ExportTracePartialSuccess{
			RejectedSpans: int64(rejected),
			ErrorMessage:  partialMessage(err),
		}
	}
	return resp, nil
}

type metricsService struct {
	colmetricpb.UnimplementedMetricsServiceServer
	receiver *GRPCReceiver
}

// Export implements the MetricsService Export RPC.
func (s *metricsService) Export(ctx context.Context, req *colmetricpb.ExportMetricsServiceRequest) (*colmetricpb.ExportMetricsServiceResponse, error) {
	ictx, err := ScopeFromMetadata(ctx)
	if err != nil {
		return nil, err
	}

	total := countDataPoints(req)
	accepted, err := s.receiver.metrics.IngestMetrics(ctx, ictx, req)
	if err != nil {
		s.receiver.logger.Error("metrics export failed",
			zap.String("tenant_id", ictx.TenantID.String()),
			zap.Int("accepted", accepted),
			zap.Error(err),
		)
	}

	resp := &colmetricpb.ExportMetricsServiceResponse{}
	if rejected := total - accepted; rejected > 0 && err != nil {
		resp.PartialSuccess = &colmetricpb.ExportMetricsPartialSuccess{
			RejectedDataPoints: int64(rejected),
			ErrorMessage:       partialMessage(err),
		}
	}
	return resp, nil
}

type logsService struct {
	collogpb.UnimplementedLogsServiceServer
	receiver *GRPCReceiver
}

// Export implements the LogsService Export RPC.
func (s *logsService) Export(ctx context.Context, req *collogpb.ExportLogsServiceRequest) (*collogpb.ExportLogsServiceResponse, error) {
	ictx, err := ScopeFromMetadata(ctx)
	if err != nil {
		return nil, err
	}

	total := countLogRecords(req)
	accepted, err := s.receiver.logs.IngestLogs(ctx, ictx, req)
	if err != nil {
		s.receiver.logger.Error("logs export failed",
			zap.String("tenant_id", ictx.TenantID.String()),
			zap.Int("accepted", accepted),
			zap.Error(err),
		)
	}

	resp := &collogpb.ExportLogsServiceResponse{}
	if rejected := total - accepted; rejected > 0 {
		resp.PartialSuccess = &collogpb.ExportLogsPartialSuccess{
			RejectedLogRecords: int64(rejected),
			ErrorMessage:       partialMessage(err),
		}
	}
	return resp, nil
}

func partialMessage(err error) string {
	if err == nil {
		return ""
	}
	return "some telemetry could not be persisted"
}

func countSpans(req *coltracepb.ExportTraceServiceRequest) int {
	n := 0
	for _, rs := range req.GetResourceSpans() {
		for _, ss := range rs.GetScopeSpans() {
			n += len(ss.GetSpans())
		}
	}
	return n
}

func countDataPoints(req *colmetricpb.ExportMetricsServiceRequest) int {
	n := 0
	for _, rm := range req.GetResourceMetrics() {
		for _, sm := range rm.GetScopeMetrics() {
			for _, m := range sm.GetMetrics() {
				switch data := m.GetData().(type) {
				case *metricpb.Metric_Gauge:
					n += len(data.Gauge.GetDataPoints())
				case *metricpb.Metric_Sum:
					n += len(data.Sum.GetDataPoints())
				}
			}
		}
	}
	return n
}

func countLogRecords(req *collogpb.ExportLogsServiceRequest) int {
	n := 0
	for _, rl := range req.GetResourceLogs() {
		for _, sl := range rl.GetScopeLogs() {
			n += len(sl.GetLogRecords())
		}
	}
	return n
}
