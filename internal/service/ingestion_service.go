package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/otelcodec"
	"github.com/agentscope/agentscope/internal/pkg/metrics"
	"github.com/agentscope/agentscope/internal/seen"
)

// MessageRepository defines the persistence operations the trace pipeline
// needs for agent messages. All methods must be safe for concurrent use.
type MessageRepository interface {
	// CreateBatch persists agent messages in a single operation.
	CreateBatch(ctx context.Context, messages []*domain.AgentMessage) error
	// ApplyRollup pushes child llm-call aggregates into a parent message.
	ApplyRollup(ctx context.Context, rollup *domain.MessageRollup) error
}

// LlmCallRepository defines the persistence operations for llm calls.
type LlmCallRepository interface {
	CreateBatch(ctx context.Context, calls []*domain.LlmCall) error
}

// ToolExecutionRepository defines the persistence operations for tool
// executions.
type ToolExecutionRepository interface {
	CreateBatch(ctx context.Context, executions []*domain.ToolExecution) error
}

// AgentRegistry is the slice of the agent repository the pipelines touch.
type AgentRegistry interface {
	TouchLastSeen(ctx context.Context, agentID uuid.UUID, at time.Time) error
}

// Pricing is the read-only cost lookup consumed by the pipelines.
type Pricing interface {
	GetByModel(model string) (domain.ModelPrice, bool)
	CostFor(model string, inputTokens, outputTokens int64) (float64, bool)
}

// IngestionService turns OTLP trace export batches into agent message,
// llm call and tool execution rows.
type IngestionService struct {
	messages MessageRepository
	llmCalls LlmCallRepository
	tools    ToolExecutionRepository
	agents   AgentRegistry
	pricing  Pricing
	seen     seen.Store
	logger   *zap.Logger
}

// NewIngestionService creates a new trace ingestion service
func NewIngestionService(
	messages MessageRepository,
	llmCalls LlmCallRepository,
	tools ToolExecutionRepository,
	agents AgentRegistry,
	pricing Pricing,
	seenStore seen.Store,
	logger *zap.Logger,
) *IngestionService {
	return &IngestionService{
		messages: messages,
		llmCalls: llmCalls,
		tools:    tools,
		agents:   agents,
		pricing:  pricing,
		seen:     seenStore,
		logger:   logger.Named("ingestion"),
	}
}

// IngestTraces classifies and persists one trace export batch. The
// identity map is built over the whole batch before any row is written, so
// parent links resolve regardless of span order. The returned accepted
// count covers rows whose insert completed; a storage error propagates
// together with the rows accepted before it.
func (s *IngestionService) IngestTraces(ctx context.Context, ictx domain.IngestionContext, req *coltracepb.ExportTraceServiceRequest) (int, error) {
	start := time.Now()
	defer func() {
		metrics.IngestLatency.WithLabelValues("traces").Observe(time.Since(start).Seconds())
	}()

	spans, identities := otelcodec.ClassifyBatch(req)
	if len(spans) == 0 {
		return 0, nil
	}

	var (
		messages   []*domain.AgentMessage
		llmCalls   []*domain.LlmCall
		executions []*domain.ToolExecution
	)
	aggregates := make(map[uuid.UUID]*domain.MessageAggregate)

	for _, cs := range spans {
		switch cs.Identity.Kind {
		case domain.KindLlmCall:
			call := s.buildLlmCall(ictx, cs, identities)
			llmCalls = append(llmCalls, call)
			if call.MessageID != nil {
				s.accumulate(aggregates, call, cs.Attrs)
			}
		case domain.KindToolExecution:
			executions = append(executions, s.buildToolExecution(ictx, cs, identities))
		default:
			messages = append(messages, s.buildMessage(ictx, cs))
		}
	}

	accepted := 0
	if len(messages) > 0 {
		if err := s.messages.CreateBatch(ctx, messages); err != nil {
			return accepted, err
		}
		accepted += len(messages)
		metrics.SpansIngested.WithLabelValues(ictx.TenantID.String(), string(domain.KindAgentMessage)).Add(float64(len(messages)))
	}

	if len(llmCalls) > 0 {
		if err := s.llmCalls.CreateBatch(ctx, llmCalls); err != nil {
			return accepted, err
		}
		accepted += len(llmCalls)
		metrics.SpansIngested.WithLabelValues(ictx.TenantID.String(), string(domain.KindLlmCall)).Add(float64(len(llmCalls)))
	}

	if len(executions) > 0 {
		if err := s.tools.CreateBatch(ctx, executions); err != nil {
			return accepted, err
		}
		accepted += len(executions)
		metrics.SpansIngested.WithLabelValues(ictx.TenantID.String(), string(domain.KindToolExecution)).Add(float64(len(executions)))
	}

	if err := s.rollup(ctx, aggregates); err != nil {
		return accepted, err
	}

	s.signalFirstTelemetry(ctx, ictx)

	return accepted, nil
}

// buildMessage maps a classified span to an agent message row. Malformed
// fields default; scope columns come from the ingestion context only.
func (s *IngestionService) buildMessage(ictx domain.IngestionContext, cs otelcodec.ClassifiedSpan) *domain.AgentMessage {
	span, attrs := cs.Span, cs.Attrs

	m := &domain.AgentMessage{
		ID:                  cs.Identity.ID,
		TenantID:            ictx.TenantID,
		AgentID:             ictx.AgentID,
		UserID:              ictx.UserID,
		AgentName:           ictx.AgentName,
		TraceID:             otelcodec.IDHex(span.TraceId),
		SessionID:           otelcodec.AttrString(attrs, otelcodec.AttrSessionID),
		StartTime:           otelcodec.NanoToDatetime(span.StartTimeUnixNano),
		DurationMs:          otelcodec.SpanDurationMs(span.StartTimeUnixNano, span.EndTimeUnixNano),
		InputTokens:         otelcodec.AttrInt(attrs, otelcodec.AttrGenAIInputTokens),
		OutputTokens:        otelcodec.AttrInt(attrs, otelcodec.AttrGenAIOutputTokens),
		CacheReadTokens:     otelcodec.AttrInt(attrs, otelcodec.AttrGenAICacheReadTokens),
		CacheCreationTokens: otelcodec.AttrInt(attrs, otelcodec.AttrGenAICacheCreation),
		Status:              otelcodec.StatusToString(span.Status),
		Description:         otelcodec.AttrString(attrs, otelcodec.AttrDescription),
		ServiceType:         otelcodec.AttrString(attrs, otelcodec.AttrServiceType),
		RoutingReason:       otelcodec.AttrString(attrs, otelcodec.AttrRoutingReason),
		SkillName:           otelcodec.AttrString(attrs, otelcodec.AttrSkillName),
	}
	if m.Description == "" {
		m.Description = span.Name
	}
	if m.Status == domain.StatusError {
		m.ErrorMessage = span.Status.GetMessage()
	}
	if model := spanModel(attrs); model != "" {
		m.Model = &model
	}
	if tier := otelcodec.AttrString(attrs, otelcodec.AttrRoutingTier); tier != "" {
		m.RoutingTier = &tier
	}

	// Cost only when pricing resolves and tokens exist; NULL otherwise,
	// never zero.
	if m.Model != nil && m.InputTokens+m.OutputTokens > 0 {
		if cost, ok := s.pricing.CostFor(*m.Model, m.InputTokens, m.OutputTokens); ok {
			m.Cost = &cost
		}
	}

	return m
}

// buildLlmCall maps a classified span to an llm call row. The parent link
// resolves within the current batch only; a miss or a non-message parent
// leaves it NULL.
func (s *IngestionService) buildLlmCall(ictx domain.IngestionContext, cs otelcodec.ClassifiedSpan, identities map[string]otelcodec.SpanIdentity) *domain.LlmCall {
	span, attrs := cs.Span, cs.Attrs

	call := &domain.LlmCall{
		ID:                  cs.Identity.ID,
		TenantID:            ictx.TenantID,
		AgentID:             ictx.AgentID,
		UserID:              ictx.UserID,
		MessageID:           otelcodec.ResolveParent(identities, span.ParentSpanId, domain.KindAgentMessage),
		System:              otelcodec.AttrString(attrs, otelcodec.AttrGenAISystem),
		RequestModel:        otelcodec.AttrString(attrs, otelcodec.AttrGenAIRequestModel),
		ResponseModel:       otelcodec.AttrString(attrs, otelcodec.AttrGenAIResponseModel),
		InputTokens:         otelcodec.AttrInt(attrs, otelcodec.AttrGenAIInputTokens),
		OutputTokens:        otelcodec.AttrInt(attrs, otelcodec.AttrGenAIOutputTokens),
		CacheReadTokens:     otelcodec.AttrInt(attrs, otelcodec.AttrGenAICacheReadTokens),
		CacheCreationTokens: otelcodec.AttrInt(attrs, otelcodec.AttrGenAICacheCreation),
		DurationMs:          otelcodec.SpanDurationMs(span.StartTimeUnixNano, span.EndTimeUnixNano),
		Timestamp:           otelcodec.NanoToDatetime(span.StartTimeUnixNano),
	}
	if ttft, ok := otelcodec.AttrFloat(attrs, otelcodec.AttrGenAITTFT); ok {
		v := int64(ttft)
		call.TimeToFirstTokenMs = &v
	}
	if temp, ok := otelcodec.AttrFloat(attrs, otelcodec.AttrGenAITemperature); ok {
		call.Temperature = &temp
	}
	if maxTok, ok := otelcodec.AttrFloat(attrs, otelcodec.AttrGenAIMaxTokens); ok {
		v := int64(maxTok)
		call.MaxTokens = &v
	}

	return call
}

// buildToolExecution maps a classified span to a tool execution row.
func (s *IngestionService) buildToolExecution(ictx domain.IngestionContext, cs otelcodec.ClassifiedSpan, identities map[string]otelcodec.SpanIdentity) *domain.ToolExecution {
	span, attrs := cs.Span, cs.Attrs

	exec := &domain.ToolExecution{
		ID:         cs.Identity.ID,
		TenantID:   ictx.TenantID,
		AgentID:    ictx.AgentID,
		UserID:     ictx.UserID,
		LlmCallID:  otelcodec.ResolveParent(identities, span.ParentSpanId, domain.KindLlmCall),
		ToolName:   otelcodec.AttrString(attrs, otelcodec.AttrToolName),
		DurationMs: otelcodec.SpanDurationMs(span.StartTimeUnixNano, span.EndTimeUnixNano),
		Status:     otelcodec.StatusToString(span.Status),
		Timestamp:  otelcodec.NanoToDatetime(span.StartTimeUnixNano),
	}
	if exec.ToolName == "" {
		exec.ToolName = span.Name
	}
	if exec.Status == domain.StatusError {
		exec.ErrorMessage = span.Status.GetMessage()
	}

	return exec
}

// accumulate folds one child llm call into its parent's aggregate. Model
// and routing tier keep the first value seen in batch order.
func (s *IngestionService) accumulate(aggregates map[uuid.UUID]*domain.MessageAggregate, call *domain.LlmCall, attrs map[string]any) {
	agg := aggregates[*call.MessageID]
	if agg == nil {
		agg = &domain.MessageAggregate{}
		aggregates[*call.MessageID] = agg
	}
	agg.InputTokens += call.InputTokens
	agg.OutputTokens += call.OutputTokens
	agg.CacheReadTokens += call.CacheReadTokens
	agg.CacheCreationTokens += call.CacheCreationTokens
	if agg.Model == "" {
		agg.Model = call.Model()
	}
	if agg.RoutingTier == "" {
		agg.RoutingTier = otelcodec.AttrString(attrs, otelcodec.AttrRoutingTier)
	}
}

// rollup applies accumulated child aggregates to their parent messages.
// Aggregates with no tokens at all are skipped; a failed update leaves the
// already-written rows in place and surfaces the error.
func (s *IngestionService) rollup(ctx context.Context, aggregates map[uuid.UUID]*domain.MessageAggregate) error {
	for messageID, agg := range aggregates {
		if agg.InputTokens == 0 && agg.OutputTokens == 0 {
			continue
		}

		rollup := &domain.MessageRollup{
			MessageID:           messageID,
			InputTokens:         agg.InputTokens,
			OutputTokens:        agg.OutputTokens,
			CacheReadTokens:     agg.CacheReadTokens,
			CacheCreationTokens: agg.CacheCreationTokens,
			Model:               agg.Model,
			RoutingTier:         agg.RoutingTier,
		}
		if cost, ok := s.pricing.CostFor(agg.Model, agg.InputTokens, agg.OutputTokens); ok {
			rollup.Cost = &cost
		}

		if err := s.messages.ApplyRollup(ctx, rollup); err != nil {
			metrics.RollupsApplied.WithLabelValues("failure").Inc()
			return err
		}
		metrics.RollupsApplied.WithLabelValues("success").Inc()
	}

	return nil
}

// signalFirstTelemetry emits a one-time signal for a (tenant, agent) pair
// and bumps the registry's last-seen marker. Neither failure aborts an
// otherwise accepted batch.
func (s *IngestionService) signalFirstTelemetry(ctx context.Context, ictx domain.IngestionContext) {
	if s.seen != nil {
		first, err := s.seen.MarkSeen(ctx, ictx.TenantID.String(), ictx.AgentID.String())
		if err != nil {
			s.logger.Warn("first-seen tracking failed", zap.Error(err))
		} else if first {
			s.logger.Info("first telemetry from agent",
				zap.String("tenant_id", ictx.TenantID.String()),
				zap.String("agent", ictx.AgentName),
			)
		}
	}

	if s.agents != nil {
		if err := s.agents.TouchLastSeen(ctx, ictx.AgentID, time.Now()); err != nil {
			s.logger.Warn("failed to update agent last_seen_at", zap.Error(err))
		}
	}
}

// spanModel picks the model reported on a span, preferring the response
// model over the requested one.
func spanModel(attrs map[string]any) string {
	if model := otelcodec.AttrString(attrs, otelcodec.AttrGenAIResponseModel); model != "" {
		return model
	}
	return otelcodec.AttrString(attrs, otelcodec.AttrGenAIRequestModel)
}
