package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/middleware"
	"github.com/agentscope/agentscope/internal/seen"
	"github.com/agentscope/agentscope/internal/service"
)

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) CreateBatch(ctx context.Context, messages []*domain.AgentMessage) error {
	args := m.Called(ctx, messages)
	return args.Error(0)
}

func (m *MockMessageRepository) ApplyRollup(ctx context.Context, rollup *domain.MessageRollup) error {
	args := m.Called(ctx, rollup)
	return args.Error(0)
}

type MockLlmCallRepository struct {
	mock.Mock
}

func (m *MockLlmCallRepository) CreateBatch(ctx context.Context, calls []*domain.LlmCall) error {
	args := m.Called(ctx, calls)
	return args.Error(0)
}

type MockToolExecutionRepository struct {
	mock.Mock
}

func (m *MockToolExecutionRepository) CreateBatch(ctx context.Context, executions []*domain.ToolExecution) error {
	args := m.Called(ctx, executions)
	return args.Error(0)
}

type MockAgentRegistry struct {
	mock.Mock
}

func (m *MockAgentRegistry) TouchLastSeen(ctx context.Context, agentID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, agentID, at)
	return args.Error(0)
}

func newTestApp(t *testing.T, messages *MockMessageRepository, llmCalls *MockLlmCallRepository) *fiber.App {
	t.Helper()

	agents := new(MockAgentRegistry)
	agents.On("TouchLastSeen", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	ingestion := service.NewIngestionService(
		messages,
		llmCalls,
		new(MockToolExecutionRepository),
		agents,
		service.NewPricingService(nil, zap.NewNop()),
		seen.NewMemoryStore(),
		zap.NewNop(),
	)
	h := NewOTLPHandler(zap.NewNop(), ingestion, nil, nil, 0)

	app := fiber.New()
	app.Use(middleware.IngestionScope())
	app.Post("/v1/traces", h.ReceiveTraces)
	return app
}

func traceBody(t *testing.T) []byte {
	t.Helper()

	req := &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{
			ScopeSpans: []*tracepb.ScopeSpans{{
				Spans: []*tracepb.Span{{
					TraceId:           bytes.Repeat([]byte{0x01}, 16),
					SpanId:            bytes.Repeat([]byte{0x02}, 8),
					Name:              "handle user request",
					StartTimeUnixNano: uint64(time.Now().Add(-time.Second).UnixNano()),
					EndTimeUnixNano:   uint64(time.Now().UnixNano()),
					Attributes: []*commonpb.KeyValue{{
						Key:   "agentscope.session.id",
						Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: "sess-1"}},
					}},
				}},
			}},
		}},
	}
	body, err := protojson.Marshal(req)
	require.NoError(t, err)
	return body
}

func TestReceiveTracesPersistsBatch(t *testing.T) {
	messages := new(MockMessageRepository)
	var stored []*domain.AgentMessage
	messages.On("CreateBatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).([]*domain.AgentMessage)
	}).Return(nil)

	app := newTestApp(t, messages, new(MockLlmCallRepository))
	tenantID := uuid.New()
	agentID := uuid.New()

	req := httptest.NewRequest("POST", "/v1/traces", bytes.NewReader(traceBody(t)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderTenantID, tenantID.String())
	req.Header.Set(middleware.HeaderAgentID, agentID.String())
	req.Header.Set(middleware.HeaderAgentName, "planner")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var exportResp coltracepb.ExportTraceServiceResponse
	require.NoError(t, protojson.Unmarshal(body, &exportResp))
	assert.Nil(t, exportResp.PartialSuccess, "fully accepted batches carry no partial success")

	require.Len(t, stored, 1)
	assert.Equal(t, tenantID, stored[0].TenantID)
	assert.Equal(t, "planner", stored[0].AgentName)
	assert.Equal(t, "sess-1", stored[0].SessionID)
}

// parentChildTraceBody builds a two-span batch: an agent message span and a
// child llm call carrying token usage, so ingest applies a parent rollup.
func parentChildTraceBody(t *testing.T) []byte {
	t.Helper()

	traceID := bytes.Repeat([]byte{0x01}, 16)
	parentSpanID := bytes.Repeat([]byte{0x03}, 8)
	now := time.Now()

	req := &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{
			ScopeSpans: []*tracepb.ScopeSpans{{
				Spans: []*tracepb.Span{
					{
						TraceId:           traceID,
						SpanId:            parentSpanID,
						Name:              "handle user request",
						StartTimeUnixNano: uint64(now.Add(-time.Second).UnixNano()),
						EndTimeUnixNano:   uint64(now.UnixNano()),
					},
					{
						TraceId:           traceID,
						SpanId:            bytes.Repeat([]byte{0x04}, 8),
						ParentSpanId:      parentSpanID,
						Name:              "chat claude-sonnet-4",
						StartTimeUnixNano: uint64(now.Add(-time.Second).UnixNano()),
						EndTimeUnixNano:   uint64(now.UnixNano()),
						Attributes: []*commonpb.KeyValue{
							{
								Key:   "gen_ai.system",
								Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: "anthropic"}},
							},
							{
								Key:   "gen_ai.usage.input_tokens",
								Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: 800}},
							},
							{
								Key:   "gen_ai.usage.output_tokens",
								Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: 120}},
							},
						},
					},
				},
			}},
		}},
	}
	body, err := protojson.Marshal(req)
	require.NoError(t, err)
	return body
}

func TestReceiveTracesReportsRollupFailure(t *testing.T) {
	messages := new(MockMessageRepository)
	messages.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)
	messages.On("ApplyRollup", mock.Anything, mock.Anything).Return(errors.New("rollup update failed"))
	llmCalls := new(MockLlmCallRepository)
	llmCalls.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)

	app := newTestApp(t, messages, llmCalls)

	req := httptest.NewRequest("POST", "/v1/traces", bytes.NewReader(parentChildTraceBody(t)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderTenantID, uuid.New().String())
	req.Header.Set(middleware.HeaderAgentID, uuid.New().String())
	req.Header.Set(middleware.HeaderAgentName, "planner")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode, "a rollup failure after the batch was stored is not a clean export")
	messages.AssertExpectations(t)
	llmCalls.AssertExpectations(t)
}

func TestReceiveTracesRejectsBadBody(t *testing.T) {
	app := newTestApp(t, new(MockMessageRepository), new(MockLlmCallRepository))

	req := httptest.NewRequest("POST", "/v1/traces", bytes.NewReader([]byte("not otlp")))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderTenantID, uuid.New().String())
	req.Header.Set(middleware.HeaderAgentID, uuid.New().String())
	req.Header.Set(middleware.HeaderAgentName, "planner")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestReceiveTracesRequiresScope(t *testing.T) {
	app := newTestApp(t, new(MockMessageRepository), new(MockLlmCallRepository))

	req := httptest.NewRequest("POST", "/v1/traces", bytes.NewReader(traceBody(t)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
