// Package otelcodec decodes OTLP wire values into the forms the ingest
// pipelines persist: flat attribute maps, stored-format timestamps, and
// normalized status/severity strings.
package otelcodec

import (
	"encoding/hex"
	"strconv"
	"time"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/agentscope/agentscope/internal/domain"
)

// Standard OpenTelemetry semantic conventions for LLM observability,
// plus the agentscope custom namespace.
const (
	AttrGenAISystem          = "gen_ai.system"
	AttrGenAIRequestModel    = "gen_ai.request.model"
	AttrGenAIResponseModel   = "gen_ai.response.model"
	AttrGenAIInputTokens     = "gen_ai.usage.input_tokens"
	AttrGenAIOutputTokens    = "gen_ai.usage.output_tokens"
	AttrGenAICacheReadTokens = "gen_ai.usage.cache_read_tokens"
	AttrGenAICacheCreation   = "gen_ai.usage.cache_creation_tokens"
	AttrGenAITemperature     = "gen_ai.request.temperature"
	AttrGenAIMaxTokens       = "gen_ai.request.max_tokens"
	AttrGenAITTFT            = "gen_ai.server.time_to_first_token"

	AttrToolName = "tool.name"

	AttrServiceName = "service.name"

	AttrSessionID     = "agentscope.session.id"
	AttrDescription   = "agentscope.description"
	AttrServiceType   = "agentscope.service.type"
	AttrRoutingTier   = "agentscope.routing.tier"
	AttrRoutingReason = "agentscope.routing.reason"
	AttrSkillName     = "agentscope.skill.name"
)

// ExtractAttributes flattens an OTLP key-value list into a map, resolving
// exactly one variant per key: string, integer, double or boolean. Array,
// kvlist and bytes values are silently dropped; a bad attribute never fails
// the batch.
func ExtractAttributes(kvs []*commonpb.KeyValue) map[string]any {
	attrs := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		if kv == nil || kv.Value == nil {
			continue
		}
		switch v := kv.Value.Value.(type) {
		case *commonpb.AnyValue_StringValue:
			attrs[kv.Key] = v.StringValue
		case *commonpb.AnyValue_IntValue:
			attrs[kv.Key] = v.IntValue
		case *commonpb.AnyValue_DoubleValue:
			attrs[kv.Key] = v.DoubleValue
		case *commonpb.AnyValue_BoolValue:
			attrs[kv.Key] = v.BoolValue
		}
	}
	return attrs
}

// MergeAttributes overlays span-level attributes onto resource-level ones;
// span-level wins on key collisions.
func MergeAttributes(resource, span map[string]any) map[string]any {
	merged := make(map[string]any, len(resource)+len(span))
	for k, v := range resource {
		merged[k] = v
	}
	for k, v := range span {
		merged[k] = v
	}
	return merged
}

// NanoToDatetime converts a nanosecond epoch to the stored timestamp
// format (integer division to milliseconds, then local formatting).
func NanoToDatetime(nanos uint64) string {
	return domain.FormatTime(time.UnixMilli(int64(nanos / 1_000_000)))
}

// NanoStringToDatetime converts a decimal nanosecond epoch string.
// Unparseable input falls back to the current time rather than erroring.
func NanoStringToDatetime(s string) string {
	nanos, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return domain.FormatTime(time.Now())
	}
	return NanoToDatetime(nanos)
}

// SpanDurationMs computes the span duration in whole milliseconds.
// Well-formed input never yields a negative value; malformed input clamps
// to zero.
func SpanDurationMs(startNano, endNano uint64) int64 {
	if endNano < startNano {
		return 0
	}
	return int64((endNano - startNano) / 1_000_000)
}

// StatusToString maps an OTLP span status to the stored status string:
// code 2 (error) maps to "error", anything else, including an absent
// status, maps to "ok".
func StatusToString(st *tracepb.Status) string {
	if st != nil && st.Code == tracepb.Status_STATUS_CODE_ERROR {
		return domain.StatusError
	}
	return domain.StatusOK
}

// SeverityToString maps an OTLP severity number to a stored severity band.
func SeverityToString(n int32) string {
	switch {
	case n <= 0:
		return domain.SeverityUnspecified
	case n <= 4:
		return domain.SeverityTrace
	case n <= 8:
		return domain.SeverityDebug
	case n <= 12:
		return domain.SeverityInfo
	case n <= 16:
		return domain.SeverityWarn
	case n <= 20:
		return domain.SeverityError
	default:
		return domain.SeverityFatal
	}
}

// IDHex renders a raw trace or span ID as lowercase hex. Empty input
// renders as the empty string, never an error.
func IDHex(b []byte) string {
	return hex.EncodeToString(b)
}

// AttrString reads a string attribute, returning "" when absent or not a
// string.
func AttrString(attrs map[string]any, key string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}

// AttrInt reads a numeric attribute as int64, accepting integer and double
// variants.
func AttrInt(attrs map[string]any, key string) int64 {
	switch v := attrs[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

// AttrFloat reads a numeric attribute as float64, accepting integer and
// double variants. The second return reports presence.
func AttrFloat(attrs map[string]any, key string) (float64, bool) {
	switch v := attrs[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}
