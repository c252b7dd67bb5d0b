package otelcodec

import (
	"github.com/google/uuid"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/agentscope/agentscope/internal/domain"
	"github.com/agentscope/agentscope/internal/pkg/id"
)

// SpanIdentity is the database identity assigned to one span in a batch.
type SpanIdentity struct {
	ID   uuid.UUID
	Kind domain.RecordKind
}

// ClassifiedSpan pairs a raw span with its merged attributes and assigned
// identity, in batch arrival order.
type ClassifiedSpan struct {
	Span     *tracepb.Span
	Attrs    map[string]any
	Identity SpanIdentity
}

// Classify assigns a record kind from merged attributes. The presence of
// gen_ai.system wins over tool.name when both are set; spans matching
// neither are agent messages.
func Classify(attrs map[string]any) domain.RecordKind {
	if _, ok := attrs[AttrGenAISystem]; ok {
		return domain.KindLlmCall
	}
	if _, ok := attrs[AttrToolName]; ok {
		return domain.KindToolExecution
	}
	return domain.KindAgentMessage
}

// ClassifyBatch flattens the resource/scope/span nesting of an export
// request, merges resource and span attributes (span wins), classifies
// every span and assigns each a fresh record ID. The returned identity map
// is keyed by hex span ID and covers the whole batch, so parents can be
// resolved before any row is written. Spans with an empty span ID are still
// classified but never registered as parents.
func ClassifyBatch(req *coltracepb.ExportTraceServiceRequest) ([]ClassifiedSpan, map[string]SpanIdentity) {
	var spans []ClassifiedSpan
	identities := make(map[string]SpanIdentity)
	for _, rs := range req.GetResourceSpans() {
		resAttrs := ExtractAttributes(rs.GetResource().GetAttributes())
		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				if span == nil {
					continue
				}
				attrs := MergeAttributes(resAttrs, ExtractAttributes(span.Attributes))
				ident := SpanIdentity{ID: id.NewUUID(), Kind: Classify(attrs)}
				if hexID := IDHex(span.SpanId); hexID != "" {
					identities[hexID] = ident
				}
				spans = append(spans, ClassifiedSpan{Span: span, Attrs: attrs, Identity: ident})
			}
		}
	}
	return spans, identities
}

// ResolveParent looks up the parent span's assigned ID, but only when the
// parent was classified as the wanted kind. A missing parent or a kind
// mismatch resolves to nil; the child row keeps a null link rather than
// failing.
func ResolveParent(identities map[string]SpanIdentity, parentSpanID []byte, want domain.RecordKind) *uuid.UUID {
	hexID := IDHex(parentSpanID)
	if hexID == "" {
		return nil
	}
	ident, ok := identities[hexID]
	if !ok || ident.Kind != want {
		return nil
	}
	parentID := ident.ID
	return &parentID
}
