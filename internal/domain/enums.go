package domain

// RecordKind classifies a span into the table family it lands in.
type RecordKind string

const (
	// KindAgentMessage is a top-level agent turn (the default classification).
	KindAgentMessage RecordKind = "agent_message"
	// KindLlmCall is a model-invocation span (gen_ai.system attribute present).
	KindLlmCall RecordKind = "llm_call"
	// KindToolExecution is a tool span (tool.name attribute present).
	KindToolExecution RecordKind = "tool_execution"
)

// Span status strings as stored.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Log severity strings as stored.
const (
	SeverityUnspecified = "unspecified"
	SeverityTrace       = "trace"
	SeverityDebug       = "debug"
	SeverityInfo        = "info"
	SeverityWarn        = "warn"
	SeverityError       = "error"
	SeverityFatal       = "fatal"
)
