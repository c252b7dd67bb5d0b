package domain

import "github.com/google/uuid"

// ToolExecution is one row per tool span. Immutable after insert.
type ToolExecution struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenantId"`
	AgentID      uuid.UUID  `json:"agentId"`
	UserID       string     `json:"userId"`
	LlmCallID    *uuid.UUID `json:"llmCallId"` // nil unless the parent span is an llm call in the same batch
	ToolName     string     `json:"toolName"`
	DurationMs   int64      `json:"durationMs"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	Timestamp    string     `json:"timestamp"`
}
