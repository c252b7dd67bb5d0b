package domain

import "github.com/google/uuid"

// LlmCall is one row per model-invocation span. Immutable after insert.
type LlmCall struct {
	ID                  uuid.UUID  `json:"id"`
	TenantID            uuid.UUID  `json:"tenantId"`
	AgentID             uuid.UUID  `json:"agentId"`
	UserID              string     `json:"userId"`
	MessageID           *uuid.UUID `json:"messageId"` // nil unless the parent span is an agent message in the same batch
	System              string     `json:"system"`
	RequestModel        string     `json:"requestModel"`
	ResponseModel       string     `json:"responseModel"`
	InputTokens         int64      `json:"inputTokens"`
	OutputTokens        int64      `json:"outputTokens"`
	CacheReadTokens     int64      `json:"cacheReadTokens"`
	CacheCreationTokens int64      `json:"cacheCreationTokens"`
	DurationMs          int64      `json:"durationMs"`
	TimeToFirstTokenMs  *int64     `json:"timeToFirstTokenMs"`
	Temperature         *float64   `json:"temperature"`
	MaxTokens           *int64     `json:"maxTokens"`
	Timestamp           string     `json:"timestamp"`
}

// Model returns the model name used for pricing: the response model when
// reported, the request model otherwise.
func (c *LlmCall) Model() string {
	if c.ResponseModel != "" {
		return c.ResponseModel
	}
	return c.RequestModel
}
