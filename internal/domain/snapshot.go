package domain

import "github.com/google/uuid"

// TokenUsageSnapshot is an independent time-series row produced by the
// metric ingest pipeline from gen_ai.usage.* data points. Not linked to spans.
type TokenUsageSnapshot struct {
	ID                  uuid.UUID `json:"id"`
	TenantID            uuid.UUID `json:"tenantId"`
	AgentID             uuid.UUID `json:"agentId"`
	UserID              string    `json:"userId"`
	AgentName           string    `json:"agentName"`
	InputTokens         int64     `json:"inputTokens"`
	OutputTokens        int64     `json:"outputTokens"`
	TotalTokens         int64     `json:"totalTokens"`
	CacheReadTokens     int64     `json:"cacheReadTokens"`
	CacheCreationTokens int64     `json:"cacheCreationTokens"`
	Timestamp           string    `json:"timestamp"`
}

// CostSnapshot is an independent time-series row produced from
// gen_ai.usage.cost / gen_ai.cost.usd data points.
type CostSnapshot struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenantId"`
	AgentID   uuid.UUID `json:"agentId"`
	UserID    string    `json:"userId"`
	AgentName string    `json:"agentName"`
	Model     string    `json:"model"`
	Amount    float64   `json:"amount"`
	Timestamp string    `json:"timestamp"`
}
