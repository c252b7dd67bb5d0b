package domain

import "github.com/google/uuid"

// AgentMessage is one row per top-level agent turn.
//
// Token, cost, model and routing-tier fields may be mutated exactly once
// after insert by the post-batch rollup when child llm_call data exists;
// everything else is immutable.
type AgentMessage struct {
	ID                  uuid.UUID `json:"id"`
	TenantID            uuid.UUID `json:"tenantId"`
	AgentID             uuid.UUID `json:"agentId"`
	UserID              string    `json:"userId"`
	TraceID             string    `json:"traceId"`
	SessionID           string    `json:"sessionId,omitempty"`
	StartTime           string    `json:"startTime"`
	DurationMs          int64     `json:"durationMs"`
	InputTokens         int64     `json:"inputTokens"`
	OutputTokens        int64     `json:"outputTokens"`
	CacheReadTokens     int64     `json:"cacheReadTokens"`
	CacheCreationTokens int64     `json:"cacheCreationTokens"`
	Cost                *float64  `json:"cost"` // nil when no pricing resolved, never zero by default
	Status              string    `json:"status"`
	ErrorMessage        string    `json:"errorMessage,omitempty"`
	Description         string    `json:"description,omitempty"`
	ServiceType         string    `json:"serviceType,omitempty"`
	AgentName           string    `json:"agentName"`
	Model               *string   `json:"model"`
	RoutingTier         *string   `json:"routingTier"`
	RoutingReason       string    `json:"routingReason,omitempty"`
	SkillName           string    `json:"skillName,omitempty"`
}

// MessageAggregate accumulates child llm_call figures for one agent message
// during a single trace batch. It is keyed by the message's generated ID and
// discarded after the rollup pass.
type MessageAggregate struct {
	InputTokens         int64
	OutputTokens        int64
	CacheReadTokens     int64
	CacheCreationTokens int64
	Model               string // first-seen child model
	RoutingTier         string // first-seen routing tier
}

// MessageRollup is the update applied to an agent message after a batch.
// Tokens are set unconditionally; model and tier only fill unset columns;
// cost replaces the stored value (nil clears nothing, it stores NULL).
type MessageRollup struct {
	MessageID           uuid.UUID
	InputTokens         int64
	OutputTokens        int64
	CacheReadTokens     int64
	CacheCreationTokens int64
	Model               string
	RoutingTier         string
	Cost                *float64
}
