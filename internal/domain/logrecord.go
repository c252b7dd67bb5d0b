package domain

import "github.com/google/uuid"

// AgentLog is one row per ingested log record.
type AgentLog struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenantId"`
	AgentID    uuid.UUID `json:"agentId"`
	UserID     string    `json:"userId"`
	AgentName  string    `json:"agentName"`
	Severity   string    `json:"severity"`
	Body       string    `json:"body"`
	Attributes string    `json:"attributes,omitempty"` // flattened attribute map, JSON-serialized
	Timestamp  string    `json:"timestamp"`
}
