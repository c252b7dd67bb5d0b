package domain

import "github.com/google/uuid"

// IngestionContext identifies the tenant/agent scope of one ingest call.
// It is attached by the upstream authentication layer and is immutable for
// the duration of the call; record scope columns are always copied from it,
// never derived from span content.
type IngestionContext struct {
	TenantID  uuid.UUID
	AgentID   uuid.UUID
	AgentName string
	UserID    string
}

// QueryContext identifies the caller of an analytics query.
type QueryContext struct {
	UserID    string
	AgentName string // optional narrowing filter, empty means all agents
}
