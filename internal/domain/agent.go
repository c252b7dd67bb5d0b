package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant maps a tenant name to its owning user. The analytics scoping
// filter resolves tenant membership through this table.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Agent is the registry row for one instrumented agent.
type Agent struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenantId"`
	UserID      string     `json:"userId"`
	Name        string     `json:"name"`
	ServiceType string     `json:"serviceType,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastSeenAt  *time.Time `json:"lastSeenAt,omitempty"`
}

// NotificationRule is an alerting rule carrying a denormalized agent name;
// it participates in the agent rename transaction.
type NotificationRule struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenantId"`
	AgentName string    `json:"agentName"`
	Kind      string    `json:"kind"`
	Threshold float64   `json:"threshold"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationLog records a fired rule; also carries a denormalized agent name.
type NotificationLog struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenantId"`
	AgentName string    `json:"agentName"`
	RuleID    uuid.UUID `json:"ruleId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// ModelPrice is a per-token price pair for one model.
type ModelPrice struct {
	Model               string  `json:"model"`
	InputPricePerToken  float64 `json:"inputPricePerToken"`
	OutputPricePerToken float64 `json:"outputPricePerToken"`
}
