// Package repository contains data access implementations for agentscope.
//
// Repositories provide persistence operations for domain entities. All
// telemetry and registry tables live in PostgreSQL; the agent rename
// operation spans several of them inside one transaction, which is why no
// table is split out to a secondary store.
//
// # Architecture
//
// Repository interfaces are defined at the service layer (consumer-defined
// interfaces); this package holds the concrete implementations.
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use. Connection
// pools are managed at the database layer.
package repository
