package postgres

import (
	"fmt"

	"github.com/agentscope/agentscope/internal/domain"
)

// scopeCondition renders the tenant scoping predicate against a telemetry
// table. A row is visible when its tenant resolves to the caller's user id
// through the tenants table, or when its user_id column matches directly.
// The two arms are a union so both multi-tenant and single-user storage
// modes work. An agent-name narrowing is appended when set; telemetry
// tables carry a denormalized agent_name column for this.
func scopeCondition(f domain.ScopeFilter, args *[]any) string {
	*args = append(*args, f.UserID)
	n := len(*args)
	cond := fmt.Sprintf("(tenant_id IN (SELECT id FROM tenants WHERE user_id = $%d) OR user_id = $%d)", n, n)
	if f.AgentName != "" {
		*args = append(*args, f.AgentName)
		cond = fmt.Sprintf("%s AND agent_name = $%d", cond, len(*args))
	}
	return cond
}

// scopeConditionByAgentID is the same predicate for tables without a
// denormalized agent_name column (llm_calls, tool_executions); the agent
// narrowing resolves through the agents registry instead.
func scopeConditionByAgentID(f domain.ScopeFilter, args *[]any) string {
	*args = append(*args, f.UserID)
	n := len(*args)
	cond := fmt.Sprintf("(tenant_id IN (SELECT id FROM tenants WHERE user_id = $%d) OR user_id = $%d)", n, n)
	if f.AgentName != "" {
		*args = append(*args, f.AgentName)
		cond = fmt.Sprintf("%s AND agent_id IN (SELECT id FROM agents WHERE name = $%d)", cond, len(*args))
	}
	return cond
}

// windowCondition renders a [from, to) predicate over a stored-format
// timestamp column. Cutoffs compare lexicographically because the stored
// format is zero-padded. Empty bounds constrain nothing.
func windowCondition(col string, w domain.TimeWindow, args *[]any) string {
	cond := ""
	if w.From != "" {
		*args = append(*args, w.From)
		cond = fmt.Sprintf("%s >= $%d", col, len(*args))
	}
	if w.To != "" {
		*args = append(*args, w.To)
		if cond != "" {
			cond += " AND "
		}
		cond += fmt.Sprintf("%s < $%d", col, len(*args))
	}
	if cond == "" {
		return "TRUE"
	}
	return cond
}
