package domain

// ScopeFilter restricts analytics queries to rows the caller may see:
// rows whose tenant resolves (by tenant-name lookup) to the caller's user
// id, or whose user_id column equals the caller's id directly. The two
// arms are a union, supporting both multi-tenant and single-user storage
// modes. An optional agent-name equality filter narrows further.
//
// The filter is an immutable value assembled once per query; repositories
// render it into SQL.
type ScopeFilter struct {
	UserID    string
	AgentName string // empty means no agent narrowing
}

// WithAgent returns a copy narrowed to one agent name.
func (f ScopeFilter) WithAgent(name string) ScopeFilter {
	f.AgentName = name
	return f
}

// TimeWindow is a [From, To) window over stored timestamps. Cutoffs are
// pre-formatted strings so comparisons stay lexicographic.
type TimeWindow struct {
	From string
	To   string
}

// MessageSearchFilter is the immutable predicate value for message search.
// Zero-valued fields do not constrain the query.
type MessageSearchFilter struct {
	Scope       ScopeFilter
	Window      TimeWindow
	Status      string
	ServiceType string
	Model       string
	CostMin     *float64
	CostMax     *float64
}
