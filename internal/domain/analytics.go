package domain

// SummaryPoint is a windowed total with its trend against the previous
// window, as a rounded percentage clamped to [-999, 999].
type SummaryPoint struct {
	Value    float64 `json:"value"`
	TrendPct int     `json:"trend_pct"`
}

// MessagePage is one keyset-paginated page of message search results.
// NextCursor is nil on the last page. TotalCount and Models cover the whole
// filtered window, not just this page.
type MessagePage struct {
	Messages   []AgentMessage `json:"messages"`
	TotalCount int64          `json:"total_count"`
	Models     []string       `json:"models"`
	NextCursor *string        `json:"next_cursor"`
}

// SeriesPoint is one bucket of a time series. Bucket keys are stable and
// sortable: "YYYY-MM-DDTHH:00" for hourly series, "YYYY-MM-DD" for daily.
type SeriesPoint struct {
	Bucket   string  `json:"bucket"`
	Tokens   int64   `json:"tokens"`
	Cost     float64 `json:"cost"`
	Messages int64   `json:"messages"`
}

// ModelUsage is one model's share of a window.
type ModelUsage struct {
	Model    string  `json:"model"`
	Tokens   int64   `json:"tokens"`
	Cost     float64 `json:"cost"`
	Calls    int64   `json:"calls"`
	SharePct float64 `json:"share_pct"` // token share of the window total, one decimal
}

// AgentActivity is one agent's roster entry.
type AgentActivity struct {
	AgentName    string  `json:"agent_name"`
	ServiceType  string  `json:"service_type,omitempty"`
	MessageCount int64   `json:"message_count"`
	LastActive   string  `json:"last_active,omitempty"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
	Sparkline    []int64 `json:"sparkline"` // fixed-length hourly token buckets
}

// SkillActivity is one skill's message count over a window.
type SkillActivity struct {
	SkillName    string `json:"skill_name"`
	MessageCount int64  `json:"message_count"`
}

// UsageOverview bundles the windowed summaries returned together by the
// analytics surface.
type UsageOverview struct {
	Tokens    SummaryPoint `json:"tokens"`
	Cost      SummaryPoint `json:"cost"`
	Messages  SummaryPoint `json:"messages"`
	ErrorRate SummaryPoint `json:"error_rate"`
	RiskScore int          `json:"risk_score"`
}
