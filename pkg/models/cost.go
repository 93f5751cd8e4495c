package models

// ModelCost is the per-model slice of a session's cost breakdown. Costs are
// priced per 1,000 tokens.
type ModelCost struct {
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	InputCost    float64 `json:"input_cost"`
	OutputCost   float64 `json:"output_cost"`
}

// ChildSessionCost records the accounting contribution of one sub-agent
// session, credited into the parent when the child completes.
type ChildSessionCost struct {
	SessionID    string  `json:"session_id"`
	Agent        string  `json:"agent"`
	Command      string  `json:"command"`
	TotalCost    float64 `json:"total_cost"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	APICalls     int     `json:"api_calls"`
}

// CostReport is the full cost accounting of a session, including any
// sub-agent sessions it invoked. TotalCost is the sum of the breakdown
// costs plus every child's TotalCost.
type CostReport struct {
	TotalCost     float64            `json:"total_cost"`
	Currency      string             `json:"currency"`
	InputTokens   int                `json:"input_tokens"`
	OutputTokens  int                `json:"output_tokens"`
	APICalls      int                `json:"api_calls"`
	Breakdown     []ModelCost        `json:"breakdown"`
	ChildSessions []ChildSessionCost `json:"child_sessions,omitempty"`
}
