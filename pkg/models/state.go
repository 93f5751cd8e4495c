package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SessionStatus is the lifecycle state of a one-shot session.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusRunning   SessionStatus = "running"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// ConversationalStatus is the lifecycle state of a conversational session.
type ConversationalStatus string

const (
	ConvIdle             ConversationalStatus = "idle"
	ConvProcessing       ConversationalStatus = "processing"
	ConvWaitingForAnswer ConversationalStatus = "waiting_for_answer"
	ConvEnded            ConversationalStatus = "ended"
	ConvError            ConversationalStatus = "error"
)

// PendingQuestion is the question a paused session is waiting on.
type PendingQuestion struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
}

// SessionOptions configures a session at creation time.
type SessionOptions struct {
	// CostLimit caps total session cost in USD. Zero means no limit.
	CostLimit float64 `json:"cost_limit,omitempty"`

	// AutoSave snapshots session state to storage after every provider
	// turn and on terminal transitions.
	AutoSave bool `json:"auto_save,omitempty"`

	// Context carries arbitrary host data. Sub-agent sessions inherit the
	// parent's context augmented with parent_session_id and is_sub_agent.
	Context map[string]any `json:"context,omitempty"`

	// MaxOutputTokens bounds each provider turn. Zero uses the provider
	// default (4096).
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`
}

// SessionState is the serialized form of a session, suitable for crash
// recovery. Serialize → persist → load → deserialize must round-trip
// byte-identically.
type SessionState struct {
	ID                string             `json:"id"`
	AgentID           string             `json:"agent_id"`
	Command           string             `json:"command"`
	Status            SessionStatus      `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	StartedAt         *time.Time         `json:"started_at,omitempty"`
	PausedAt          *time.Time         `json:"paused_at,omitempty"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
	Messages          []Message          `json:"messages"`
	VFSFiles          map[string]string  `json:"vfs_files"`
	TotalInputTokens  int                `json:"total_input_tokens"`
	TotalOutputTokens int                `json:"total_output_tokens"`
	TotalCost         float64            `json:"total_cost"`
	APICallCount      int                `json:"api_call_count"`
	ChildSessionCosts []ChildSessionCost `json:"child_session_costs"`
	PendingQuestion   *PendingQuestion   `json:"pending_question,omitempty"`
	Options           SessionOptions     `json:"options"`
	ProviderType      string             `json:"provider_type"`
	ModelName         string             `json:"model_name,omitempty"`
}

// EncodeSessionState renders a state as its canonical JSON wire form.
// Encoding the same state twice yields identical bytes.
func EncodeSessionState(s *SessionState) ([]byte, error) {
	encoded, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session state: %w", err)
	}
	return encoded, nil
}

// DecodeSessionState parses the JSON wire form back into a state.
func DecodeSessionState(data []byte) (*SessionState, error) {
	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	return &state, nil
}

// SessionResult is returned by every session execution, success or failure.
type SessionResult struct {
	SessionID     string        `json:"session_id"`
	Status        SessionStatus `json:"status"`
	FinalResponse string        `json:"final_response,omitempty"`
	Documents     []Document    `json:"documents"`
	Costs         CostReport    `json:"costs"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
	DocumentURLs  []string      `json:"document_urls,omitempty"`
}

// TurnRecord captures one conversational exchange.
type TurnRecord struct {
	ID            string    `json:"id"`
	UserMessage   string    `json:"user_message"`
	AgentResponse string    `json:"agent_response"`
	ToolCalls     []string  `json:"tool_calls,omitempty"`
	TokensUsed    int       `json:"tokens_used"`
	Cost          float64   `json:"cost"`
	Timestamp     time.Time `json:"timestamp"`
}

// ConversationResult summarizes an ended conversational session.
type ConversationResult struct {
	SessionID string        `json:"session_id"`
	Turns     []TurnRecord  `json:"turns"`
	Documents []Document    `json:"documents"`
	Costs     CostReport    `json:"costs"`
	Duration  time.Duration `json:"duration"`
}
