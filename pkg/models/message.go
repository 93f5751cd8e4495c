package models

import "encoding/json"

// Role indicates the message author type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType discriminates content block variants.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one element of a structured message body. Exactly one
// variant is populated, selected by Type. Ordering of blocks inside a
// message is semantically meaningful: tool results must appear in the same
// order as the tool calls they answer.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// Text content (Type == BlockText).
	Text string `json:"text,omitempty"`

	// Tool invocation (Type == BlockToolUse).
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// Tool result (Type == BlockToolResult).
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUseBlock builds a tool_use content block.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock builds a tool_result content block answering the tool_use
// with the given id.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// Message is a single conversation entry. Content holds flat text; Blocks
// holds structured content. A message carries one or the other, never both.
type Message struct {
	Role    Role           `json:"role"`
	Content string         `json:"content,omitempty"`
	Blocks  []ContentBlock `json:"blocks,omitempty"`
}

// TextMessage builds a flat-text message.
func TextMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// BlockMessage builds a structured message from content blocks.
func BlockMessage(role Role, blocks ...ContentBlock) Message {
	return Message{Role: role, Blocks: blocks}
}

// ToolUses returns the tool_use blocks of the message in declared order.
func (m Message) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, b := range m.Blocks {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

// Text concatenates the message's text content: the flat Content if set,
// otherwise every text block in order.
func (m Message) Text() string {
	if m.Content != "" {
		return m.Content
	}
	var out string
	for _, b := range m.Blocks {
		if b.Type == BlockText {
			if out != "" {
				out += "\n"
			}
			out += b.Text
		}
	}
	return out
}

// ToolCall is an LLM request to execute a tool, decoded from a tool_use
// block. ID uniquely identifies the call within a provider turn.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the uniform outcome of a tool dispatch. Exceptions from
// internal operations are converted into Success=false results; the LLM
// never sees raw errors.
type ToolResult struct {
	Success  bool           `json:"success"`
	Content  string         `json:"content,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Output returns the string delivered to the LLM as the tool_result content.
func (r ToolResult) Output() string {
	if r.Success {
		return r.Content
	}
	if r.Error != "" {
		return "Error: " + r.Error
	}
	return "Error: tool execution failed"
}

// Tool declares a capability exposed to the LLM: a unique name, a human
// description, and a JSON schema for its inputs. Semantic validation beyond
// the schema is the executor's responsibility.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// StopReason reports why a provider turn ended.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
	StopToolUse      StopReason = "tool_use"
)

// Usage is the token consumption of a single provider turn.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ProviderResponse is one complete assistant turn. StopToolUse means at
// least one tool_use block is present and must be serviced before the
// conversation can continue.
type ProviderResponse struct {
	Message    Message    `json:"message"`
	Usage      Usage      `json:"usage"`
	StopReason StopReason `json:"stop_reason"`
}
