// Package provider defines the transport-agnostic LLM provider contract the
// session engine depends on, plus adapters for Anthropic and OpenAI.
//
// Each provider turn is a complete request/response: the engine sends the
// full message history with the available tools and receives one assistant
// message with its token usage and stop reason. Streaming token deltas are
// deliberately not part of the contract.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// ErrUnknownProvider indicates an unrecognized provider type in config.
var ErrUnknownProvider = errors.New("unknown provider type")

// SendOptions tunes a single provider call.
type SendOptions struct {
	// MaxOutputTokens bounds the response length. Zero uses the default
	// of 4096.
	MaxOutputTokens int

	// Temperature overrides the provider default when non-nil.
	Temperature *float64
}

// DefaultMaxOutputTokens is used when SendOptions does not set a bound.
const DefaultMaxOutputTokens = 4096

// ModelInfo describes the active model and its pricing per 1,000 tokens.
type ModelInfo struct {
	Name             string
	MaxContextTokens int
	InputCostPer1K   float64
	OutputCostPer1K  float64
}

// LLMProvider is the transport contract consumed by the session engine.
//
// Implementations must round-trip tool_result blocks with ids matching the
// originating tool_use blocks, accept calls with no tools, and deliver the
// system message through the backend's dedicated system parameter where one
// exists. Implementations must be safe for concurrent use by independent
// sessions.
type LLMProvider interface {
	// SendMessage submits the conversation and returns one complete
	// assistant turn. Transport and parse failures surface as a
	// *ProviderError; the engine treats them as fatal for the session.
	SendMessage(ctx context.Context, messages []models.Message, tools []models.Tool, opts *SendOptions) (*models.ProviderResponse, error)

	// CalculateCost prices usage deterministically per 1,000 tokens.
	CalculateCost(usage models.Usage) float64

	// ModelInfo reports the active model and its pricing.
	ModelInfo() ModelInfo

	// Name returns the stable lowercase provider identifier.
	Name() string
}

// ProviderError wraps a transport or parse failure from an LLM backend.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("provider %s (%s): %v", e.Provider, e.Model, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Config selects and configures a provider backend.
type Config struct {
	// Type is "anthropic" or "openai".
	Type string

	// APIKey authenticates against the backend.
	APIKey string

	// Model overrides the backend's default model when set.
	Model string

	// BaseURL overrides the API endpoint (proxies, compatible servers).
	BaseURL string
}

// New constructs a provider from configuration.
func New(cfg Config) (LLMProvider, error) {
	switch cfg.Type {
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Type)
	}
}

// costFor prices usage against per-1k rates. Shared by both adapters so the
// arithmetic cannot drift between them.
func costFor(usage models.Usage, info ModelInfo) float64 {
	return float64(usage.InputTokens)/1000*info.InputCostPer1K +
		float64(usage.OutputTokens)/1000*info.OutputCostPer1K
}

// splitSystem extracts the system prompt from the message list. The engine
// keeps the system message at index 0; providers deliver it through their
// native system channel.
func splitSystem(messages []models.Message) (string, []models.Message) {
	var system string
	rest := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			if system == "" {
				system = m.Text()
			}
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
