package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// AnthropicProvider implements LLMProvider on Anthropic's Messages API.
//
// The adapter converts between the runtime's content-block message model and
// the SDK's message params: the system message travels in the dedicated
// System parameter, tool_use and tool_result blocks are mapped one-to-one,
// and ids round-trip untouched.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates an Anthropic-backed provider.
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(options...),
		model:  model,
	}, nil
}

// Name returns "anthropic".
func (p *AnthropicProvider) Name() string { return "anthropic" }

// ModelInfo reports the configured model and its per-1k pricing.
func (p *AnthropicProvider) ModelInfo() ModelInfo {
	pricing := lookupPricing(anthropicPricing, p.model, defaultAnthropicModel)
	return ModelInfo{
		Name:             p.model,
		MaxContextTokens: pricing.maxContextTokens,
		InputCostPer1K:   pricing.inputPer1K,
		OutputCostPer1K:  pricing.outputPer1K,
	}
}

// CalculateCost prices usage for the configured model.
func (p *AnthropicProvider) CalculateCost(usage models.Usage) float64 {
	return costFor(usage, p.ModelInfo())
}

// SendMessage submits the conversation and returns one complete turn.
func (p *AnthropicProvider) SendMessage(ctx context.Context, messages []models.Message, tools []models.Tool, opts *SendOptions) (*models.ProviderResponse, error) {
	system, rest := splitSystem(messages)

	converted, err := convertAnthropicMessages(rest)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Model: p.model, Err: err}
	}

	maxTokens := DefaultMaxOutputTokens
	if opts != nil && opts.MaxOutputTokens > 0 {
		maxTokens = opts.MaxOutputTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  converted,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts != nil && opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}
	if len(tools) > 0 {
		sdkTools, err := convertAnthropicTools(tools)
		if err != nil {
			return nil, &ProviderError{Provider: p.Name(), Model: p.model, Err: err}
		}
		params.Tools = sdkTools
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Model: p.model, Err: err}
	}

	return p.convertResponse(message)
}

func (p *AnthropicProvider) convertResponse(message *anthropic.Message) (*models.ProviderResponse, error) {
	var blocks []models.ContentBlock
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			blocks = append(blocks, models.TextBlock(block.Text))
		case "tool_use":
			input := json.RawMessage(block.Input)
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			blocks = append(blocks, models.ToolUseBlock(block.ID, block.Name, input))
		}
	}

	stop, err := convertStopReason(message.StopReason)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Model: p.model, Err: err}
	}

	return &models.ProviderResponse{
		Message: models.BlockMessage(models.RoleAssistant, blocks...),
		Usage: models.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		},
		StopReason: stop,
	}, nil
}

func convertStopReason(reason anthropic.StopReason) (models.StopReason, error) {
	switch reason {
	case anthropic.StopReasonEndTurn:
		return models.StopEndTurn, nil
	case anthropic.StopReasonMaxTokens:
		return models.StopMaxTokens, nil
	case anthropic.StopReasonStopSequence:
		return models.StopStopSequence, nil
	case anthropic.StopReasonToolUse:
		return models.StopToolUse, nil
	default:
		return "", fmt.Errorf("unexpected stop reason %q", reason)
	}
}

func convertAnthropicMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion

		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, block := range msg.Blocks {
			switch block.Type {
			case models.BlockText:
				content = append(content, anthropic.NewTextBlock(block.Text))
			case models.BlockToolUse:
				var input map[string]any
				if err := json.Unmarshal(block.Input, &input); err != nil {
					return nil, fmt.Errorf("invalid tool_use input for %s: %w", block.Name, err)
				}
				content = append(content, anthropic.NewToolUseBlock(block.ID, input, block.Name))
			case models.BlockToolResult:
				content = append(content, anthropic.NewToolResultBlock(block.ToolUseID, block.Content, block.IsError))
			}
		}
		if len(content) == 0 {
			continue
		}

		if msg.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func convertAnthropicTools(tools []models.Tool) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("invalid schema for tool %s: %w", tool.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid schema for tool %s", tool.Name)
		}
		param.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, param)
	}
	return result, nil
}
