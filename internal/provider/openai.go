package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/draftsmith-ai/draftsmith/pkg/models"
)

// OpenAIProvider implements LLMProvider on OpenAI's chat completions API.
//
// OpenAI has no dedicated system parameter; the system prompt becomes the
// first chat message. Tool results become role "tool" messages, one per
// result, linked by tool_call_id.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates an OpenAI-backed provider.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Name returns "openai".
func (p *OpenAIProvider) Name() string { return "openai" }

// ModelInfo reports the configured model and its per-1k pricing.
func (p *OpenAIProvider) ModelInfo() ModelInfo {
	pricing := lookupPricing(openaiPricing, p.model, defaultOpenAIModel)
	return ModelInfo{
		Name:             p.model,
		MaxContextTokens: pricing.maxContextTokens,
		InputCostPer1K:   pricing.inputPer1K,
		OutputCostPer1K:  pricing.outputPer1K,
	}
}

// CalculateCost prices usage for the configured model.
func (p *OpenAIProvider) CalculateCost(usage models.Usage) float64 {
	return costFor(usage, p.ModelInfo())
}

// SendMessage submits the conversation and returns one complete turn.
func (p *OpenAIProvider) SendMessage(ctx context.Context, messages []models.Message, tools []models.Tool, opts *SendOptions) (*models.ProviderResponse, error) {
	system, rest := splitSystem(messages)

	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: convertOpenAIMessages(system, rest),
	}
	maxTokens := DefaultMaxOutputTokens
	if opts != nil && opts.MaxOutputTokens > 0 {
		maxTokens = opts.MaxOutputTokens
	}
	req.MaxTokens = maxTokens
	if opts != nil && opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
	}
	if len(tools) > 0 {
		req.Tools = convertOpenAITools(tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Model: p.model, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Model: p.model, Err: errors.New("empty choices in response")}
	}

	return p.convertResponse(resp)
}

func (p *OpenAIProvider) convertResponse(resp openai.ChatCompletionResponse) (*models.ProviderResponse, error) {
	choice := resp.Choices[0]

	var blocks []models.ContentBlock
	if choice.Message.Content != "" {
		blocks = append(blocks, models.TextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		input := json.RawMessage(tc.Function.Arguments)
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		blocks = append(blocks, models.ToolUseBlock(tc.ID, tc.Function.Name, input))
	}

	stop, err := convertFinishReason(choice.FinishReason)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), Model: p.model, Err: err}
	}

	return &models.ProviderResponse{
		Message: models.BlockMessage(models.RoleAssistant, blocks...),
		Usage: models.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		StopReason: stop,
	}, nil
}

func convertFinishReason(reason openai.FinishReason) (models.StopReason, error) {
	switch reason {
	case openai.FinishReasonStop:
		return models.StopEndTurn, nil
	case openai.FinishReasonLength:
		return models.StopMaxTokens, nil
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return models.StopToolUse, nil
	default:
		return "", fmt.Errorf("unexpected finish reason %q", reason)
	}
}

func convertOpenAIMessages(system string, messages []models.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Text(),
			}
			for _, block := range msg.Blocks {
				if block.Type != models.BlockToolUse {
					continue
				}
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   block.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      block.Name,
						Arguments: string(block.Input),
					},
				})
			}
			result = append(result, oaiMsg)

		default:
			// Tool results become individual role "tool" messages; any
			// remaining text becomes a plain user message.
			hasResults := false
			for _, block := range msg.Blocks {
				if block.Type != models.BlockToolResult {
					continue
				}
				hasResults = true
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    block.Content,
					ToolCallID: block.ToolUseID,
				})
			}
			if text := msg.Text(); text != "" || !hasResults {
				result = append(result, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleUser,
					Content: text,
				})
			}
		}
	}
	return result
}

func convertOpenAITools(tools []models.Tool) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schema map[string]any
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schema,
			},
		}
	}
	return result
}
