package provider

// modelPricing holds context size and per-1k token rates for a known model.
type modelPricing struct {
	maxContextTokens int
	inputPer1K       float64
	outputPer1K      float64
}

// Pricing tables, USD per 1,000 tokens. Unknown models fall back to the
// provider's default model rates.
var anthropicPricing = map[string]modelPricing{
	"claude-sonnet-4-20250514":   {200000, 0.003, 0.015},
	"claude-opus-4-20250514":     {200000, 0.015, 0.075},
	"claude-3-5-sonnet-20241022": {200000, 0.003, 0.015},
	"claude-3-5-haiku-20241022":  {200000, 0.0008, 0.004},
	"claude-3-opus-20240229":     {200000, 0.015, 0.075},
	"claude-3-haiku-20240307":    {200000, 0.00025, 0.00125},
}

var openaiPricing = map[string]modelPricing{
	"gpt-4o":        {128000, 0.0025, 0.01},
	"gpt-4o-mini":   {128000, 0.00015, 0.0006},
	"gpt-4-turbo":   {128000, 0.01, 0.03},
	"gpt-4":         {8192, 0.03, 0.06},
	"gpt-3.5-turbo": {16385, 0.0005, 0.0015},
}

const (
	defaultAnthropicModel = "claude-sonnet-4-20250514"
	defaultOpenAIModel    = "gpt-4o"
)

func lookupPricing(table map[string]modelPricing, model, fallback string) modelPricing {
	if p, ok := table[model]; ok {
		return p
	}
	return table[fallback]
}
