package llm

// ModelPrice holds per-token USD prices for one model.
type ModelPrice struct {
	InputPerToken  float64
	OutputPerToken float64
}

// Cost computes the USD cost of one call under this price.
func (p ModelPrice) Cost(usage TokenUsage) float64 {
	return float64(usage.InputTokens)*p.InputPerToken + float64(usage.OutputTokens)*p.OutputPerToken
}

// defaultPrice is used for models missing from the table. It matches the
// Sonnet tier so unknown models are priced conservatively rather than free.
var defaultPrice = ModelPrice{
	InputPerToken:  0.003 / 1000, // $3 per MTok
	OutputPerToken: 0.015 / 1000, // $15 per MTok
}

// priceTable maps model identifiers to fixed per-token prices.
// Check the provider pricing pages when adding entries.
var priceTable = map[string]ModelPrice{
	"claude-sonnet-4-20250514": {InputPerToken: 0.003 / 1000, OutputPerToken: 0.015 / 1000},
	"claude-opus-4-20250514":   {InputPerToken: 0.015 / 1000, OutputPerToken: 0.075 / 1000},
	"claude-3-5-haiku-latest":  {InputPerToken: 0.0008 / 1000, OutputPerToken: 0.004 / 1000},
	"gpt-4o":                   {InputPerToken: 0.0025 / 1000, OutputPerToken: 0.01 / 1000},
	"gpt-4o-mini":              {InputPerToken: 0.00015 / 1000, OutputPerToken: 0.0006 / 1000},
}

// PriceFor returns the per-token price for a model, falling back to the
// default tier for unknown models.
func PriceFor(model string) ModelPrice {
	if p, ok := priceTable[model]; ok {
		return p
	}
	return defaultPrice
}
