package cognitive

// modelRate is a model's USD price per input/output token, used to convert
// an SDK's token usage into the total_cost_usd the reference CognitiveBackend
// interface promises (§1 Non-goals, "third-party LLM client library").
type modelRate struct {
	inputPerToken  float64
	outputPerToken float64
}

// Rates are approximate published per-token prices (USD), keyed by model
// family prefix; the longest matching prefix wins. A model not listed falls
// back to defaultRate.
var rates = map[string]modelRate{
	"claude-opus":   {inputPerToken: 15.0 / 1_000_000, outputPerToken: 75.0 / 1_000_000},
	"claude-sonnet": {inputPerToken: 3.0 / 1_000_000, outputPerToken: 15.0 / 1_000_000},
	"claude-haiku":  {inputPerToken: 0.8 / 1_000_000, outputPerToken: 4.0 / 1_000_000},
	"gpt-4o":        {inputPerToken: 2.5 / 1_000_000, outputPerToken: 10.0 / 1_000_000},
	"gpt-4o-mini":   {inputPerToken: 0.15 / 1_000_000, outputPerToken: 0.6 / 1_000_000},
	"gemini-1.5-pro":   {inputPerToken: 1.25 / 1_000_000, outputPerToken: 5.0 / 1_000_000},
	"gemini-1.5-flash": {inputPerToken: 0.075 / 1_000_000, outputPerToken: 0.3 / 1_000_000},
}

var defaultRate = modelRate{inputPerToken: 3.0 / 1_000_000, outputPerToken: 15.0 / 1_000_000}

func rateFor(model string) modelRate {
	best, bestLen := defaultRate, 0
	for prefix, r := range rates {
		if len(prefix) > bestLen && len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			best, bestLen = r, len(prefix)
		}
	}
	return best
}

// estimateCostUSD converts token usage into a dollar figure via rateFor.
func estimateCostUSD(model string, inputTokens, outputTokens int) float64 {
	r := rateFor(model)
	return float64(inputTokens)*r.inputPerToken + float64(outputTokens)*r.outputPerToken
}
