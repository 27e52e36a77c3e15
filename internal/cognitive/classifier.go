package cognitive

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"llmos/internal/economy"
	"llmos/internal/trace"
)

// LLMClassifier implements trace.Classifier by asking the backend directly
// (bypassing Adapter, so a classification call never itself produces an
// ExecutionTrace) to judge semantic similarity, for memory.enable_llm_matching
// installations that want more than Jaccard overlap. Callers are expected to
// wrap it in a trace.CachedClassifier so repeat (goal, candidate) pairs never
// re-pay for the judgment.
type LLMClassifier struct {
	backend Backend
	economy *economy.Economy
}

// NewLLMClassifier builds an LLMClassifier. economy is optional; when set,
// the judgment call's actual cost is deducted from it.
func NewLLMClassifier(backend Backend, econ *economy.Economy) *LLMClassifier {
	return &LLMClassifier{backend: backend, economy: econ}
}

const classifierSystemPrompt = `You judge how similar two task goals are for the purpose of reusing a past execution trace.
Respond with a single number between 0 and 1, nothing else: 1 means the goals are effectively the same task, 0 means unrelated.`

func (c *LLMClassifier) Classify(ctx context.Context, goal string, candidate trace.ExecutionTrace) (float64, error) {
	req := Request{
		SystemPrompt: classifierSystemPrompt,
		Messages: []Message{{
			Role:    "user",
			Content: fmt.Sprintf("Goal A: %s\nGoal B: %s\nSimilarity score:", goal, candidate.GoalText),
		}},
	}
	result, err := c.backend.OneShot(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("llm classifier: %w", err)
	}
	if c.economy != nil && result.CostUSD > 0 {
		if err := c.economy.Deduct(result.CostUSD, "trace_matcher:llm_classify"); err != nil {
			log.Warn().Err(err).Msg("llm_classifier_deduct_failed")
		}
	}
	score, parseErr := parseScore(result.Output)
	if parseErr != nil {
		return 0, fmt.Errorf("llm classifier: %w", parseErr)
	}
	return score, nil
}

func parseScore(output string) (float64, error) {
	trimmed := strings.TrimSpace(output)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty classifier response")
	}
	score, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric classifier response %q: %w", fields[0], err)
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

var _ trace.Classifier = (*LLMClassifier)(nil)
