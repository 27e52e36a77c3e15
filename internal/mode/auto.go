package mode

import (
	"context"

	"llmos/internal/trace"
)

// AutoStrategy is the default strategy (§4.8): delegate to
// TraceMatcher.find_smart and map confidence to mode, escalating to
// ORCHESTRATOR when no trace is found and the goal signals multi-step
// complexity.
type AutoStrategy struct{}

func (AutoStrategy) Decide(ctx context.Context, c Context) (Decision, error) {
	t, confidence, hint, err := c.TraceMatcher.FindSmart(ctx, c.Goal, trace.MixedConfidence)
	if err != nil {
		return Decision{}, err
	}

	if t != nil && t.CrystallizedIntoTool != nil && c.Config.EnableAdvancedToolUse {
		return Decision{
			Mode:       trace.ModeCrystallized,
			Confidence: confidence,
			Trace:      t,
			Reasoning:  "matched trace has been crystallized into a callable tool",
		}, nil
	}

	if t == nil {
		if signalsMultiStepComplexity(c.Goal) {
			return Decision{Mode: trace.ModeOrchestrator, Reasoning: "no trace found; goal signals multi-step complexity"}, nil
		}
		return Decision{Mode: trace.ModeLearner, Reasoning: "no trace found; goal is single-step"}, nil
	}

	return Decision{
		Mode:       hintToMode(hint),
		Confidence: confidence,
		Trace:      t,
		Reasoning:  "matched trace by confidence band",
	}, nil
}
