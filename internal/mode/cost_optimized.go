package mode

import (
	"context"

	"llmos/internal/trace"
)

// CostOptimizedStrategy lowers the confidence bands so more matches resolve
// to the cheaper FOLLOWER/MIXED paths, and never escalates to ORCHESTRATOR
// on its own (§4.8).
type CostOptimizedStrategy struct{}

const (
	costOptimizedFollowerConfidence = 0.75
	costOptimizedMixedConfidence    = 0.5
)

func (CostOptimizedStrategy) Decide(ctx context.Context, c Context) (Decision, error) {
	t, confidence, _, err := c.TraceMatcher.FindSmart(ctx, c.Goal, costOptimizedMixedConfidence)
	if err != nil {
		return Decision{}, err
	}

	if t == nil {
		return Decision{Mode: trace.ModeLearner, Reasoning: "cost-optimized: no trace found"}, nil
	}

	switch {
	case confidence >= costOptimizedFollowerConfidence:
		return Decision{Mode: trace.ModeFollower, Confidence: confidence, Trace: t, Reasoning: "cost-optimized: lowered follower threshold met"}, nil
	default:
		return Decision{Mode: trace.ModeMixed, Confidence: confidence, Trace: t, Reasoning: "cost-optimized: lowered mixed threshold met"}, nil
	}
}
