package mode

import (
	"context"

	"llmos/internal/trace"
)

// SpeedOptimizedStrategy prefers CRYSTALLIZED > FOLLOWER > LEARNER and never
// chooses MIXED, since its few-shot guidance prompt is comparatively
// expensive in wall-clock time (§4.8).
type SpeedOptimizedStrategy struct{}

func (SpeedOptimizedStrategy) Decide(ctx context.Context, c Context) (Decision, error) {
	t, confidence, _, err := c.TraceMatcher.FindSmart(ctx, c.Goal, trace.MixedConfidence)
	if err != nil {
		return Decision{}, err
	}

	if t != nil && t.CrystallizedIntoTool != nil && c.Config.EnableAdvancedToolUse {
		return Decision{Mode: trace.ModeCrystallized, Confidence: confidence, Trace: t, Reasoning: "speed-optimized: crystallized tool available"}, nil
	}
	if t != nil && confidence >= trace.FollowerConfidence {
		return Decision{Mode: trace.ModeFollower, Confidence: confidence, Trace: t, Reasoning: "speed-optimized: follower-confidence match"}, nil
	}
	return Decision{Mode: trace.ModeLearner, Reasoning: "speed-optimized: skipping mixed, no cheaper path available"}, nil
}
