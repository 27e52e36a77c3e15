package mode

import (
	"context"

	"llmos/internal/trace"
)

// ForcedLearnerStrategy always decides LEARNER, regardless of any matched
// trace (§4.8).
type ForcedLearnerStrategy struct{}

func (ForcedLearnerStrategy) Decide(context.Context, Context) (Decision, error) {
	return Decision{Mode: trace.ModeLearner, Reasoning: "forced-learner"}, nil
}

// ForcedFollowerStrategy always decides FOLLOWER when a trace exists;
// when forcing FOLLOWER is infeasible (no trace at all), it falls back to
// LEARNER with a diagnostic reasoning string (§4.8).
type ForcedFollowerStrategy struct{}

func (ForcedFollowerStrategy) Decide(ctx context.Context, c Context) (Decision, error) {
	t, confidence, _, err := c.TraceMatcher.FindSmart(ctx, c.Goal, 0)
	if err != nil {
		return Decision{}, err
	}
	if t == nil {
		return Decision{Mode: trace.ModeLearner, Reasoning: "forced-follower requested but no trace exists; falling back to LEARNER"}, nil
	}
	return Decision{Mode: trace.ModeFollower, Confidence: confidence, Trace: t, Reasoning: "forced-follower"}, nil
}
