package mode

import "fmt"

// Resolve maps a dispatcher.strategy config value to a built-in Strategy
// (§4.8, §6).
func Resolve(name string) (Strategy, error) {
	switch name {
	case "", "auto":
		return AutoStrategy{}, nil
	case "cost-optimized":
		return CostOptimizedStrategy{}, nil
	case "speed-optimized":
		return SpeedOptimizedStrategy{}, nil
	case "forced-learner":
		return ForcedLearnerStrategy{}, nil
	case "forced-follower":
		return ForcedFollowerStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown mode strategy %q", name)
	}
}
