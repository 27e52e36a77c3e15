// Package mode implements ModeStrategy (C8): pure functions from a goal and
// trace-matcher context to a ModeDecision.
package mode

import (
	"context"
	"regexp"
	"strings"

	"llmos/internal/trace"
)

// Decision is the result of a strategy's decide operation (§3).
type Decision struct {
	Mode       trace.Mode
	Confidence float64
	Trace      *trace.ExecutionTrace
	Reasoning  string
}

// Matcher is the subset of trace.Matcher a strategy needs. Declared here so
// strategies can be unit-tested against a fake.
type Matcher interface {
	FindSmart(ctx context.Context, goal string, minConfidence float64) (*trace.ExecutionTrace, float64, trace.ModeHint, error)
}

// Config is the subset of config.Config a strategy reads.
type Config struct {
	EnableAdvancedToolUse bool
}

// Context is the single input to Strategy.Decide (§4.8).
type Context struct {
	Goal         string
	TraceMatcher Matcher
	Config       Config
}

// Strategy is a stateless, pure decision function (§4.8).
type Strategy interface {
	Decide(ctx context.Context, c Context) (Decision, error)
}

var multiStepRE = regexp.MustCompile(`(?i)( and |then|;)`)

// signalsMultiStepComplexity reports whether goal contains any of the
// multi-step markers named in §4.8: " and ", "then", ";", or more than one
// imperative verb at sentence starts.
func signalsMultiStepComplexity(goal string) bool {
	if multiStepRE.MatchString(goal) {
		return true
	}
	return countImperativeSentenceStarts(goal) > 1
}

var sentenceSplitRE = regexp.MustCompile(`[.!?]+\s*`)

// imperativeVerbs is a small closed set of common task-initiating verbs used
// to detect multiple imperative sentence starts, e.g. "Create the file. Run
// the tests.".
var imperativeVerbs = map[string]bool{
	"create": true, "build": true, "run": true, "deploy": true, "write": true,
	"fix": true, "add": true, "remove": true, "update": true, "delete": true,
	"test": true, "install": true, "configure": true, "refactor": true,
	"generate": true, "implement": true, "migrate": true, "analyze": true,
	"review": true, "document": true,
}

func countImperativeSentenceStarts(goal string) int {
	sentences := sentenceSplitRE.Split(strings.TrimSpace(goal), -1)
	count := 0
	for _, s := range sentences {
		fields := strings.Fields(s)
		if len(fields) == 0 {
			continue
		}
		if imperativeVerbs[strings.ToLower(fields[0])] {
			count++
		}
	}
	return count
}

func hintToMode(hint trace.ModeHint) trace.Mode {
	switch hint {
	case trace.HintFollower:
		return trace.ModeFollower
	case trace.HintMixed:
		return trace.ModeMixed
	default:
		return trace.ModeLearner
	}
}
