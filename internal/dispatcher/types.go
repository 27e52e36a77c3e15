// Package dispatcher implements the Dispatcher (C9): the top-level
// dispatch(goal, mode, project?, max_cost_usd) entry point that routes a
// goal through ModeStrategy's decision to one of the five execution modes.
package dispatcher

import (
	"context"

	"llmos/internal/trace"
)

// CrystallizedTool is a registered zero-cost callable a trace has earned
// promotion into (§4.4, §4.9). The dispatcher calls it with a nil params
// map: no parameters are extracted from the goal text.
type CrystallizedTool func(ctx context.Context, params map[string]any) (string, error)

// Result is dispatch(...)'s return value (§4.9).
type Result struct {
	Success   bool
	Mode      trace.Mode
	Output    string
	CostUSD   float64
	ToolName  string
	Reasoning string
	Err       error
}
