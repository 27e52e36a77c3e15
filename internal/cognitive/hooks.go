package cognitive

import (
	"fmt"
	"strings"
)

// VetoError is returned by a hook to reject a tool call or prompt. In
// OneShot and Stream a vetoed tool call is skipped and the veto is recorded
// in the trace's error notes without failing the whole call; Replay stops
// and returns it. The veto is not passed back to the model.
type VetoError struct {
	Hook   string
	Reason string
}

func (e *VetoError) Error() string {
	return fmt.Sprintf("%s hook vetoed: %s", e.Hook, e.Reason)
}

// PreToolUseHook runs before a requested tool call executes. Returning a
// non-nil error vetoes the call.
type PreToolUseHook interface {
	PreToolUse(call ToolCall, costSoFarUSD float64) error
}

// PostToolUseHook runs after a tool call completes, observing its result.
type PostToolUseHook interface {
	PostToolUse(call ToolCall, result ToolResult)
}

// UserPromptSubmitHook runs before a prompt is sent to the backend, and may
// rewrite it (e.g. to prepend memory-injection context).
type UserPromptSubmitHook interface {
	UserPromptSubmit(prompt string) (string, error)
}

// SecurityHook is the default PreToolUse: security hook (§4.11): it rejects
// tool calls matching a configurable deny-list of destructive patterns.
type SecurityHook struct {
	DenyListPatterns []string
}

// DefaultSecurityHook rejects direct shell execution of common destructive
// patterns.
func DefaultSecurityHook() SecurityHook {
	return SecurityHook{DenyListPatterns: []string{"rm -rf", "mkfs", ":(){ :|:& };:", "dd if="}}
}

func (h SecurityHook) PreToolUse(call ToolCall, _ float64) error {
	arg, _ := call.Args["command"].(string)
	for _, pattern := range h.DenyListPatterns {
		if pattern != "" && strings.Contains(arg, pattern) {
			return &VetoError{Hook: "security", Reason: fmt.Sprintf("command matches deny-listed pattern %q", pattern)}
		}
	}
	return nil
}

// BudgetHook is the default PreToolUse: budget hook (§4.11): it rejects a
// tool call once the projected cumulative cost would exceed the dispatch's
// max_cost_usd.
type BudgetHook struct {
	MaxCostUSD          float64
	ProjectedCostPerCall float64
}

func (h BudgetHook) PreToolUse(_ ToolCall, costSoFarUSD float64) error {
	if costSoFarUSD+h.ProjectedCostPerCall > h.MaxCostUSD {
		return &VetoError{Hook: "budget", Reason: fmt.Sprintf("projected cost %.4f would exceed max_cost_usd %.4f", costSoFarUSD+h.ProjectedCostPerCall, h.MaxCostUSD)}
	}
	return nil
}

// TraceCaptureHook is the default PostToolUse: trace-capture hook: it
// appends every executed tool name to the active TraceBuilder.
type TraceCaptureHook struct {
	Builder *TraceBuilder
}

func (h TraceCaptureHook) PostToolUse(call ToolCall, result ToolResult) {
	h.Builder.RecordTool(call.Name)
	if result.Err != nil {
		h.Builder.RecordError(result.Err.Error())
	}
}

// MemoryInjectionHook is the default UserPromptSubmit: memory-injection
// hook: it prepends the similar-trace summaries its caller supplies.
type MemoryInjectionHook struct {
	Recommendations []string
}

func (h MemoryInjectionHook) UserPromptSubmit(prompt string) (string, error) {
	if len(h.Recommendations) == 0 {
		return prompt, nil
	}
	var b strings.Builder
	b.WriteString("Relevant past experience:\n")
	for _, rec := range h.Recommendations {
		b.WriteString("- ")
		b.WriteString(rec)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(prompt)
	return b.String(), nil
}
