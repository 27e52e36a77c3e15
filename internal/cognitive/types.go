// Package cognitive implements CognitiveAdapter + CognitiveBackend (C11):
// a thin, hook-instrumented wrapper over a pluggable LLM provider.
package cognitive

import (
	"context"
)

// Message mirrors the reference service's provider-agnostic chat message
// shape (role/content/tool-calls), generalized to this module's domain.
type Message struct {
	Role      string
	Content   string
	ToolID    string
	ToolCalls []ToolCall
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	Name string
	Args map[string]any
	ID   string
}

// ToolResult is the outcome of executing one ToolCall against the host
// environment.
type ToolResult struct {
	ToolCallID string
	Output     string
	Err        error
}

// StreamEvent is one increment of a Backend.Stream call: either a text
// delta, a requested tool call, or a terminal result.
type StreamEvent struct {
	TextDelta string
	ToolCall  *ToolCall
	Done      bool
	Result    Result
}

// Result is a Backend call's terminal outcome.
type Result struct {
	Success   bool
	Output    string
	CostUSD   float64
	ToolCalls []ToolCall
	Err       error
}

// Request is one call into a Backend.
type Request struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolSchema
	Model        string
}

// ToolSchema describes one callable tool's name, description, and
// parameter schema, mirroring the reference service's provider tool shape.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Backend is the opaque LLM client behind the adapter (§4.11): one
// implementation per provider SDK (Anthropic, OpenAI-compatible, Google).
type Backend interface {
	// OneShot runs req to completion and returns its terminal Result.
	OneShot(ctx context.Context, req Request) (Result, error)
	// Stream runs req, invoking onEvent for every delta/tool-call, and
	// returns once a terminal Result has been delivered via onEvent.
	Stream(ctx context.Context, req Request, onEvent func(StreamEvent)) error
}
