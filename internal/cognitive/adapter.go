package cognitive

import (
	"context"
	"fmt"

	"llmos/internal/trace"
)

// ToolExecutor runs one tool call against the host environment and returns
// its result. The Orchestrator and FOLLOWER replay path both supply one.
type ToolExecutor interface {
	Execute(ctx context.Context, call ToolCall) ToolResult
}

// OneShotOutcome is the result of Adapter.OneShot (§4.11).
type OneShotOutcome struct {
	Success bool
	Output  string
	CostUSD float64
	Trace   trace.ExecutionTrace
}

// Adapter is CognitiveAdapter (C11): a thin wrapper over a Backend,
// instrumented with pluggable hooks and a per-call TraceBuilder.
type Adapter struct {
	backend  Backend
	executor ToolExecutor

	security PreToolUseHook
	budget   PreToolUseHook
	onTool   PostToolUseHook
	onPrompt UserPromptSubmitHook
}

// NewAdapter builds an Adapter over backend and executor, wired with the
// default security hook. Callers attach budget/memory-injection hooks via
// WithBudgetHook/WithPromptHook per call since those depend on per-dispatch
// state (max_cost_usd, matched-trace recommendations).
func NewAdapter(backend Backend, executor ToolExecutor) *Adapter {
	return &Adapter{backend: backend, executor: executor, security: DefaultSecurityHook()}
}

// WithBudgetHook attaches a PreToolUse: budget hook for this call.
func (a *Adapter) WithBudgetHook(h PreToolUseHook) *Adapter {
	clone := *a
	clone.budget = h
	return &clone
}

// WithPromptHook attaches a UserPromptSubmit: memory-injection hook for this
// call.
func (a *Adapter) WithPromptHook(h UserPromptSubmitHook) *Adapter {
	clone := *a
	clone.onPrompt = h
	return &clone
}

// OneShot implements one_shot(goal, agent_spec?, project?) (§4.11): a
// single free-form or guided call. Tool calls in the backend's result are
// checked against the hooks and executed after that call returns; their
// results are not sent back to the backend, so the one call is final.
func (a *Adapter) OneShot(ctx context.Context, goal string, req Request, m trace.Mode) (OneShotOutcome, error) {
	builder := NewTraceBuilder(goal, m)
	onToolHook := a.onTool
	if onToolHook == nil {
		onToolHook = TraceCaptureHook{Builder: builder}
	}

	if a.onPrompt != nil && len(req.Messages) > 0 {
		rewritten, err := a.onPrompt.UserPromptSubmit(req.Messages[len(req.Messages)-1].Content)
		if err != nil {
			return OneShotOutcome{}, err
		}
		req.Messages[len(req.Messages)-1].Content = rewritten
	}

	result, err := a.backend.OneShot(ctx, req)
	if err != nil {
		builder.RecordAdapterError(err.Error())
		return OneShotOutcome{Success: false, Trace: builder.Finish(0, false)}, err
	}

	costSoFar := 0.0
	for _, call := range result.ToolCalls {
		if vetoErr := a.checkVetoes(call, costSoFar); vetoErr != nil {
			builder.RecordError(vetoErr.Error())
			continue
		}
		toolResult := a.executor.Execute(ctx, call)
		onToolHook.PostToolUse(call, toolResult)
		if toolResult.Err != nil {
			builder.RecordError(toolResult.Err.Error())
		}
	}

	builder.RecordOutput(result.Output)
	if !result.Success {
		note := "backend reported failure"
		if result.Err != nil {
			note = result.Err.Error()
		}
		builder.RecordError(note)
	}

	return OneShotOutcome{
		Success: result.Success,
		Output:  result.Output,
		CostUSD: result.CostUSD,
		Trace:   builder.Finish(result.CostUSD, result.Success),
	}, nil
}

// Stream implements stream(goal, agent_spec?, project?, on_message) (§4.11),
// invoking onMessage for every text delta and tool-use event as they arrive.
func (a *Adapter) Stream(ctx context.Context, goal string, req Request, m trace.Mode, onMessage func(StreamEvent)) (OneShotOutcome, error) {
	builder := NewTraceBuilder(goal, m)
	onToolHook := a.onTool
	if onToolHook == nil {
		onToolHook = TraceCaptureHook{Builder: builder}
	}

	var final Result
	costSoFar := 0.0
	err := a.backend.Stream(ctx, req, func(ev StreamEvent) {
		if ev.ToolCall != nil {
			if vetoErr := a.checkVetoes(*ev.ToolCall, costSoFar); vetoErr != nil {
				builder.RecordError(vetoErr.Error())
			} else {
				toolResult := a.executor.Execute(ctx, *ev.ToolCall)
				onToolHook.PostToolUse(*ev.ToolCall, toolResult)
				if toolResult.Err != nil {
					builder.RecordError(toolResult.Err.Error())
				}
			}
		}
		if ev.Done {
			final = ev.Result
			costSoFar = final.CostUSD
		}
		onMessage(ev)
	})
	if err != nil {
		builder.RecordAdapterError(err.Error())
		return OneShotOutcome{Success: false, Trace: builder.Finish(0, false)}, err
	}

	builder.RecordOutput(final.Output)
	if !final.Success {
		note := "backend reported failure"
		if final.Err != nil {
			note = final.Err.Error()
		}
		builder.RecordError(note)
	}

	return OneShotOutcome{
		Success: final.Success,
		Output:  final.Output,
		CostUSD: final.CostUSD,
		Trace:   builder.Finish(final.CostUSD, final.Success),
	}, nil
}

// Replay implements replay(trace) for FOLLOWER (§4.11): executes the
// recorded tools_used sequence directly against the host environment,
// producing no new reasoning.
func (a *Adapter) Replay(ctx context.Context, t trace.ExecutionTrace) (bool, error) {
	for _, name := range t.ToolsUsed {
		call := ToolCall{Name: name}
		if vetoErr := a.checkVetoes(call, 0); vetoErr != nil {
			return false, vetoErr
		}
		result := a.executor.Execute(ctx, call)
		if result.Err != nil {
			return false, fmt.Errorf("replay tool %q: %w", name, result.Err)
		}
	}
	return true, nil
}

func (a *Adapter) checkVetoes(call ToolCall, costSoFar float64) error {
	if a.security != nil {
		if err := a.security.PreToolUse(call, costSoFar); err != nil {
			return err
		}
	}
	if a.budget != nil {
		if err := a.budget.PreToolUse(call, costSoFar); err != nil {
			return err
		}
	}
	return nil
}
