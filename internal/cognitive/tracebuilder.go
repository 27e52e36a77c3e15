package cognitive

import (
	"sync"

	"llmos/internal/trace"
)

// TraceBuilder accumulates tool names, text output, and final cost across
// one adapter call, for emission as an ExecutionTrace once the call reaches
// a terminal result (§4.11): success or failure, the trace is always
// emitted so failures are learned from too.
type TraceBuilder struct {
	mu             sync.Mutex
	goalText       string
	mode           trace.Mode
	tools          []string
	output         string
	errorNote      string
	costUSD        float64
	success        bool
	adapterErrored bool
}

// NewTraceBuilder starts a builder for one dispatch of goal in mode.
func NewTraceBuilder(goalText string, m trace.Mode) *TraceBuilder {
	return &TraceBuilder{goalText: goalText, mode: m}
}

// RecordTool appends a tool name to the builder's accumulated sequence.
func (b *TraceBuilder) RecordTool(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tools = append(b.tools, name)
}

// RecordOutput sets the builder's final text summary.
func (b *TraceBuilder) RecordOutput(output string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.output = output
}

// RecordError records a failure note, emitted as the trace's error_notes.
// It does not decide the trace's success: the flag passed to Finish does.
func (b *TraceBuilder) RecordError(note string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errorNote = note
	b.success = false
}

// RecordAdapterError records an ADAPTER_ERROR (transport/backend failure,
// §7): a caught failure distinct from a clean unsuccessful completion, which
// Finish rates 0.5 rather than 0.0 (spec.md:47, spec.md:260).
func (b *TraceBuilder) RecordAdapterError(note string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errorNote = note
	b.success = false
	b.adapterErrored = true
}

// Finish finalizes the builder with the terminal result's cost and success
// flag and produces the ExecutionTrace to persist.
func (b *TraceBuilder) Finish(costUSD float64, success bool) trace.ExecutionTrace {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.costUSD = costUSD
	if success {
		b.success = true
	}

	successRating := 0.0
	switch {
	case b.success:
		successRating = 1.0
	case b.adapterErrored:
		successRating = 0.5
	}

	t := trace.ExecutionTrace{
		GoalSignature:    trace.NewSignature(b.goalText),
		GoalText:         b.goalText,
		SuccessRating:    successRating,
		UsageCount:       1,
		EstimatedCostUSD: b.costUSD,
		Mode:             b.mode,
		ToolsUsed:        trace.DedupeTools(b.tools),
		OutputSummary:    b.output,
	}
	if b.errorNote != "" {
		note := b.errorNote
		t.ErrorNotes = &note
	}
	return t
}
