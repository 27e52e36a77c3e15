package cognitive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmos/internal/trace"
)

type fakeBackend struct {
	result    Result
	err       error
	streamErr error
	events    []StreamEvent
}

func (f *fakeBackend) OneShot(context.Context, Request) (Result, error) {
	return f.result, f.err
}

func (f *fakeBackend) Stream(_ context.Context, _ Request, onEvent func(StreamEvent)) error {
	for _, ev := range f.events {
		onEvent(ev)
	}
	return f.streamErr
}

type fakeExecutor struct {
	calls   []ToolCall
	results map[string]ToolResult
}

func (f *fakeExecutor) Execute(_ context.Context, call ToolCall) ToolResult {
	f.calls = append(f.calls, call)
	if r, ok := f.results[call.Name]; ok {
		return r
	}
	return ToolResult{ToolCallID: call.ID, Output: "ok"}
}

func TestOneShot_RecordsToolsAndSucceeds(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{result: Result{
		Success: true,
		Output:  "done",
		CostUSD: 0.12,
		ToolCalls: []ToolCall{
			{Name: "read_file", ID: "1"},
			{Name: "write_file", ID: "2"},
		},
	}}
	executor := &fakeExecutor{results: map[string]ToolResult{}}
	adapter := NewAdapter(backend, executor)

	outcome, err := adapter.OneShot(context.Background(), "deploy the cluster", Request{Messages: []Message{{Role: "user", Content: "go"}}}, trace.ModeLearner)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 0.12, outcome.CostUSD)
	assert.Equal(t, []string{"read_file", "write_file"}, outcome.Trace.ToolsUsed)
	assert.Equal(t, 1.0, outcome.Trace.SuccessRating)
	assert.Len(t, executor.calls, 2)
}

func TestOneShot_SecurityHookVetoesDestructiveCommand(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{result: Result{
		Success: true,
		ToolCalls: []ToolCall{
			{Name: "run_shell", Args: map[string]any{"command": "rm -rf /"}},
		},
	}}
	executor := &fakeExecutor{}
	adapter := NewAdapter(backend, executor)

	outcome, err := adapter.OneShot(context.Background(), "clean up", Request{}, trace.ModeLearner)
	require.NoError(t, err)
	assert.Empty(t, executor.calls, "vetoed tool call must never reach the executor")
	assert.NotNil(t, outcome.Trace.ErrorNotes)
}

func TestOneShot_BudgetHookVetoesOverBudgetCall(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{result: Result{
		Success:   true,
		ToolCalls: []ToolCall{{Name: "expensive_tool"}},
	}}
	executor := &fakeExecutor{}
	adapter := NewAdapter(backend, executor).WithBudgetHook(BudgetHook{MaxCostUSD: 0.01, ProjectedCostPerCall: 1.0})

	_, err := adapter.OneShot(context.Background(), "goal", Request{}, trace.ModeLearner)
	require.NoError(t, err)
	assert.Empty(t, executor.calls)
}

func TestOneShot_BackendErrorStillEmitsFailureTrace(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{err: errors.New("network exploded")}
	executor := &fakeExecutor{}
	adapter := NewAdapter(backend, executor)

	outcome, err := adapter.OneShot(context.Background(), "goal", Request{}, trace.ModeLearner)
	assert.Error(t, err)
	assert.False(t, outcome.Success)
	require.NotNil(t, outcome.Trace.ErrorNotes)
	assert.Equal(t, "network exploded", *outcome.Trace.ErrorNotes)
	assert.Equal(t, 0.5, outcome.Trace.SuccessRating)
}

func TestOneShot_BackendReportedFailureRatesZeroNotAdapterError(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{result: Result{Success: false, Output: "", Err: errors.New("model declined")}}
	executor := &fakeExecutor{}
	adapter := NewAdapter(backend, executor)

	outcome, err := adapter.OneShot(context.Background(), "goal", Request{}, trace.ModeLearner)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, 0.0, outcome.Trace.SuccessRating)
}

func TestStream_DeliversEventsAndFinalResult(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{events: []StreamEvent{
		{TextDelta: "thinking..."},
		{ToolCall: &ToolCall{Name: "read_file"}},
		{Done: true, Result: Result{Success: true, Output: "finished", CostUSD: 0.3}},
	}}
	executor := &fakeExecutor{}
	adapter := NewAdapter(backend, executor)

	var deltas []string
	outcome, err := adapter.Stream(context.Background(), "goal", Request{}, trace.ModeOrchestrator, func(ev StreamEvent) {
		if ev.TextDelta != "" {
			deltas = append(deltas, ev.TextDelta)
		}
	})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, []string{"thinking..."}, deltas)
	assert.Equal(t, []string{"read_file"}, outcome.Trace.ToolsUsed)
}

func TestReplay_ExecutesRecordedToolsInOrder(t *testing.T) {
	t.Parallel()
	executor := &fakeExecutor{results: map[string]ToolResult{}}
	adapter := NewAdapter(&fakeBackend{}, executor)

	ok, err := adapter.Replay(context.Background(), trace.ExecutionTrace{ToolsUsed: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, executor.calls, 3)
	assert.Equal(t, "a", executor.calls[0].Name)
	assert.Equal(t, "c", executor.calls[2].Name)
}

func TestReplay_StopsOnFirstToolFailure(t *testing.T) {
	t.Parallel()
	executor := &fakeExecutor{results: map[string]ToolResult{
		"b": {Err: errors.New("boom")},
	}}
	adapter := NewAdapter(&fakeBackend{}, executor)

	ok, err := adapter.Replay(context.Background(), trace.ExecutionTrace{ToolsUsed: []string{"a", "b", "c"}})
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Len(t, executor.calls, 2, "must stop after the failing tool, never reaching c")
}
