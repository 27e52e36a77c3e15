package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmos/internal/agentregistry"
	"llmos/internal/cognitive"
	"llmos/internal/config"
	"llmos/internal/economy"
	"llmos/internal/eventbus"
	"llmos/internal/orchestrator"
	"llmos/internal/project"
	"llmos/internal/trace"
)

type scriptedBackend struct {
	result cognitive.Result
	err    error
}

func (b *scriptedBackend) OneShot(context.Context, cognitive.Request) (cognitive.Result, error) {
	return b.result, b.err
}

func (b *scriptedBackend) Stream(_ context.Context, _ cognitive.Request, onEvent func(cognitive.StreamEvent)) error {
	onEvent(cognitive.StreamEvent{Done: true, Result: b.result})
	return b.err
}

type noopExecutor struct{}

func (noopExecutor) Execute(_ context.Context, call cognitive.ToolCall) cognitive.ToolResult {
	return cognitive.ToolResult{ToolCallID: call.ID, Output: "ok"}
}

type countingExecutor struct {
	calls int
}

func (e *countingExecutor) Execute(_ context.Context, call cognitive.ToolCall) cognitive.ToolResult {
	e.calls++
	return cognitive.ToolResult{ToolCallID: call.ID, Output: "ok"}
}

func newTestDispatcher(t *testing.T, backend cognitive.Backend, budget float64) (*Dispatcher, *trace.Store) {
	t.Helper()
	store, err := trace.NewFileStore(t.TempDir())
	require.NoError(t, err)
	matcher := trace.NewMatcher(store)
	projects, err := project.NewManager(t.TempDir())
	require.NoError(t, err)
	adapter := cognitive.NewAdapter(backend, noopExecutor{})

	orch := &orchestrator.Orchestrator{
		Adapter:  adapter,
		Registry: agentregistry.NewRegistry(nil),
		Projects: projects,
		Economy:  economy.New(budget),
		Bus:      eventbus.New(),
		Matcher:  matcher,
		Store:    store,
	}

	d := New(economy.New(budget), store, matcher, eventbus.New(), adapter, orch, config.Default())
	return d, store
}

func TestDispatch_LearnerThenFollowerOnRepeat(t *testing.T) {
	t.Parallel()
	backend := &scriptedBackend{result: cognitive.Result{Success: true, Output: "factorial(n) = n * factorial(n-1)", CostUSD: 0.5}}
	d, _ := newTestDispatcher(t, backend, 1.0)

	goal := "Create a Python function to calculate factorial recursively"
	first, err := d.Dispatch(context.Background(), goal, "auto", "", 1.0)
	require.NoError(t, err)
	assert.Equal(t, trace.ModeLearner, first.Mode)
	assert.InDelta(t, 0.5, first.CostUSD, 0.001)

	second, err := d.Dispatch(context.Background(), goal, "auto", "", 1.0)
	require.NoError(t, err)
	assert.Equal(t, trace.ModeFollower, second.Mode)
	assert.Equal(t, 0.0, second.CostUSD)
}

func TestDispatch_LowBatteryLeavesBalanceUnchanged(t *testing.T) {
	t.Parallel()
	backend := &scriptedBackend{result: cognitive.Result{Success: true, Output: "x", CostUSD: 0.5}}
	d, _ := newTestDispatcher(t, backend, 0.10)

	result, err := d.Dispatch(context.Background(), "Create a Python function to calculate factorial recursively", "auto", "", 1.0)
	assert.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 0.10, d.Economy.Balance())
}

func TestDispatch_CrystallizedToolSkipsLLMCall(t *testing.T) {
	t.Parallel()
	backend := &scriptedBackend{result: cognitive.Result{Success: true, Output: "should not be called", CostUSD: 1.0}}
	d, store := newTestDispatcher(t, backend, 1.0)

	toolName := "is_prime"
	sig := trace.NewSignature("check prime")
	seed := trace.ExecutionTrace{
		GoalSignature:        sig,
		GoalText:             "check prime",
		SuccessRating:        0.97,
		UsageCount:           6,
		Mode:                 trace.ModeCrystallized,
		CrystallizedIntoTool: &toolName,
	}
	require.NoError(t, store.Save(context.Background(), seed))

	called := false
	d.RegisterTool(toolName, func(context.Context, map[string]any) (string, error) {
		called = true
		return "true", nil
	})

	result, err := d.Dispatch(context.Background(), "check prime", "auto", "", 1.0)
	require.NoError(t, err)
	assert.Equal(t, trace.ModeCrystallized, result.Mode)
	assert.Equal(t, 0.0, result.CostUSD)
	assert.Equal(t, toolName, result.ToolName)
	assert.True(t, called)

	updated, err := store.Load(context.Background(), sig)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.UsageCount)
}

func TestDispatch_LearnerBudgetHookVetoesToolCallWhenProjectedCostExceedsMaxCost(t *testing.T) {
	t.Parallel()
	backend := &scriptedBackend{result: cognitive.Result{
		Success:   true,
		Output:    "done",
		CostUSD:   0.01,
		ToolCalls: []cognitive.ToolCall{{Name: "expensive_tool", ID: "1"}},
	}}
	store, err := trace.NewFileStore(t.TempDir())
	require.NoError(t, err)
	matcher := trace.NewMatcher(store)
	projects, err := project.NewManager(t.TempDir())
	require.NoError(t, err)
	executor := &countingExecutor{}
	adapter := cognitive.NewAdapter(backend, executor)

	cfg := config.Default()
	cfg.Dispatcher.LearnerEstimateUSD = 5.0

	orch := &orchestrator.Orchestrator{
		Adapter:  adapter,
		Registry: agentregistry.NewRegistry(nil),
		Projects: projects,
		Economy:  economy.New(10),
		Bus:      eventbus.New(),
		Matcher:  matcher,
		Store:    store,
	}
	d := New(economy.New(10), store, matcher, eventbus.New(), adapter, orch, cfg)

	result, err := d.Dispatch(context.Background(), "a brand new task", "forced-learner", "", 0.02)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, executor.calls, "budget hook must veto the tool call before it reaches the executor")
}

func TestDispatch_MixedPromptHookInjectsMatchedTraceRecommendation(t *testing.T) {
	t.Parallel()
	var lastPrompt string
	backend := &promptCapturingBackend{onOneShot: func(req cognitive.Request) (cognitive.Result, error) {
		lastPrompt = req.Messages[len(req.Messages)-1].Content
		return cognitive.Result{Success: true, Output: "done", CostUSD: 0.01}, nil
	}}
	d, store := newTestDispatcher(t, backend, 10.0)

	seed := trace.ExecutionTrace{
		GoalSignature: trace.NewSignature("deploy the cluster to staging environment now"),
		GoalText:      "deploy the cluster to staging environment now",
		SuccessRating: 0.9,
		UsageCount:    2,
		Mode:          trace.ModeLearner,
		OutputSummary: "ran terraform apply",
	}
	require.NoError(t, store.Save(context.Background(), seed))

	result, err := d.Dispatch(context.Background(), "deploy the cluster to production environment now", "auto", "", 1.0)
	require.NoError(t, err)
	assert.Equal(t, trace.ModeMixed, result.Mode)
	assert.Contains(t, lastPrompt, "ran terraform apply")
	assert.Contains(t, lastPrompt, "deploy the cluster to production environment now")
}

type promptCapturingBackend struct {
	onOneShot func(req cognitive.Request) (cognitive.Result, error)
}

func (b *promptCapturingBackend) OneShot(_ context.Context, req cognitive.Request) (cognitive.Result, error) {
	return b.onOneShot(req)
}

func (b *promptCapturingBackend) Stream(_ context.Context, req cognitive.Request, onEvent func(cognitive.StreamEvent)) error {
	result, err := b.onOneShot(req)
	onEvent(cognitive.StreamEvent{Done: true, Result: result})
	return err
}

func TestDispatch_ForcedFollowerFallsBackToLearnerWithoutTrace(t *testing.T) {
	t.Parallel()
	backend := &scriptedBackend{result: cognitive.Result{Success: true, Output: "first principles", CostUSD: 0.5}}
	d, _ := newTestDispatcher(t, backend, 1.0)

	result, err := d.Dispatch(context.Background(), "an entirely novel goal", "forced-follower", "", 1.0)
	require.NoError(t, err)
	assert.Equal(t, trace.ModeLearner, result.Mode)
}
