package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"llmos/internal/cognitive"
	"llmos/internal/config"
	"llmos/internal/economy"
	"llmos/internal/eventbus"
	"llmos/internal/mode"
	"llmos/internal/orchestrator"
	"llmos/internal/trace"
)

// Dispatcher wires the EventBus, TokenEconomy, TraceStore/TraceMatcher,
// CognitiveAdapter, ModeStrategy, and Orchestrator into the single
// dispatch(...) entry point (§4.9).
type Dispatcher struct {
	Economy      *economy.Economy
	Store        *trace.Store
	Matcher      *trace.Matcher
	Bus          *eventbus.Bus
	Adapter      *cognitive.Adapter
	Orchestrator *orchestrator.Orchestrator
	Config       config.Config

	mu    sync.RWMutex
	tools map[string]CrystallizedTool
}

// New builds a Dispatcher from its component dependencies.
func New(econ *economy.Economy, store *trace.Store, matcher *trace.Matcher, bus *eventbus.Bus, adapter *cognitive.Adapter, orch *orchestrator.Orchestrator, cfg config.Config) *Dispatcher {
	return &Dispatcher{
		Economy:      econ,
		Store:        store,
		Matcher:      matcher,
		Bus:          bus,
		Adapter:      adapter,
		Orchestrator: orch,
		Config:       cfg,
		tools:        make(map[string]CrystallizedTool),
	}
}

// RegisterTool registers a zero-cost callable a trace may be crystallized
// into. Re-registering a name replaces the prior callable.
func (d *Dispatcher) RegisterTool(name string, fn CrystallizedTool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tools[name] = fn
}

func (d *Dispatcher) lookupTool(name string) (CrystallizedTool, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn, ok := d.tools[name]
	return fn, ok
}

// Dispatch implements dispatch(goal, mode, project?, max_cost_usd) (§4.9).
// strategyName selects the ModeStrategy ("" uses the configured default,
// config.Dispatcher.Strategy); projectName is only consulted for the
// ORCHESTRATOR route.
func (d *Dispatcher) Dispatch(ctx context.Context, goal, strategyName, projectName string, maxCostUSD float64) (Result, error) {
	if strategyName == "" {
		strategyName = d.Config.Dispatcher.Strategy
	}
	strategy, err := mode.Resolve(strategyName)
	if err != nil {
		return Result{Success: false, Err: err}, err
	}

	decision, err := strategy.Decide(ctx, mode.Context{
		Goal:         goal,
		TraceMatcher: d.Matcher,
		Config:       mode.Config{EnableAdvancedToolUse: d.Config.Dispatcher.EnableAdvancedToolUse},
	})
	if err != nil {
		return Result{Success: false, Err: err}, err
	}

	d.Bus.Publish(eventbus.TaskStarted, map[string]any{"goal": goal, "mode": string(decision.Mode)})

	var result Result
	switch decision.Mode {
	case trace.ModeCrystallized:
		result = d.dispatchCrystallized(ctx, decision)
	case trace.ModeFollower:
		result = d.dispatchFollower(ctx, goal, decision, maxCostUSD)
	case trace.ModeMixed:
		result = d.dispatchMixed(ctx, goal, decision, maxCostUSD)
	case trace.ModeOrchestrator:
		result = d.dispatchOrchestrator(ctx, goal, projectName, maxCostUSD)
	default:
		result = d.dispatchLearner(ctx, goal, maxCostUSD)
	}

	d.Bus.Publish(eventbus.TaskCompleted, map[string]any{"goal": goal, "mode": string(result.Mode), "success": result.Success, "cost_usd": result.CostUSD})
	return result, result.Err
}

func (d *Dispatcher) dispatchCrystallized(ctx context.Context, decision mode.Decision) Result {
	if decision.Trace == nil || decision.Trace.CrystallizedIntoTool == nil {
		err := fmt.Errorf("crystallized decision has no tool reference")
		return Result{Success: false, Mode: trace.ModeCrystallized, Err: err}
	}
	toolName := *decision.Trace.CrystallizedIntoTool
	fn, ok := d.lookupTool(toolName)
	if !ok {
		err := fmt.Errorf("crystallized tool %q is not registered", toolName)
		return Result{Success: false, Mode: trace.ModeCrystallized, ToolName: toolName, Err: err}
	}

	output, err := fn(ctx, nil)
	if err != nil {
		return Result{Success: false, Mode: trace.ModeCrystallized, ToolName: toolName, Err: err}
	}

	if _, updErr := d.Store.UpdateUsage(ctx, decision.Trace.GoalSignature, true); updErr != nil {
		log.Warn().Err(updErr).Msg("dispatcher_crystallized_update_usage_failed")
	}
	return Result{Success: true, Mode: trace.ModeCrystallized, Output: output, CostUSD: 0, ToolName: toolName}
}

func (d *Dispatcher) dispatchFollower(ctx context.Context, goal string, decision mode.Decision, maxCostUSD float64) Result {
	if decision.Trace == nil {
		err := fmt.Errorf("NO_TRACE: follower decision has no matched trace")
		return Result{Success: false, Mode: trace.ModeFollower, Err: err}
	}

	ok, err := d.Adapter.Replay(ctx, *decision.Trace)
	if err != nil || !ok {
		log.Warn().Err(err).Str("goal", goal).Msg("dispatcher_follower_replay_failed_downgrading_to_mixed")
		downgraded := decision
		downgraded.Mode = trace.ModeMixed
		return d.dispatchMixed(ctx, goal, downgraded, maxCostUSD)
	}

	if _, updErr := d.Store.UpdateUsage(ctx, decision.Trace.GoalSignature, true); updErr != nil {
		log.Warn().Err(updErr).Msg("dispatcher_follower_update_usage_failed")
	}
	return Result{Success: true, Mode: trace.ModeFollower, Output: decision.Trace.OutputSummary, CostUSD: 0}
}

func (d *Dispatcher) dispatchMixed(ctx context.Context, goal string, decision mode.Decision, maxCostUSD float64) Result {
	if decision.Trace == nil {
		err := fmt.Errorf("NO_TRACE: mixed decision has no matched trace")
		return Result{Success: false, Mode: trace.ModeMixed, Err: err}
	}
	if err := d.Economy.Check(maxCostUSD); err != nil {
		return Result{Success: false, Mode: trace.ModeMixed, Err: err}
	}

	req := cognitive.Request{
		SystemPrompt: fewShotPrompt(*decision.Trace),
		Messages:     []cognitive.Message{{Role: "user", Content: goal}},
	}
	adapter := d.Adapter.
		WithBudgetHook(cognitive.BudgetHook{MaxCostUSD: maxCostUSD, ProjectedCostPerCall: d.Config.Dispatcher.MixedEstimateUSD}).
		WithPromptHook(cognitive.MemoryInjectionHook{Recommendations: []string{memoryRecommendation(*decision.Trace)}})
	outcome, err := adapter.OneShot(ctx, goal, req, trace.ModeMixed)
	return d.finishPaidDispatch(ctx, trace.ModeMixed, outcome, err)
}

func (d *Dispatcher) dispatchLearner(ctx context.Context, goal string, maxCostUSD float64) Result {
	if err := d.Economy.Check(maxCostUSD); err != nil {
		return Result{Success: false, Mode: trace.ModeLearner, Err: err}
	}

	adapter := d.Adapter.WithBudgetHook(cognitive.BudgetHook{MaxCostUSD: maxCostUSD, ProjectedCostPerCall: d.Config.Dispatcher.LearnerEstimateUSD})
	req := cognitive.Request{Messages: []cognitive.Message{{Role: "user", Content: goal}}}
	outcome, err := adapter.OneShot(ctx, goal, req, trace.ModeLearner)
	return d.finishPaidDispatch(ctx, trace.ModeLearner, outcome, err)
}

func (d *Dispatcher) dispatchOrchestrator(ctx context.Context, goal, projectName string, maxCostUSD float64) Result {
	if err := d.Economy.Check(maxCostUSD); err != nil {
		return Result{Success: false, Mode: trace.ModeOrchestrator, Err: err}
	}

	orchResult, err := d.Orchestrator.Orchestrate(ctx, goal, projectName, maxCostUSD)
	if err != nil {
		return Result{Success: false, Mode: trace.ModeOrchestrator, Err: err}
	}
	return Result{
		Success: orchResult.Success,
		Mode:    trace.ModeOrchestrator,
		Output:  orchResult.Output,
		CostUSD: orchResult.CostUSD,
	}
}

// finishPaidDispatch deducts the adapter-reported actual cost and persists
// the resulting trace, common to the MIXED and LEARNER branches (§4.9 steps
// 5-6).
func (d *Dispatcher) finishPaidDispatch(ctx context.Context, m trace.Mode, outcome cognitive.OneShotOutcome, callErr error) Result {
	if outcome.CostUSD > 0 {
		if err := d.Economy.Deduct(outcome.CostUSD, "dispatch:"+string(m)); err != nil {
			return Result{Success: false, Mode: m, CostUSD: outcome.CostUSD, Err: err}
		}
	}
	if saveErr := d.Store.Save(ctx, outcome.Trace); saveErr != nil {
		log.Warn().Err(saveErr).Msg("dispatcher_trace_save_failed")
	}
	if callErr != nil {
		return Result{Success: false, Mode: m, CostUSD: outcome.CostUSD, Err: callErr}
	}
	return Result{Success: outcome.Success, Mode: m, Output: outcome.Output, CostUSD: outcome.CostUSD}
}

func fewShotPrompt(t trace.ExecutionTrace) string {
	return fmt.Sprintf(
		"A similar task succeeded before (success rate %.0f%%, tools used: %v): %s\nUse this as guidance, but solve the new goal directly.",
		t.SuccessRating*100, t.ToolsUsed, t.OutputSummary,
	)
}

// memoryRecommendation renders the matched trace as a single memory-injection
// line (§4.11 UserPromptSubmit hook, §5 MemoryQuery recommendations).
func memoryRecommendation(t trace.ExecutionTrace) string {
	return fmt.Sprintf("%s (success rate %.0f%%, tools used: %v)", t.OutputSummary, t.SuccessRating*100, t.ToolsUsed)
}
