// Package orchestrator implements the Orchestrator (C10): a sequential
// step executor for goals the Dispatcher judges too complex for a single
// LEARNER call. This replaces the reference service's Kafka-backed,
// DAG-capable workflow runner with the spec's explicitly sequential model
// (§4.10) — only that runner's linear-fallback path is a legitimate
// ancestor for this component.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"llmos/internal/agentregistry"
	"llmos/internal/cognitive"
	"llmos/internal/economy"
	"llmos/internal/eventbus"
	"llmos/internal/project"
	"llmos/internal/trace"
)

const planningSystemPrompt = `You are a planning agent. Decompose the goal into an ordered list of steps.
Respond with a single JSON object of the form:
{"steps": [{"number": 1, "description": "...", "agent": "agent-name", "expected_output": "..."}]}
Use only agent names you know to be registered; when unsure, use "system-agent".`

// Orchestrator implements orchestrate(goal, project?, max_cost_usd) (§4.10).
// It is handed the minimal interfaces it needs rather than a back-reference
// to the Dispatcher, breaking the cyclic dependency noted in §9.
type Orchestrator struct {
	Adapter  *cognitive.Adapter
	Registry *agentregistry.Registry
	Projects *project.Manager
	Economy  *economy.Economy
	Bus      *eventbus.Bus
	Matcher  *trace.Matcher
	Store    *trace.Store

	// StepEstimateUSD seeds the per-step BudgetHook's projected cost
	// (config.Dispatcher.LearnerEstimateUSD: each step is a LEARNER-style
	// single call).
	StepEstimateUSD float64
}

// Orchestrate runs the full decompose-then-execute algorithm of §4.10.
func (o *Orchestrator) Orchestrate(ctx context.Context, goal, projectName string, maxCostUSD float64) (Result, error) {
	start := time.Now()

	name := projectName
	if name == "" {
		name = autoProjectName(goal)
	}
	if _, err := o.Projects.Create(name, "auto-created for: "+goal); err != nil {
		return Result{}, fmt.Errorf("orchestrator: create project: %w", err)
	}

	sm, err := project.NewRun(o.Projects.StateDir(name), goal)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: new run: %w", err)
	}
	if err := sm.SetConstraint("max_cost_usd", maxCostUSD); err != nil {
		return Result{}, fmt.Errorf("orchestrator: set constraint: %w", err)
	}

	o.Bus.Publish(eventbus.TaskStarted, map[string]any{"goal": goal, "project": name, "run_id": sm.RunID()})

	insights := o.memoryInsights(ctx, goal)

	var runCost float64
	steps, planCost, err := o.decompose(ctx, goal, insights, maxCostUSD)
	runCost += planCost
	if planCost > 0 {
		_ = o.Economy.Deduct(planCost, "orchestrator:plan")
	}
	if err != nil {
		log.Warn().Err(err).Str("goal", goal).Msg("orchestrator_plan_call_failed")
	}

	execSteps := make([]project.ExecutionStep, 0, len(steps))
	for _, s := range steps {
		execSteps = append(execSteps, project.ExecutionStep{Number: s.Number, Description: s.Description, AgentName: s.Agent, Status: project.StepPending})
	}
	if err := sm.SetPlan(execSteps); err != nil {
		return Result{}, fmt.Errorf("orchestrator: set plan: %w", err)
	}

	budgetExceeded := false
	for i, step := range steps {
		if runCost >= maxCostUSD {
			budgetExceeded = true
		}
		if budgetExceeded {
			_ = sm.UpdateStep(step.Number, project.StepFailed, "", "BUDGET_EXCEEDED")
			o.Bus.Publish(eventbus.BudgetExceeded, map[string]any{"run_id": sm.RunID(), "step": step.Number})
			continue
		}

		_ = sm.UpdateStep(step.Number, project.StepInProgress, "", "")
		o.Bus.Publish(eventbus.StepStarted, map[string]any{"run_id": sm.RunID(), "step": step.Number})

		spec := o.Registry.Get(step.Agent)
		req := cognitive.Request{SystemPrompt: spec.SystemPrompt, Messages: []cognitive.Message{{Role: "user", Content: step.Description}}}
		adapter := o.adapterFor(maxCostUSD-runCost, insights)
		outcome, callErr := adapter.OneShot(ctx, step.Description, req, trace.ModeOrchestrator)

		runCost += outcome.CostUSD
		if outcome.CostUSD > 0 {
			_ = o.Economy.Deduct(outcome.CostUSD, fmt.Sprintf("orchestrator:step:%d", step.Number))
		}
		if o.Store != nil {
			if saveErr := o.Store.Save(ctx, outcome.Trace); saveErr != nil {
				log.Warn().Err(saveErr).Msg("orchestrator_trace_save_failed")
			}
		}

		if callErr != nil || !outcome.Success {
			reason := "STEP_FAIL"
			if callErr != nil {
				reason = callErr.Error()
			} else if outcome.Trace.ErrorNotes != nil {
				reason = *outcome.Trace.ErrorNotes
			}
			_ = sm.UpdateStep(step.Number, project.StepFailed, "", reason)
			o.Bus.Publish(eventbus.StepDone, map[string]any{"run_id": sm.RunID(), "step": step.Number, "status": "failed"})
			if spec.IsCritical() {
				budgetExceeded = true // reuse the halt-remaining-steps path, distinct reason per step below
				for _, remaining := range steps[i+1:] {
					_ = sm.UpdateStep(remaining.Number, project.StepFailed, "", "STEP_FAIL")
				}
				break
			}
			continue
		}

		_ = sm.UpdateStep(step.Number, project.StepCompleted, outcome.Output, "")
		o.Bus.Publish(eventbus.StepDone, map[string]any{"run_id": sm.RunID(), "step": step.Number, "status": "completed"})
	}

	summary := sm.Summary()
	success := summary.Total > 0 && summary.Completed == summary.Total
	status := "completed"
	if !success {
		status = "failed"
	}
	_ = sm.Finish(status)

	snapshot := sm.Snapshot()
	output := summarizeOutput(snapshot)

	o.Bus.Publish(eventbus.TaskCompleted, map[string]any{"run_id": sm.RunID(), "success": success, "cost_usd": runCost})

	return Result{
		Success:           success,
		Output:            output,
		StepsCompleted:    summary.Completed,
		TotalSteps:        summary.Total,
		CostUSD:           runCost,
		ExecutionTimeSecs: time.Since(start).Seconds(),
		StateSummary:      summary,
	}, nil
}

// decompose issues the single LEARNER-style planning call and parses its
// response, falling back to a single-step system-agent delegation on
// PLAN_PARSE_FAIL (§4.10, §7).
func (o *Orchestrator) decompose(ctx context.Context, goal, insights string, maxCostUSD float64) ([]PlanStep, float64, error) {
	req := cognitive.Request{SystemPrompt: planningSystemPrompt, Messages: []cognitive.Message{{Role: "user", Content: goal}}}
	adapter := o.adapterFor(maxCostUSD, insights)
	outcome, err := adapter.OneShot(ctx, goal, req, trace.ModeOrchestrator)
	if err != nil {
		return fallbackPlan(goal), outcome.CostUSD, err
	}

	steps, ok := parsePlan(outcome.Output)
	if !ok {
		return fallbackPlan(goal), outcome.CostUSD, nil
	}
	return steps, outcome.CostUSD, nil
}

// adapterFor attaches the budget hook (bounded to the run's remaining
// budget) and, when insights is non-empty, the memory-injection prompt hook
// (§4.11) to the orchestrator's adapter for one paid call.
func (o *Orchestrator) adapterFor(remainingBudget float64, insights string) *cognitive.Adapter {
	adapter := o.Adapter.WithBudgetHook(cognitive.BudgetHook{MaxCostUSD: remainingBudget, ProjectedCostPerCall: o.StepEstimateUSD})
	if insights != "" {
		adapter = adapter.WithPromptHook(cognitive.MemoryInjectionHook{Recommendations: []string{insights}})
	}
	return adapter
}

func fallbackPlan(goal string) []PlanStep {
	return []PlanStep{{Number: 1, Description: goal, Agent: agentregistry.SystemAgentName, ExpectedOutput: goal}}
}

// memoryInsights consults the trace matcher for a similar past execution to
// bootstrap the planning prompt (§4.10 step 3).
func (o *Orchestrator) memoryInsights(ctx context.Context, goal string) string {
	if o.Matcher == nil {
		return ""
	}
	t, confidence, _, err := o.Matcher.FindSmart(ctx, goal, trace.MixedConfidence)
	if err != nil || t == nil {
		return ""
	}
	return fmt.Sprintf("A similar task was executed before (confidence %.2f, success rate %.0f%%): %s", confidence, t.SuccessRating*100, t.OutputSummary)
}

func autoProjectName(goal string) string {
	fields := strings.Fields(goal)
	if len(fields) > 3 {
		fields = fields[:3]
	}
	for i, f := range fields {
		fields[i] = strings.ToLower(strings.Trim(f, ".,!?;:\"'"))
	}
	name := strings.Join(fields, "-")
	if name == "" {
		name = "untitled"
	}
	return name
}

func summarizeOutput(s project.ExecutionState) string {
	var sb strings.Builder
	for _, step := range s.Plan {
		fmt.Fprintf(&sb, "[%d] %s: %s\n", step.Number, step.Status, step.Result)
	}
	return sb.String()
}
