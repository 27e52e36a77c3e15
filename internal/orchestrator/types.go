package orchestrator

import "llmos/internal/project"

// PlanStep is one entry of a decomposed plan, as parsed from the planning
// call's JSON response (§4.10).
type PlanStep struct {
	Number         int    `json:"number"`
	Description    string `json:"description"`
	Agent          string `json:"agent"`
	ExpectedOutput string `json:"expected_output"`
}

// plan is the shape the planning prompt asks the model to return: a single
// JSON object containing a "steps" array, matched against the first
// balanced {...} block in the model's output (§4.10).
type plan struct {
	Steps []PlanStep `json:"steps"`
}

// Result is orchestrate(goal, project?, max_cost_usd) → Result (§4.10).
type Result struct {
	Success           bool
	Output            string
	StepsCompleted    int
	TotalSteps        int
	CostUSD           float64
	ExecutionTimeSecs float64
	StateSummary      project.Summary
}
