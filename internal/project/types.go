// Package project implements ProjectManager + StateManager (C6): per-run
// directories, plans, step status, and event logs, persisted atomically
// under the workspace.
package project

import (
	"fmt"
	"regexp"
	"time"
)

var nameRE = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ValidateName rejects project names that are empty, or that would escape
// the projects directory once joined onto a filesystem path.
func ValidateName(name string) error {
	if name == "" || !nameRE.MatchString(name) {
		return fmt.Errorf("invalid project name %q", name)
	}
	return nil
}

// Project is a named workspace a Dispatcher/Orchestrator run operates
// within (§4.6).
type Project struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// StepStatus is an ExecutionStep's place in its forward-only lifecycle.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// ExecutionStep belongs to exactly one run inside a Project (§3). Step
// numbers are monotonic within a run; status only moves forward.
type ExecutionStep struct {
	Number      int        `json:"number"`
	Description string     `json:"description"`
	AgentName   string     `json:"agent_name"`
	Status      StepStatus `json:"status"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Event is one append-only entry in an ExecutionState's event log.
type Event struct {
	At   time.Time      `json:"ts"`
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// ExecutionState is the persisted record of one Orchestrator run (§3):
// exclusively owned by that run, read-only to outside observers while it's
// active.
type ExecutionState struct {
	RunID       string          `json:"run_id"`
	Goal        string          `json:"goal"`
	Plan        []ExecutionStep `json:"plan"`
	Variables   map[string]any  `json:"variables"`
	Events      []Event         `json:"events"`
	Constraints map[string]any  `json:"constraints"`
	FinalStatus string          `json:"final_status,omitempty"`
}

// Summary is the StateManager.summary() view: step counts by terminal
// status.
type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
