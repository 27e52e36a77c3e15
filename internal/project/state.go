package project

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StateManager owns exactly one ExecutionState for one active run,
// persisting it to <project>/state/<run-id>.json atomically on every
// mutation (§4.6).
type StateManager struct {
	mu      sync.Mutex
	path    string
	state   ExecutionState
	planSet bool
}

// NewRun initializes a new ExecutionState for goal under stateDir, assigning
// it a fresh run ID, and persists the initial snapshot.
func NewRun(stateDir, goal string) (*StateManager, error) {
	runID := uuid.NewString()
	sm := &StateManager{
		path: filepath.Join(stateDir, runID+".json"),
		state: ExecutionState{
			RunID:       runID,
			Goal:        goal,
			Plan:        []ExecutionStep{},
			Variables:   map[string]any{},
			Events:      []Event{},
			Constraints: map[string]any{},
		},
	}
	if err := sm.persist(); err != nil {
		return nil, err
	}
	return sm, nil
}

// RunID returns the run identifier this StateManager was created with.
func (sm *StateManager) RunID() string {
	return sm.state.RunID
}

// Snapshot returns a copy of the current ExecutionState.
func (sm *StateManager) Snapshot() ExecutionState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

// SetPlan records the run's step plan. Valid once per run (§4.6).
func (sm *StateManager) SetPlan(steps []ExecutionStep) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.planSet {
		return fmt.Errorf("plan already set for run %s", sm.state.RunID)
	}
	sm.state.Plan = steps
	sm.planSet = true
	return sm.persistLocked()
}

// UpdateStep transitions step number n to status, validating the forward-only
// lifecycle: completed/failed are only reachable from in_progress, except
// pending can move directly to failed for pre-start failures (§4.6).
func (sm *StateManager) UpdateStep(number int, status StepStatus, result, errMsg string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	idx := -1
	for i := range sm.state.Plan {
		if sm.state.Plan[i].Number == number {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("no step numbered %d in run %s", number, sm.state.RunID)
	}

	current := sm.state.Plan[idx].Status
	if err := validateTransition(current, status); err != nil {
		return err
	}

	sm.state.Plan[idx].Status = status
	if result != "" {
		sm.state.Plan[idx].Result = result
	}
	if errMsg != "" {
		sm.state.Plan[idx].Error = errMsg
	}
	return sm.persistLocked()
}

func validateTransition(from, to StepStatus) error {
	switch to {
	case StepInProgress:
		if from != StepPending {
			return fmt.Errorf("cannot move step from %s to %s", from, to)
		}
	case StepCompleted:
		if from != StepInProgress {
			return fmt.Errorf("cannot move step from %s to %s", from, to)
		}
	case StepFailed:
		if from != StepInProgress && from != StepPending {
			return fmt.Errorf("cannot move step from %s to %s", from, to)
		}
	default:
		return fmt.Errorf("unsupported target status %s", to)
	}
	return nil
}

// LogEvent appends a timestamped event to the run's event log.
func (sm *StateManager) LogEvent(eventType string, data map[string]any) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.state.Events = append(sm.state.Events, Event{At: time.Now().UTC(), Type: eventType, Data: data})
	return sm.persistLocked()
}

// SetConstraint records a run-level constraint, e.g. max_token_cost.
func (sm *StateManager) SetConstraint(key string, value any) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.state.Constraints[key] = value
	return sm.persistLocked()
}

// SetVariable records a run-level variable for later steps to read.
func (sm *StateManager) SetVariable(key string, value any) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.state.Variables[key] = value
	return sm.persistLocked()
}

// Finish records the run's terminal status.
func (sm *StateManager) Finish(status string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.state.FinalStatus = status
	return sm.persistLocked()
}

// Summary reports step counts by terminal status.
func (sm *StateManager) Summary() Summary {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s := Summary{Total: len(sm.state.Plan)}
	for _, step := range sm.state.Plan {
		switch step.Status {
		case StepCompleted:
			s.Completed++
		case StepFailed:
			s.Failed++
		}
	}
	return s
}

func (sm *StateManager) persist() error {
	return writeJSONAtomic(sm.path, sm.state)
}

func (sm *StateManager) persistLocked() error {
	return sm.persist()
}
