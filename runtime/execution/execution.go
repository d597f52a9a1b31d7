package execution

import (
	"fmt"
	"sync"
	"time"

	"github.com/relforge/tagship/internal/idgen"
	"github.com/relforge/tagship/model/graph"
	"github.com/relforge/tagship/service/event"
)

// StepExecution represents a single step execution within a run.
type StepExecution struct {
	ID           string                 `json:"id"`
	RunID        string                 `json:"runId"`
	ParentStepID string                 `json:"parentStepId,omitempty"`
	StepID       string                 `json:"stepId"`
	State        StepState              `json:"state"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Input        interface{}            `json:"input,omitempty"`
	Output       interface{}            `json:"output,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Attempts     int                    `json:"attempts,omitempty"`
	ScheduledAt  time.Time              `json:"scheduledAt"`
	StartedAt    *time.Time             `json:"startedAt,omitempty"`
	PausedAt     *time.Time             `json:"pausedAt,omitempty"`
	CompletedAt  *time.Time             `json:"completedAt,omitempty"`
	GotoStep     string                 `json:"gotoStep,omitempty"`
	Meta         map[string]interface{} `json:"meta,omitempty"`
	RunAfter     *time.Time             `json:"runAfter,omitempty"`
	DependsOn    []string               `json:"dependsOn,omitempty"`
	Dependencies map[string]StepState   `json:"dependencies,omitempty"`
	GateApproved *bool                  `json:"gateApproved,omitempty"`
	GateReason   string                 `json:"gateReason,omitempty"`
	mux          sync.RWMutex
}

// NewStepExecution creates an execution for a step, seeding the dependency
// map with the step's declared dependencies and sub steps.
func NewStepExecution(runID string, parent, step *graph.Step) *StepExecution {
	ret := &StepExecution{
		ID:           stepExecutionID(runID, step.ID),
		RunID:        runID,
		StepID:       step.ID,
		State:        StepStatePending,
		ScheduledAt:  time.Now(),
		DependsOn:    step.DependsOn,
		Dependencies: make(map[string]StepState),
	}
	for _, subStep := range step.Steps {
		ret.Dependencies[subStep.ID] = StepStatePending
	}
	for _, dependency := range step.DependsOn {
		ret.Dependencies[dependency] = StepStatePending
	}
	if parent != nil {
		ret.ParentStepID = parent.ID
	}
	return ret
}

// Context builds an event context describing this execution.
func (e *StepExecution) Context(eventType string, step *graph.Step) *event.Context {
	ret := &event.Context{
		EventType: eventType,
		RunID:     e.RunID,
		StepID:    e.StepID,
	}
	if action := step.Action; action != nil {
		ret.Service = action.Service
		ret.Method = action.Method
	}
	return ret
}

// Start marks the execution as started.
func (e *StepExecution) Start() {
	now := time.Now()
	e.StartedAt = &now
	e.State = StepStateRunning
}

// Complete marks the execution as completed.
func (e *StepExecution) Complete() {
	now := time.Now()
	e.CompletedAt = &now
	e.State = StepStateCompleted
}

// Pause marks the execution as paused.
func (e *StepExecution) Pause() {
	now := time.Now()
	e.PausedAt = &now
	e.State = StepStatePaused
}

// Fail marks the execution as failed and records the error.
func (e *StepExecution) Fail(err error) {
	now := time.Now()
	e.CompletedAt = &now
	if err != nil {
		e.Error = err.Error()
	}
	e.State = StepStateFailed
}

// Skip marks the execution as skipped.
func (e *StepExecution) Skip() {
	e.State = StepStateSkipped
}

// Cancel marks the execution as cancelled; used when a sibling step failed
// and the run is shutting down.
func (e *StepExecution) Cancel() {
	now := time.Now()
	e.CompletedAt = &now
	e.State = StepStateCancelled
}

// Schedule refreshes the scheduling timestamp.
func (e *StepExecution) Schedule() {
	e.ScheduledAt = time.Now()
}

// Merge folds the mutable fields of another execution into this one.
func (e *StepExecution) Merge(execution *StepExecution) {
	if execution == nil || execution == e {
		return
	}
	e.mux.Lock()
	execution.mux.RLock()
	defer execution.mux.RUnlock()
	defer e.mux.Unlock()

	if execution.Output != nil {
		e.Output = execution.Output
	}
	if execution.GotoStep != "" {
		e.GotoStep = execution.GotoStep
	}
	if execution.State != "" {
		e.State = execution.State
	}
	if execution.Error != "" {
		e.Error = execution.Error
	}
	if execution.StartedAt != nil {
		e.StartedAt = execution.StartedAt
	}
	if execution.CompletedAt != nil {
		e.CompletedAt = execution.CompletedAt
	}
	if execution.PausedAt != nil {
		e.PausedAt = execution.PausedAt
	}
	if execution.GateApproved != nil {
		e.GateApproved = execution.GateApproved
		e.GateReason = execution.GateReason
	}
	if e.Dependencies == nil {
		e.Dependencies = make(map[string]StepState)
	}
	for key, value := range execution.Dependencies {
		e.Dependencies[key] = value
	}
	if e.Meta == nil {
		e.Meta = make(map[string]interface{})
	}
	for key, value := range execution.Meta {
		e.Meta[key] = value
	}
}

// Clone returns a deep copy the caller can mutate independently. Pointer
// fields referencing immutable data keep their identity.
func (e *StepExecution) Clone() *StepExecution {
	if e == nil {
		return nil
	}
	e.mux.RLock()
	defer e.mux.RUnlock()

	clone := *e
	clone.mux = sync.RWMutex{}

	if e.Data != nil {
		clone.Data = make(map[string]interface{}, len(e.Data))
		for k, v := range e.Data {
			clone.Data[k] = v
		}
	}
	if e.Meta != nil {
		clone.Meta = make(map[string]interface{}, len(e.Meta))
		for k, v := range e.Meta {
			clone.Meta[k] = v
		}
	}
	if e.Dependencies != nil {
		clone.Dependencies = make(map[string]StepState, len(e.Dependencies))
		for k, v := range e.Dependencies {
			clone.Dependencies[k] = v
		}
	}
	if len(e.DependsOn) > 0 {
		clone.DependsOn = append([]string(nil), e.DependsOn...)
	}
	if e.RunAfter != nil {
		t := *e.RunAfter
		clone.RunAfter = &t
	}
	return &clone
}

func stepExecutionID(runID, stepID string) string {
	return fmt.Sprintf("%s-%s-%s", runID, stepID, idgen.New())
}
