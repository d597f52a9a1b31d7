package execution

import (
	"context"
	"sync"
	"time"

	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/model/graph"
	"github.com/relforge/tagship/policy"
	"github.com/relforge/tagship/tracing"
)

// Run state constants.
const (
	StatePending   = "pending"
	StateRunning   = "running"
	StatePaused    = "paused"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// Run represents one execution of a release pipeline, normally created in
// response to a matching ref event.
type Run struct {
	ID         string            `json:"id"`
	SCN        int               `json:"scn"`
	Name       string            `json:"name"`
	State      string            `json:"state"`
	Release    *model.Release    `json:"release"`
	Event      *model.RefEvent   `json:"event,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	FinishedAt *time.Time        `json:"finishedAt"`
	Session    *Session          `json:"session"`
	Stack      []*StepExecution  `json:"stack,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
	Span       *tracing.Span     `json:"-"`

	ActiveStepCount int            `json:"activeStepCount"`
	Policy          *policy.Config `json:"policy,omitempty"`

	mu       sync.RWMutex
	allSteps map[string]*graph.Step
}

// NewRun creates a run for the given release with the provided initial state.
func NewRun(id string, name string, release *model.Release, initialState map[string]interface{}) *Run {
	now := time.Now()
	if initialState == nil {
		initialState = make(map[string]interface{})
	}
	return &Run{
		ID:        id,
		Name:      name,
		State:     StatePending,
		Release:   release,
		CreatedAt: now,
		UpdatedAt: now,
		Session:   NewSession(id, WithState(initialState)),
		Errors:    make(map[string]string),
	}
}

// Wait blocks until the run finishes or the timeout elapses.
type Wait func(ctx context.Context, timeout time.Duration) (*RunOutput, error)

// RunOutput is the terminal snapshot of a run.
type RunOutput struct {
	RunID     string
	State     string
	Output    map[string]interface{}
	Errors    map[string]string
	TimeTaken time.Duration
	Timeout   bool
}

// LookupStep resolves a step by ID or name.
func (r *Run) LookupStep(stepID string) *graph.Step {
	return r.AllSteps()[stepID]
}

// LookupExecution returns the most recent execution for the given step.
func (r *Run) LookupExecution(stepID string) *StepExecution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.Stack) - 1; i >= 0; i-- {
		if r.Stack[i].StepID == stepID {
			return r.Stack[i]
		}
	}
	return nil
}

// AllSteps returns the step lookup map, building it lazily.
func (r *Run) AllSteps() map[string]*graph.Step {
	r.mu.RLock()
	ret := r.allSteps
	r.mu.RUnlock()
	if ret != nil {
		return ret
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allSteps = r.Release.AllSteps()
	return r.allSteps
}

// Push appends executions to the run stack.
func (r *Run) Push(executions ...*StepExecution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stack = append(r.Stack, executions...)
}

// Remove drops an execution from the stack, preserving order.
func (r *Run) Remove(anExecution *StepExecution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Stack) == 0 || anExecution == nil {
		return
	}
	newStack := r.Stack[:0]
	for _, exec := range r.Stack {
		if exec.ID != anExecution.ID {
			newStack = append(newStack, exec)
		}
	}
	r.Stack = newStack
}

// Peek returns the most recently pushed execution.
func (r *Run) Peek() *StepExecution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.Stack) == 0 {
		return nil
	}
	return r.Stack[len(r.Stack)-1]
}

// GetState returns the run state.
func (r *Run) GetState() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.State
}

// SetState updates the run state and finish timestamp for terminal states.
func (r *Run) SetState(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = state
	switch state {
	case StateCompleted, StateFailed, StateCancelled:
		now := time.Now()
		r.FinishedAt = &now
	}
	r.UpdatedAt = time.Now()
}

// RecordError records a step failure on the run.
func (r *Run) RecordError(stepID string, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[stepID] = err.Error()
}

// SetDep records a dependency state on the execution.
func (r *Run) SetDep(e *StepExecution, stepID string, state StepState) {
	e.mux.Lock()
	if e.Dependencies == nil {
		e.Dependencies = make(map[string]StepState)
	}
	e.Dependencies[stepID] = state
	e.mux.Unlock()
}

// GetDep reads a dependency state; the second return reports presence.
func (r *Run) GetDep(e *StepExecution, stepID string) (StepState, bool) {
	e.mux.RLock()
	val, ok := e.Dependencies[stepID]
	e.mux.RUnlock()
	return val, ok
}

// IncrementActiveStepCount increments the active step counter.
func (r *Run) IncrementActiveStepCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ActiveStepCount++
	return r.ActiveStepCount
}

// DecrementActiveStepCount decrements the active step counter.
func (r *Run) DecrementActiveStepCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ActiveStepCount > 0 {
		r.ActiveStepCount--
	}
	return r.ActiveStepCount
}

// GetActiveStepCount returns the current active step count.
func (r *Run) GetActiveStepCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ActiveStepCount
}

// CopyFrom updates mutable fields from src. The mutex is deliberately not
// copied.
func (r *Run) CopyFrom(src any) {
	other, ok := src.(*Run)
	if !ok || other == nil || r == other {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SCN = other.SCN
	r.State = other.State
	r.UpdatedAt = other.UpdatedAt
	r.FinishedAt = other.FinishedAt
	r.Stack = other.Stack
	r.Errors = other.Errors
	r.ActiveStepCount = other.ActiveStepCount
}

// Clone creates a deep copy safe for use outside the original store. The
// Release pointer is shared since releases are immutable once loaded.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := &Run{
		ID:              r.ID,
		SCN:             r.SCN,
		Name:            r.Name,
		State:           r.State,
		Release:         r.Release,
		Event:           r.Event,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		FinishedAt:      r.FinishedAt,
		Session:         r.Session,
		Span:            r.Span,
		ActiveStepCount: r.ActiveStepCount,
		Policy:          r.Policy,
	}
	if len(r.Stack) > 0 {
		out.Stack = make([]*StepExecution, len(r.Stack))
		for i, ex := range r.Stack {
			out.Stack[i] = ex.Clone()
		}
	}
	if r.Errors != nil {
		out.Errors = make(map[string]string, len(r.Errors))
		for k, v := range r.Errors {
			out.Errors[k] = v
		}
	}
	if r.allSteps != nil {
		out.allSteps = make(map[string]*graph.Step, len(r.allSteps))
		for k, v := range r.allSteps {
			out.allSteps[k] = v
		}
	}
	return out
}
