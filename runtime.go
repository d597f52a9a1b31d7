package tagship

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relforge/tagship/extension"
	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/model/graph"
	"github.com/relforge/tagship/runtime/execution"
	releaseaction "github.com/relforge/tagship/service/action/release"
	"github.com/relforge/tagship/service/allocator"
	"github.com/relforge/tagship/service/dao"
	releasedao "github.com/relforge/tagship/service/dao/release"
	"github.com/relforge/tagship/service/event"
	"github.com/relforge/tagship/service/gate"
	"github.com/relforge/tagship/service/messaging"
	"github.com/relforge/tagship/service/processor"
	"github.com/relforge/tagship/service/trigger"
)

// Runtime orchestrates release runs.
type Runtime struct {
	releaseService *releaseaction.Service
	releaseDAO     *releasedao.Service
	runDAO         dao.Service[string, execution.Run]
	executionDAO   dao.Service[string, execution.StepExecution]
	processor      *processor.Service
	allocator      *allocator.Service
	trigger        *trigger.Service
	gate           gate.Service
	events         *event.Service
	actions        *extension.Actions
	// queue is the shared step execution queue (processor inbound)
	queue messaging.Queue[execution.StepExecution]
}

// RefreshRelease discards any cached copy of the release definition located
// at the given URL. The next LoadRelease call reloads the file via the
// configured meta-service.
func (r *Runtime) RefreshRelease(location string) error {
	if r == nil || r.releaseDAO == nil {
		return fmt.Errorf("runtime not fully initialised, releaseDAO missing")
	}
	r.releaseDAO.Refresh(location)
	return nil
}

// UpsertDefinition parses the supplied YAML bytes and stores the resulting
// release definition under the specified location. When data is nil the call
// falls back to RefreshRelease, causing a lazy reload on next use. A trigger
// index entry is updated alongside so dispatching picks the new definition
// up immediately.
func (r *Runtime) UpsertDefinition(location string, data []byte) error {
	if r == nil || r.releaseDAO == nil {
		return fmt.Errorf("runtime not fully initialised, releaseDAO missing")
	}
	if data == nil {
		return r.RefreshRelease(location)
	}
	aRelease, err := r.releaseDAO.DecodeYAML(data)
	if err != nil {
		return fmt.Errorf("failed to decode release YAML: %w", err)
	}
	r.releaseDAO.Upsert(location, aRelease)
	if r.trigger != nil {
		r.trigger.Upsert(aRelease)
	}
	return nil
}

// LoadRelease loads a release definition.
func (r *Runtime) LoadRelease(ctx context.Context, location string) (*model.Release, error) {
	return r.releaseDAO.Load(ctx, location)
}

// DecodeYAMLRelease decodes a release definition from raw YAML.
func (r *Runtime) DecodeYAMLRelease(data []byte) (*model.Release, error) {
	return r.releaseDAO.DecodeYAML(data)
}

// RegisterRelease loads a release definition and adds it to the trigger
// index so ref events can dispatch it.
func (r *Runtime) RegisterRelease(ctx context.Context, location string) (*model.Release, error) {
	return r.trigger.Register(ctx, location)
}

// Dispatch starts runs for every registered release whose trigger matches
// the ref event.
func (r *Runtime) Dispatch(ctx context.Context, refEvent model.RefEvent) ([]*execution.Run, error) {
	return r.trigger.Dispatch(r.executionContext(ctx), refEvent)
}

// RunFromContext returns the run bound to the context, if any.
func (r *Runtime) RunFromContext(ctx context.Context) *execution.Run {
	if parentRun := execution.ContextValue[*execution.Run](ctx); parentRun != nil {
		return parentRun
	}
	return nil
}

// StartRun starts a new run for the release, optionally bound to the ref
// event that triggered it.
func (r *Runtime) StartRun(ctx context.Context, aRelease *model.Release, refEvent *model.RefEvent, initialState map[string]interface{}) (*execution.Run, execution.Wait, error) {
	aRun, err := r.processor.StartRun(r.executionContext(ctx), aRelease, refEvent, initialState)
	if err != nil {
		return nil, nil, err
	}
	wait := func(ctx context.Context, timeout time.Duration) (*execution.RunOutput, error) {
		output, err := r.releaseService.WaitForRun(ctx, aRun.ID, int(timeout.Milliseconds()))
		if err != nil {
			return nil, err
		}
		return (*execution.RunOutput)(output), nil
	}
	return aRun, wait, nil
}

// WaitForRun blocks until the run reaches a terminal state or the timeout
// elapses.
func (r *Runtime) WaitForRun(ctx context.Context, runID string, timeoutMs int) (*execution.RunOutput, error) {
	output, err := r.releaseService.WaitForRun(ctx, runID, timeoutMs)
	if err != nil {
		return nil, err
	}
	return (*execution.RunOutput)(output), nil
}

// PauseRun suspends scheduling of new steps for the run.
func (r *Runtime) PauseRun(ctx context.Context, runID string) error {
	return r.processor.PauseRun(ctx, runID)
}

// ResumeRun resumes a paused run.
func (r *Runtime) ResumeRun(ctx context.Context, runID string) error {
	return r.processor.ResumeRun(ctx, runID)
}

// CancelRun cancels a run and all its in-flight steps.
func (r *Runtime) CancelRun(ctx context.Context, runID string) error {
	return r.processor.CancelRun(ctx, runID)
}

// Start starts the runtime.
func (r *Runtime) Start(ctx context.Context) error {
	ctx = r.executionContext(ctx)
	go r.processor.Start(ctx)
	go r.allocator.Start(ctx)
	return nil
}

// Shutdown stops the runtime.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.processor.Shutdown()
	r.allocator.Shutdown()
	return nil
}

// Run returns a run by ID.
func (r *Runtime) Run(ctx context.Context, id string) (*execution.Run, error) {
	return r.runDAO.Load(ctx, id)
}

// Execution returns a step execution by ID.
func (r *Runtime) Execution(ctx context.Context, id string) (*execution.StepExecution, error) {
	return r.executionDAO.Load(ctx, id)
}

// Runs returns runs matching the supplied criteria.
func (r *Runtime) Runs(ctx context.Context, parameter ...*dao.Parameter) ([]*execution.Run, error) {
	return r.runDAO.List(ctx, parameter...)
}

// ScheduleExecution submits a single ad-hoc step execution described by the
// supplied action; the returned wait collects its result. The execution
// travels the shared allocator/processor queue, so retry, policy and tracing
// semantics are identical to regular steps.
func (r *Runtime) ScheduleExecution(ctx context.Context, action *graph.Action, input interface{}) (func(timeout time.Duration) (*execution.StepExecution, error), error) {
	if action == nil || action.Service == "" || action.Method == "" {
		return nil, fmt.Errorf("action service and method are required")
	}
	adhoc := model.NewRelease("adhoc-" + uuid.New().String())
	step := adhoc.NewStep(action.Service + "-" + action.Method)
	step.WithAction(action.Service, action.Method, input)

	aRun, wait, err := r.StartRun(ctx, adhoc, nil, nil)
	if err != nil {
		return nil, err
	}
	return func(timeout time.Duration) (*execution.StepExecution, error) {
		if _, err := wait(ctx, timeout); err != nil {
			return nil, err
		}
		return r.lookupExecution(ctx, aRun.ID, step.ID)
	}, nil
}

// lookupExecution finds the most recent stored execution of the step.
func (r *Runtime) lookupExecution(ctx context.Context, runID, stepID string) (*execution.StepExecution, error) {
	executions, err := r.executionDAO.List(ctx)
	if err != nil {
		return nil, err
	}
	var found *execution.StepExecution
	for _, candidate := range executions {
		if candidate.RunID != runID || candidate.StepID != stepID {
			continue
		}
		if found == nil || candidate.ScheduledAt.After(found.ScheduledAt) {
			found = candidate
		}
	}
	if found == nil {
		return nil, fmt.Errorf("execution for step %q of run %q not found", stepID, runID)
	}
	return found, nil
}

// executionContext attaches the action registry and event service so every
// engine component downstream can publish and resolve against them.
func (r *Runtime) executionContext(ctx context.Context) context.Context {
	if execution.ContextValue[*execution.Context](ctx) != nil {
		return ctx
	}
	return execution.NewContext(ctx, r.actions, r.events)
}
