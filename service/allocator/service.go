package allocator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/relforge/tagship/model/graph"
	"github.com/relforge/tagship/runtime/execution"
	"github.com/relforge/tagship/runtime/expander"
	"github.com/relforge/tagship/service/dao"
	"github.com/relforge/tagship/service/event"
	"github.com/relforge/tagship/service/messaging"
	"github.com/relforge/tagship/tracing"
)

// Config represents allocator service configuration.
type Config struct {
	// PollingInterval is how often the allocator checks for runs that need
	// steps scheduled
	PollingInterval time.Duration
}

// DefaultConfig returns the default allocator configuration.
func DefaultConfig() Config {
	return Config{
		PollingInterval: 20 * time.Millisecond,
	}
}

// Service allocates step executions to runs.
type Service struct {
	config       Config
	runDAO       dao.Service[string, execution.Run]
	executionDAO dao.Service[string, execution.StepExecution]
	queue        messaging.Queue[execution.StepExecution]
	shutdownCh   chan struct{}
}

// New creates a new allocator service.
func New(runDAO dao.Service[string, execution.Run], executionDAO dao.Service[string, execution.StepExecution], queue messaging.Queue[execution.StepExecution], config Config) *Service {
	return &Service{
		config:       config,
		runDAO:       runDAO,
		executionDAO: executionDAO,
		queue:        queue,
		shutdownCh:   make(chan struct{}),
	}
}

// Start begins the step allocation loop.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.config.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdownCh:
			return nil
		case <-ticker.C:
			if err := s.allocateSteps(ctx); err != nil {
				log.Printf("error allocating steps: %v", err)
			}
		}
	}
}

// Shutdown stops the allocator service.
func (s *Service) Shutdown() {
	close(s.shutdownCh)
}

// allocateSteps finds runs that need steps scheduled and advances them.
func (s *Service) allocateSteps(ctx context.Context) error {
	runs, err := s.runDAO.List(ctx, dao.NewParameter("State", execution.StatePending, execution.StateRunning))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	for _, aRun := range runs {
		if aRun.GetState() != execution.StateRunning {
			continue
		}
		if err := s.scheduleNextSteps(ctx, aRun); err != nil {
			log.Printf("error scheduling steps for run %s: %v", aRun.ID, err)
			continue
		}
	}
	return nil
}

// scheduleNextSteps advances the top of the run stack by one decision.
func (s *Service) scheduleNextSteps(ctx context.Context, aRun *execution.Run) error {
	if len(aRun.Stack) == 0 {
		return s.finishRun(ctx, aRun)
	}

	anExecution := aRun.Peek()
	currentStep := aRun.LookupStep(anExecution.StepID)
	if currentStep == nil {
		return s.handleExecutionError(ctx, aRun, anExecution, fmt.Errorf("unknown step %s", anExecution.StepID))
	}

	switch anExecution.State {
	case execution.StepStatePending:
		done, err := s.handlePendingStep(ctx, aRun, currentStep, anExecution)
		if err != nil {
			return s.handleExecutionError(ctx, aRun, anExecution, err)
		}
		if done {
			return nil
		}
	case execution.StepStateRunning, execution.StepStateScheduled, execution.StepStatePaused, execution.StepStateWaitForGate:
		proceed, err := s.handleRunningStep(ctx, aRun, anExecution)
		if !proceed || err != nil {
			return err
		}
	}

	dependencyState, err := s.ensureDependencies(ctx, aRun, anExecution)
	if err != nil || dependencyState == execution.StepStateRunning {
		return err
	}
	if dependencyState == execution.StepStateFailed {
		return s.handleProcessedExecution(ctx, aRun, anExecution, dependencyState)
	}

	switch anExecution.State {
	case execution.StepStateWaitForDependencies, execution.StepStatePending:
		if currentStep.Action != nil {
			if err := s.updateExecutionState(ctx, aRun, anExecution, execution.StepStateScheduled); err != nil {
				return fmt.Errorf("failed to update execution state: %w", err)
			}
			return nil
		}
	}

	status, err := s.ensureSubSteps(ctx, aRun, anExecution)
	if err != nil {
		return err
	}
	if status == execution.StepStateRunning {
		return nil
	}
	return s.handleProcessedExecution(ctx, aRun, anExecution, status)
}

// finishRun moves an idle running run to its terminal state, applying the
// release post parameters and closing the run span.
func (s *Service) finishRun(ctx context.Context, aRun *execution.Run) error {
	if aRun.GetState() != execution.StateRunning {
		return nil
	}
	if len(aRun.Errors) > 0 {
		aRun.SetState(execution.StateFailed)
	} else {
		if post := aRun.Release.Post; len(post) > 0 {
			if err := aRun.Session.ApplyParameters(post); err != nil {
				aRun.RecordError(aRun.Name, err)
				aRun.SetState(execution.StateFailed)
			}
		}
		if aRun.GetState() == execution.StateRunning {
			aRun.SetState(execution.StateCompleted)
		}
	}
	if aRun.Span != nil {
		var endErr error
		if aRun.GetState() == execution.StateFailed {
			endErr = fmt.Errorf("run failed with %d errors", len(aRun.Errors))
		}
		tracing.EndSpan(aRun.Span, endErr)
		aRun.Span = nil
	}
	return s.runDAO.Save(ctx, aRun)
}

// handlePendingStep prepares a pending execution: it evaluates the
// when-condition, parks gated steps, applies a scheduleIn delay and binds
// init parameters. It reports whether the caller should stop here.
func (s *Service) handlePendingStep(ctx context.Context, aRun *execution.Run, currentStep *graph.Step, anExecution *execution.StepExecution) (bool, error) {
	if currentStep.When != "" {
		canRun, err := evaluateCondition(currentStep.When, aRun, currentStep, anExecution, true)
		if err != nil {
			return true, err
		}
		if !canRun {
			anExecution.Skip()
			return true, s.handleProcessedExecution(ctx, aRun, anExecution, anExecution.State)
		}
	}

	if currentStep.IsGated() {
		if anExecution.GateApproved == nil {
			if err := s.updateExecutionState(ctx, aRun, anExecution, execution.StepStateWaitForGate); err != nil {
				return true, err
			}
			s.publishEvent(ctx, aRun, anExecution, "gateRequested")
			return true, nil
		}
		if !*anExecution.GateApproved {
			reason := anExecution.GateReason
			if reason == "" {
				reason = "no reason given"
			}
			return true, fmt.Errorf("gate rejected for step %s: %s", currentStep.ID, reason)
		}
	}

	if currentStep.ScheduleIn != "" && anExecution.RunAfter == nil {
		delay, err := time.ParseDuration(currentStep.ScheduleIn)
		if err != nil {
			return true, fmt.Errorf("invalid scheduleIn for step %s: %w", currentStep.ID, err)
		}
		runAt := time.Now().Add(delay)
		anExecution.RunAfter = &runAt
	}

	if anExecution.Data == nil {
		anExecution.Data = make(map[string]interface{})
	}
	for _, parameter := range currentStep.Init {
		if _, exists := anExecution.Data[parameter.Name]; exists {
			continue
		}
		val, expErr := aRun.Session.Expand(parameter.Value)
		if expErr != nil {
			return true, expErr
		}
		anExecution.Data[parameter.Name] = val
	}
	return false, nil
}

// handleRunningStep reconciles the stacked execution with its stored
// counterpart and reports whether the allocator may keep advancing it.
func (s *Service) handleRunningStep(ctx context.Context, aRun *execution.Run, anExecution *execution.StepExecution) (bool, error) {
	storedExecution, err := s.executionDAO.Load(ctx, anExecution.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load execution: %w", err)
	}

	if anExecution.State == execution.StepStateScheduled && anExecution.RunAfter != nil {
		if time.Now().Before(*anExecution.RunAfter) {
			return false, nil
		}
		anExecution.RunAfter = nil
		anExecution.Schedule()
		return false, s.publishStepExecution(ctx, aRun, anExecution)
	}

	if storedExecution.State == anExecution.State && !storedExecution.State.IsTerminal() {
		return false, nil
	}
	anExecution.Merge(storedExecution)
	switch storedExecution.State {
	case execution.StepStateRunning, execution.StepStatePaused, execution.StepStateWaitForGate, execution.StepStatePending:
		return false, nil
	case execution.StepStateCompleted:
	case execution.StepStateFailed, execution.StepStateSkipped, execution.StepStateCancelled:
		return false, s.handleProcessedExecution(ctx, aRun, anExecution, storedExecution.State)
	}
	return true, nil
}

// ensureDependencies schedules outstanding dependencies and reports the
// aggregate dependency state: completed when all are met, failed when any
// failed, running while work remains.
func (s *Service) ensureDependencies(ctx context.Context, aRun *execution.Run, anExecution *execution.StepExecution) (execution.StepState, error) {
	completed := 0
	currentStep := aRun.LookupStep(anExecution.StepID)

	var scheduled []*execution.StepExecution
outer:
	for _, depRef := range anExecution.DependsOn {
		depStep := aRun.LookupStep(depRef)
		if depStep == nil {
			return execution.StepStateFailed, fmt.Errorf("step %s depends on unknown step %s", anExecution.StepID, depRef)
		}
		status, ok := aRun.GetDep(anExecution, depStep.ID)
		if !ok {
			status, _ = aRun.GetDep(anExecution, depRef)
		}
		// A sibling dependency may have completed before this execution was
		// created; inherit its state from the parent execution.
		if status == execution.StepStatePending {
			if parent := aRun.LookupExecution(anExecution.ParentStepID); parent != nil {
				if parentState, ok := aRun.GetDep(parent, depStep.ID); ok && parentState != execution.StepStatePending {
					status = parentState
					aRun.SetDep(anExecution, depStep.ID, parentState)
				}
			}
		}
		switch status {
		case execution.StepStatePending:
			scheduled = append(scheduled, execution.NewStepExecution(aRun.ID, currentStep, depStep))
			aRun.SetDep(anExecution, depStep.ID, execution.StepStateScheduled)
			break outer
		case execution.StepStateCompleted, execution.StepStateSkipped:
			completed++
		case execution.StepStateFailed, execution.StepStateCancelled:
			return execution.StepStateFailed, nil
		}
	}
	if len(scheduled) > 0 {
		aRun.Push(scheduled...)
		if err := s.updateExecutionState(ctx, aRun, anExecution, execution.StepStateWaitForDependencies); err != nil {
			return execution.StepStateFailed, fmt.Errorf("failed to update execution state: %w", err)
		}
	}
	if len(anExecution.DependsOn) == completed {
		return execution.StepStateCompleted, nil
	}
	return execution.StepStateRunning, nil
}

// ensureSubSteps schedules outstanding sub steps one at a time and reports
// the aggregate state.
func (s *Service) ensureSubSteps(ctx context.Context, aRun *execution.Run, anExecution *execution.StepExecution) (execution.StepState, error) {
	completed := 0
	currentStep := aRun.LookupStep(anExecution.StepID)

	var scheduled []*execution.StepExecution
outer:
	for i := range currentStep.Steps {
		subStep := currentStep.Steps[i]
		status, _ := aRun.GetDep(anExecution, subStep.ID)
		switch status {
		case execution.StepStatePending:
			scheduled = append(scheduled, execution.NewStepExecution(aRun.ID, currentStep, subStep))
			aRun.SetDep(anExecution, subStep.ID, execution.StepStateScheduled)
			break outer
		case execution.StepStateFailed, execution.StepStateCancelled:
			return execution.StepStateFailed, nil
		case execution.StepStateCompleted, execution.StepStateSkipped:
			completed++
		}
	}
	if len(scheduled) > 0 {
		aRun.Push(scheduled...)
		if err := s.updateExecutionState(ctx, aRun, anExecution, execution.StepStateWaitForSubSteps); err != nil {
			return execution.StepStateFailed, fmt.Errorf("failed to update execution state: %w", err)
		}
	}
	if len(currentStep.Steps) == completed {
		return execution.StepStateCompleted, nil
	}
	return execution.StepStateRunning, nil
}

func (s *Service) updateExecutionState(ctx context.Context, aRun *execution.Run, anExecution *execution.StepExecution, state execution.StepState) error {
	if state == execution.StepStateScheduled {
		anExecution.Schedule()
	}
	anExecution.State = state
	if err := s.executionDAO.Save(ctx, anExecution); err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	if err := s.runDAO.Save(ctx, aRun); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if state == execution.StepStateScheduled && anExecution.RunAfter == nil {
		if err := s.publishStepExecution(ctx, aRun, anExecution); err != nil {
			return fmt.Errorf("failed to publish step execution: %w", err)
		}
	}
	return nil
}

// publishStepExecution hands the execution to the processor queue, emitting
// a "scheduled" event when an event service is attached to the context.
func (s *Service) publishStepExecution(ctx context.Context, aRun *execution.Run, anExecution *execution.StepExecution) error {
	s.publishEvent(ctx, aRun, anExecution, "scheduled")
	return s.queue.Publish(ctx, anExecution)
}

func (s *Service) publishEvent(ctx context.Context, aRun *execution.Run, anExecution *execution.StepExecution, eventType string) {
	value := ctx.Value(execution.EventKey)
	if value == nil {
		return
	}
	service := value.(*event.Service)
	publisher, err := event.PublisherOf[*execution.StepExecution](service)
	if err != nil {
		return
	}
	step := aRun.LookupStep(anExecution.StepID)
	eCtx := anExecution.Context(eventType, step)
	anEvent := event.NewEvent[*execution.StepExecution](eCtx, anExecution)
	if err = publisher.Publish(ctx, anEvent); err != nil {
		log.Printf("failed to publish %s event: %v", eventType, err)
	}
}

// handleTransition creates a new execution path for a goto transition.
func (s *Service) handleTransition(ctx context.Context, runID string, fromStepID string, toStepID string) error {
	aRun, err := s.runDAO.Load(ctx, runID)
	if err != nil {
		return err
	}
	parentStep := aRun.LookupStep(fromStepID)
	nextStep := aRun.LookupStep(toStepID)
	if nextStep == nil {
		return fmt.Errorf("goto target %s not found", toStepID)
	}
	aRun.Push(execution.NewStepExecution(runID, parentStep, nextStep))
	return s.runDAO.Save(ctx, aRun)
	// The allocator schedules the next step on a later tick.
}

// handleProcessedExecution finalises an execution that reached a terminal
// state: it records the output under the step namespace, applies post
// parameters, updates the parent dependency map and pops the stack.
func (s *Service) handleProcessedExecution(ctx context.Context, aRun *execution.Run, anExecution *execution.StepExecution, state execution.StepState) error {
	currentStep := aRun.LookupStep(anExecution.StepID)

	if state == execution.StepStateCompleted && currentStep != nil {
		output := anExecution.Output
		var outputMap = make(map[string]interface{})
		if data, err := json.Marshal(anExecution.Output); err == nil {
			if err = json.Unmarshal(data, &outputMap); err == nil {
				output = outputMap
			}
		}
		if currentStep.Namespace != "" {
			aRun.Session.Set(currentStep.Namespace, output)
		}
		if err := s.handleStepDone(currentStep, aRun, anExecution, outputMap); err != nil {
			return err
		}
	}
	if anExecution.Error != "" {
		key := anExecution.StepID
		if currentStep != nil && currentStep.Namespace != "" {
			key = currentStep.Namespace
		}
		aRun.RecordError(key, fmt.Errorf("%s", anExecution.Error))
	}
	// Record the terminal state on every stacked execution that tracks this
	// step as a dependency or sub step, whether referenced by ID or name.
	for _, stacked := range aRun.Stack {
		if _, ok := aRun.GetDep(stacked, anExecution.StepID); ok {
			aRun.SetDep(stacked, anExecution.StepID, state)
		}
		if currentStep != nil && currentStep.Name != "" {
			if _, ok := aRun.GetDep(stacked, currentStep.Name); ok {
				aRun.SetDep(stacked, currentStep.Name, state)
			}
		}
	}
	aRun.Remove(anExecution)
	if err := s.runDAO.Save(ctx, aRun); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if anExecution.GotoStep != "" {
		return s.handleTransition(ctx, aRun.ID, anExecution.StepID, anExecution.GotoStep)
	}
	return nil
}

// handleStepDone applies the step post parameters against a session overlay
// of the output and resolves goto transitions.
func (s *Service) handleStepDone(currentStep *graph.Step, aRun *execution.Run, anExecution *execution.StepExecution, outputMap map[string]interface{}) error {
	source := aRun.Session.Clone()
	for k, v := range outputMap {
		source.Set(k, v)
	}

	for _, parameter := range currentStep.Post {
		evaluated, err := expander.Expand(parameter.Value, source.State)
		if err != nil {
			continue
		}
		name := parameter.Name
		if strings.HasSuffix(name, "[]") {
			aRun.Session.Append(strings.TrimSuffix(name, "[]"), evaluated)
			continue
		}
		aRun.Session.Set(name, evaluated)
	}

	for _, transition := range currentStep.Goto {
		conditionMet, err := evaluateCondition(transition.When, aRun, currentStep, anExecution, false)
		if err != nil {
			return err
		}
		if conditionMet && transition.Step != "" {
			anExecution.GotoStep = transition.Step
			break
		}
	}
	return nil
}

func (s *Service) handleExecutionError(ctx context.Context, aRun *execution.Run, anExecution *execution.StepExecution, err error) error {
	anExecution.Error += err.Error()
	return s.handleProcessedExecution(ctx, aRun, anExecution, execution.StepStateFailed)
}
