package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/model/graph"
	"github.com/relforge/tagship/policy"
	"github.com/relforge/tagship/runtime/execution"
	"github.com/relforge/tagship/service/dao"
	"github.com/relforge/tagship/service/executor"
	"github.com/relforge/tagship/service/messaging"
	"github.com/relforge/tagship/tracing"
)

// Config represents processor service configuration.
type Config struct {
	// WorkerCount is the number of workers processing steps
	WorkerCount int

	// MaxStepRetries is the retry allowance for steps without an explicit
	// retry policy; zero means a single attempt
	MaxStepRetries int

	// RetryDelay is the delay between step retry attempts
	RetryDelay time.Duration
}

// DefaultConfig returns the default processor configuration. Steps are not
// retried unless their definition opts in.
func DefaultConfig() Config {
	return Config{
		WorkerCount:    5,
		MaxStepRetries: 0,
		RetryDelay:     3 * time.Second,
	}
}

// Service drives release run execution.
type Service struct {
	config       Config
	runDAO       dao.Service[string, execution.Run]
	executionDAO dao.Service[string, execution.StepExecution]

	queue    messaging.Queue[execution.StepExecution]
	executor executor.Service

	sessListeners []execution.StateListener
	whenListeners []execution.WhenListener

	workers    []*worker
	workerWg   sync.WaitGroup
	shutdownCh chan struct{}
}

type worker struct {
	id       int
	service  *Service
	ctx      context.Context
	cancelFn context.CancelFunc
}

// shouldRetry returns whether the failed attempt may be repeated and after
// what delay. Without an explicit step policy the config allowance applies.
func (s *Service) shouldRetry(cfg *graph.Retry, attempts int) (bool, time.Duration) {
	if cfg == nil {
		if attempts >= s.config.MaxStepRetries {
			return false, 0
		}
		return true, s.config.RetryDelay
	}

	if strings.ToLower(cfg.Type) == "none" {
		return false, 0
	}

	max := cfg.MaxRetries
	if max == 0 {
		max = s.config.MaxStepRetries
	}
	if attempts >= max {
		return false, 0
	}

	baseDelay := s.config.RetryDelay
	if cfg.Delay != "" {
		if d, err := time.ParseDuration(cfg.Delay); err == nil {
			baseDelay = d
		}
	}

	switch strings.ToLower(cfg.Type) {
	case "exponential":
		mult := cfg.Multiplier
		if mult <= 1 {
			mult = 2
		}
		delay := float64(baseDelay) * math.Pow(mult, float64(attempts))
		if cfg.MaxDelay != "" {
			if md, err := time.ParseDuration(cfg.MaxDelay); err == nil {
				if time.Duration(delay) > md {
					delay = float64(md)
				}
			}
		}
		return true, time.Duration(delay)
	default: // fixed
		return true, baseDelay
	}
}

// New creates a new processor service.
func New(options ...Option) (*Service, error) {
	s := &Service{
		config:     DefaultConfig(),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if s.queue == nil {
		return nil, fmt.Errorf("message queue is required")
	}
	if s.runDAO == nil {
		return nil, fmt.Errorf("run store is required")
	}
	if s.executionDAO == nil {
		return nil, fmt.Errorf("execution store is required")
	}
	return s, nil
}

// Start spins up the worker goroutines.
func (s *Service) Start(ctx context.Context) error {
	for i := 0; i < s.config.WorkerCount; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		worker := &worker{
			id:       i,
			service:  s,
			ctx:      workerCtx,
			cancelFn: cancel,
		}
		s.workers = append(s.workers, worker)
		s.workerWg.Add(1)
		go worker.run()
	}
	return nil
}

// run processes messages from the queue.
func (w *worker) run() {
	defer w.service.workerWg.Done()

	for {
		msg, err := w.service.queue.Consume(w.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if msg == nil {
			// Polling queue with no pending work.
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if pErr := w.service.processMessage(w.ctx, msg); pErr != nil {
			log.Printf("worker %d: failed to process message: %v", w.id, pErr)
		}
	}
}

// StartRun begins execution of a release for the given ref event. The event
// facts (ref, tag or branch name, sha, repository, actor) are seeded into
// the run session so steps can reference them.
func (s *Service) StartRun(ctx context.Context, release *model.Release, refEvent *model.RefEvent, init map[string]interface{}) (aRun *execution.Run, err error) {
	if release == nil {
		return nil, fmt.Errorf("release cannot be nil")
	}
	if release.Pipeline == nil {
		return nil, fmt.Errorf("release %s has no pipeline", release.Name)
	}
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("processor.StartRun %s", release.Name), "INTERNAL")
	defer tracing.EndSpan(span, err)
	span.WithAttributes(map[string]string{"release.name": release.Name})

	runID := release.Name + "/" + uuid.New().String()
	span.WithAttributes(map[string]string{"run.id": runID})

	aRun = execution.NewRun(runID, release.Name, release, init)
	aRun.Event = refEvent
	if len(s.sessListeners) > 0 {
		aRun.Session.RegisterListeners(s.sessListeners...)
	}
	if len(s.whenListeners) > 0 {
		aRun.Session.RegisterWhenListeners(s.whenListeners...)
	}

	if p := policy.FromContext(ctx); p != nil {
		aRun.Policy = policy.ToConfig(p)
	}

	// Span covering the whole run lifetime; ended by the allocator once the
	// run reaches a terminal state.
	ctx, runSpan := tracing.StartSpan(ctx, fmt.Sprintf("run %s", release.Name), "INTERNAL")
	runSpan.WithAttributes(map[string]string{"run.id": runID, "release.name": release.Name})
	aRun.Span = runSpan

	seedEventFacts(aRun, refEvent)
	if release.Init != nil {
		if err = aRun.Session.ApplyParameters(release.Init); err != nil {
			return nil, fmt.Errorf("failed to apply release init: %w", err)
		}
	}

	anExecution := execution.NewStepExecution(runID, nil, release.Pipeline)
	aRun.Push(anExecution)
	aRun.SetState(execution.StateRunning)

	if err = s.runDAO.Save(ctx, aRun); err != nil {
		err = fmt.Errorf("failed to save run: %w", err)
		return nil, err
	}
	// The allocator picks up scheduling from here.
	return aRun, nil
}

func seedEventFacts(aRun *execution.Run, refEvent *model.RefEvent) {
	if refEvent == nil {
		return
	}
	session := aRun.Session
	session.Set("ref", refEvent.Ref)
	switch refEvent.Kind {
	case model.RefKindTag:
		session.Set("tag", refEvent.Name)
	case model.RefKindBranch:
		session.Set("branch", refEvent.Name)
	}
	if refEvent.SHA != "" {
		session.Set("sha", refEvent.SHA)
	}
	if refEvent.Repository != "" {
		session.Set("repository", refEvent.Repository)
	}
	if refEvent.Actor != "" {
		session.Set("actor", refEvent.Actor)
	}
}

// GetRun retrieves a run by ID.
func (s *Service) GetRun(ctx context.Context, runID string) (*execution.Run, error) {
	return s.runDAO.Load(ctx, runID)
}

// PauseRun pauses a running run.
func (s *Service) PauseRun(ctx context.Context, runID string) error {
	aRun, err := s.runDAO.Load(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if aRun == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	if aRun.GetState() != execution.StateRunning {
		return fmt.Errorf("run %s is not in running state", runID)
	}
	aRun.SetState(execution.StatePaused)
	return s.runDAO.Save(ctx, aRun)
}

// ResumeRun resumes a paused run.
func (s *Service) ResumeRun(ctx context.Context, runID string) error {
	aRun, err := s.runDAO.Load(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if aRun == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	if aRun.GetState() != execution.StatePaused {
		return fmt.Errorf("run %s is not in paused state", runID)
	}
	aRun.SetState(execution.StateRunning)
	return s.runDAO.Save(ctx, aRun)
	// The allocator schedules the next steps.
}

// CancelRun aborts a pending, running or paused run, cancelling all stacked
// executions.
func (s *Service) CancelRun(ctx context.Context, runID string) error {
	aRun, err := s.runDAO.Load(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if aRun == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	switch aRun.GetState() {
	case execution.StatePending, execution.StateRunning, execution.StatePaused:
	default:
		return fmt.Errorf("run %s already finished", runID)
	}
	for _, stacked := range aRun.Stack {
		if !stacked.State.IsTerminal() {
			stacked.Cancel()
		}
	}
	aRun.Stack = nil
	aRun.SetState(execution.StateCancelled)
	if aRun.Span != nil {
		tracing.EndSpan(aRun.Span, nil)
		aRun.Span = nil
	}
	return s.runDAO.Save(ctx, aRun)
}

// processMessage handles a single step execution message.
func (s *Service) processMessage(ctx context.Context, message messaging.Message[execution.StepExecution]) (err error) {
	anExecution := message.T()

	anExecution.Start()
	if err := s.executionDAO.Save(ctx, anExecution); err != nil {
		return message.Nack(err)
	}

	aRun, err := s.GetRun(ctx, anExecution.RunID)
	if err != nil {
		return message.Nack(err)
	}

	// Requeue work arriving for a paused run.
	if aRun.GetState() == execution.StatePaused {
		return message.Nack(fmt.Errorf("run is paused"))
	}

	execCtx := context.WithValue(ctx, execution.RunKey, aRun)
	execCtx = context.WithValue(execCtx, execution.ExecutionKey, anExecution)

	err = s.executor.Execute(execCtx, anExecution, aRun)
	if err != nil {
		return s.handleFailure(ctx, message, anExecution, aRun, err)
	}

	if anExecution.State.IsWaitForGate() {
		if err := s.executionDAO.Save(ctx, anExecution); err != nil {
			return message.Nack(err)
		}
		return message.Ack()
	}

	anExecution.Complete()
	if err := s.executionDAO.Save(ctx, anExecution); err != nil {
		return message.Nack(err)
	}
	return message.Ack()
}

// handleFailure retries the step when its definition allows, otherwise it
// fails the whole run: remaining work is cancelled and dropped.
func (s *Service) handleFailure(ctx context.Context, message messaging.Message[execution.StepExecution], anExecution *execution.StepExecution, aRun *execution.Run, cause error) error {
	step := aRun.LookupStep(anExecution.StepID)
	var retryCfg *graph.Retry
	if step != nil {
		retryCfg = step.Retry
	}

	if retry, delay := s.shouldRetry(retryCfg, anExecution.Attempts); retry {
		anExecution.Attempts++
		runAt := time.Now().Add(delay)
		anExecution.RunAfter = &runAt
		anExecution.State = execution.StepStateScheduled
		anExecution.Error = cause.Error()
		if daoErr := s.executionDAO.Save(ctx, anExecution); daoErr != nil {
			return message.Nack(fmt.Errorf("error %w and failed to save execution: %v", cause, daoErr))
		}

		// Keep the copy embedded in the run in sync so the allocator sees
		// the RunAfter/Attempts values and does not reschedule in a tight
		// loop.
		if loaded, lErr := s.runDAO.Load(ctx, anExecution.RunID); lErr == nil && loaded != nil {
			if inRun := loaded.LookupExecution(anExecution.StepID); inRun != nil {
				inRun.RunAfter = anExecution.RunAfter
				inRun.Attempts = anExecution.Attempts
				inRun.State = anExecution.State
				inRun.Error = anExecution.Error
			}
			_ = s.runDAO.Save(ctx, loaded)
		}
		return message.Ack()
	}

	anExecution.Fail(cause)
	if daoErr := s.executionDAO.Save(ctx, anExecution); daoErr != nil {
		return message.Nack(fmt.Errorf("encountered error: %w, and failed to save execution: %v", cause, daoErr))
	}

	if loaded, lErr := s.runDAO.Load(ctx, anExecution.RunID); lErr == nil && loaded != nil {
		if inRun := loaded.LookupExecution(anExecution.StepID); inRun != nil {
			inRun.State = execution.StepStateFailed
			inRun.Error = anExecution.Error
		}
		key := anExecution.StepID
		if step := loaded.LookupStep(anExecution.StepID); step != nil && step.Namespace != "" {
			key = step.Namespace
		}
		loaded.RecordError(key, cause)

		// Fail fast: cancel the remaining work and finish the run.
		for _, stacked := range loaded.Stack {
			if stacked.StepID != anExecution.StepID && !stacked.State.IsTerminal() {
				stacked.Cancel()
			}
		}
		loaded.Stack = nil
		loaded.SetState(execution.StateFailed)
		if loaded.Span != nil {
			tracing.EndSpan(loaded.Span, cause)
			loaded.Span = nil
		}
		_ = s.runDAO.Save(ctx, loaded)
	}

	_ = message.Ack()
	return nil
}

// Shutdown stops the processor service.
func (s *Service) Shutdown() {
	close(s.shutdownCh)
	for _, worker := range s.workers {
		worker.cancelFn()
	}
	s.workerWg.Wait()
}
