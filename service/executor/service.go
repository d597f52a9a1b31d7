package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/viant/structology/conv"

	"github.com/relforge/tagship/extension"
	"github.com/relforge/tagship/model/graph"
	"github.com/relforge/tagship/policy"
	"github.com/relforge/tagship/runtime/execution"
	"github.com/relforge/tagship/service/event"
)

// Listener is invoked once a step action completes, whether or not it
// returned an error.  Implementations can log or collect metrics; the input
// they receive has credential-looking values already masked.
type Listener func(step *graph.Step, input, output interface{})

// StdoutListener prints the executed step with its redacted input and output
// as JSON.  Marshal errors are ignored, they indicate non-serialisable
// values that could not be printed anyway.
func StdoutListener(step *graph.Step, input, output interface{}) {
	if step == nil || step.Action == nil {
		return
	}
	if input != nil {
		in, _ := json.Marshal(input)
		fmt.Printf("[%s] input: %s\n", step.ID, in)
	}
	if output != nil {
		out, _ := json.Marshal(output)
		fmt.Printf("[%s] output: %s\n", step.ID, out)
	}
}

// Option customises the executor instance.
type Option func(*service)

// WithListener overrides the listener invoked after every executed step.
// Passing nil disables the callback entirely.
func WithListener(l Listener) Option {
	return func(s *service) {
		s.listener = l
	}
}

// Service executes a single step of a run.
type Service interface {
	Execute(ctx context.Context, execution *execution.StepExecution, aRun *execution.Run) error
}

type service struct {
	actions   *extension.Actions
	converter *conv.Converter
	listener  Listener
}

// Execute runs the step action bound to the execution and publishes an
// "executed" event when an event service is attached to the context.
func (s *service) Execute(ctx context.Context, anExecution *execution.StepExecution, aRun *execution.Run) error {
	step := aRun.LookupStep(anExecution.StepID)
	if step == nil {
		return fmt.Errorf("%w: %s", ErrStepNotFound, anExecution.StepID)
	}

	if err := s.execute(ctx, anExecution, aRun, step); err != nil {
		return err
	}

	if value := ctx.Value(execution.EventKey); value != nil {
		service := value.(*event.Service)
		publisher, err := event.PublisherOf[*execution.StepExecution](service)
		if err == nil {
			eCtx := anExecution.Context("executed", step)
			anEvent := event.NewEvent[*execution.StepExecution](eCtx, anExecution)
			if err = publisher.Publish(ctx, anEvent); err != nil {
				log.Printf("failed to publish step execution event: %v", err)
			}
		}
	}
	return nil
}

func (s *service) execute(ctx context.Context, anExecution *execution.StepExecution, aRun *execution.Run, step *graph.Step) error {
	action := step.Action
	if action == nil {
		return nil
	}

	stepService := s.actions.Lookup(action.Service)
	if stepService == nil {
		return fmt.Errorf("service %v not found", action.Service)
	}
	if action.Method == "" {
		return fmt.Errorf("%w: service %v", ErrMethodNotFound, action.Service)
	}
	method, err := stepService.Method(action.Method)
	if err != nil {
		return fmt.Errorf("failed to find method %v for service %v: %w", action.Method, action.Service, err)
	}

	session := aRun.Session.StepSession(anExecution.Data,
		execution.WithConverter(s.converter),
		execution.WithTypes(s.actions.Types()))

	if err = session.ApplyParameters(step.Init); err != nil {
		return err
	}

	signature := stepService.Methods().Lookup(action.Method)

	output, err := session.TypedValue(signature.Output, map[string]interface{}{})
	if err != nil {
		return err
	}

	stepInput := action.Input
	if stepInput, err = session.Expand(action.Input); err != nil {
		return err
	}
	input, err := session.TypedValue(signature.Input, stepInput)
	anExecution.Input = Redact(input)
	if err != nil {
		return err
	}

	if aRun.Policy != nil {
		switch aRun.Policy.Decide(action.Service + "." + action.Method) {
		case policy.DecisionDeny:
			return fmt.Errorf("action %s:%s blocked by policy", action.Service, action.Method)
		case policy.DecisionSkip:
			anExecution.Output = output
			return nil
		}
	}

	if err = method(ctx, input, output); err != nil {
		return err
	}

	if s.listener != nil {
		s.listener(step, Redact(input), output)
	}

	anExecution.Output = output
	return nil
}

// NewService creates an executor over the given action registry.
func NewService(actions *extension.Actions, opts ...Option) Service {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	options.AccessUnexported = true

	s := &service{
		actions:   actions,
		converter: conv.NewConverter(options),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}
