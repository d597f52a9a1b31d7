package execution

import (
	"context"
	"reflect"

	"github.com/relforge/tagship/extension"
	"github.com/relforge/tagship/model/graph"
	"github.com/relforge/tagship/service/event"
)

// Context is the execution context handed to action services. It embeds the
// caller's context.Context and exposes the current run, execution and step
// through typed keys.
type Context struct {
	run       *Run
	execution *StepExecution
	actions   *extension.Actions
	events    *event.Service
	step      *graph.Step
	context.Context
}

var RunKey = KeyOf[*Run]()
var ExecutionKey = KeyOf[*StepExecution]()
var actionsKey = KeyOf[*extension.Actions]()
var EventKey = KeyOf[*event.Service]()
var ContextKey = KeyOf[*Context]()
var StepKey = KeyOf[*graph.Step]()

// NewContext creates a context with the given registries attached.
func NewContext(ctx context.Context, actions *extension.Actions, service *event.Service) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		Context: ctx,
		actions: actions,
		events:  service,
	}
}

// ExecutionContext returns a copy bound to the provided run, execution and
// step.
func (c *Context) ExecutionContext(run *Run, execution *StepExecution, step *graph.Step) *Context {
	clone := *c
	clone.run = run
	clone.execution = execution
	clone.step = step
	return &clone
}

func (c *Context) Value(key any) any {
	switch key {
	case RunKey:
		return c.run
	case ExecutionKey:
		return c.execution
	case actionsKey:
		return c.actions
	case EventKey:
		return c.events
	case ContextKey:
		return c
	case StepKey:
		return c.step
	}
	return c.Context.Value(key)
}

// ContextValue returns the value of the provided type from the context.
func ContextValue[T any](ctx context.Context) T {
	key := KeyOf[T]()
	if value := ctx.Value(key); value != nil {
		return value.(T)
	}
	var t T
	return t
}

// KeyOf returns the reflect.Type of the provided type.
func KeyOf[T any]() reflect.Type {
	var a T
	return reflect.TypeOf(a)
}
