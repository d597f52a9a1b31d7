package tagship

import (
	"context"
	"encoding/json"
	"log"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/x"

	"github.com/relforge/tagship/extension"
	"github.com/relforge/tagship/model/types"
	"github.com/relforge/tagship/progress"
	"github.com/relforge/tagship/runtime/execution"
	"github.com/relforge/tagship/service/action/nop"
	"github.com/relforge/tagship/service/action/printer"
	"github.com/relforge/tagship/service/action/registry"
	releaseaction "github.com/relforge/tagship/service/action/release"
	aexec "github.com/relforge/tagship/service/action/system/exec"
	asecret "github.com/relforge/tagship/service/action/system/secret"
	astorage "github.com/relforge/tagship/service/action/system/storage"
	"github.com/relforge/tagship/service/action/vcs"
	"github.com/relforge/tagship/service/allocator"
	"github.com/relforge/tagship/service/dao/execution/memory"
	releasedao "github.com/relforge/tagship/service/dao/release"
	runmemory "github.com/relforge/tagship/service/dao/run/memory"
	"github.com/relforge/tagship/service/event"
	"github.com/relforge/tagship/service/executor"
	"github.com/relforge/tagship/service/gate"
	gatememory "github.com/relforge/tagship/service/gate/memory"
	"github.com/relforge/tagship/service/messaging"
	mmemory "github.com/relforge/tagship/service/messaging/memory"
	"github.com/relforge/tagship/service/meta"
	"github.com/relforge/tagship/service/processor"
	"github.com/relforge/tagship/service/trigger"
)

// Service is the engine facade: it wires stores, queues, the executor,
// processor, allocator, trigger index and gate service, and registers the
// built-in actions.
type Service struct {
	runtime           *Runtime
	metaService       *meta.Service
	actions           *extension.Actions
	extensionTypes    []*x.Type
	extensionServices []types.Service
	executor          executor.Service
	executorOptions   []executor.Option
	queue             messaging.Queue[execution.StepExecution]
	eventService      *event.Service
	gateService       gate.Service
	progress          *progress.Progress
	rootStepNodeName  string
	metaBaseURL       string
	metaFsOptions     []storage.Option
	processorWorkers  int
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
	s.actions = extension.NewActions(s.extensionTypes...)
	s.executor = executor.NewService(s.actions, s.executorOptions...)
	workers := s.processorWorkers
	if workers == 0 {
		workers = 1
	}
	s.runtime.processor, _ = processor.New(
		processor.WithExecutor(s.executor),
		processor.WithMessageQueue(s.queue),
		processor.WithWorkers(workers),
		processor.WithExecutionDAO(s.runtime.executionDAO),
		processor.WithRunDAO(s.runtime.runDAO))
	s.actions.Register(printer.New())
	s.actions.Register(nop.New())
	s.actions.Register(vcs.New())
	s.actions.Register(registry.New())
	s.actions.Register(aexec.New())
	s.actions.Register(astorage.New())
	s.actions.Register(asecret.New())
	for _, service := range s.extensionServices {
		s.actions.Register(service)
	}
	s.runtime.releaseService = releaseaction.New(s.runtime.processor, s.runtime.releaseDAO, s.runtime.runDAO)
	s.actions.Register(s.runtime.releaseService)
	s.runtime.allocator = allocator.New(s.runtime.runDAO, s.runtime.executionDAO, s.queue, allocator.DefaultConfig())
	s.runtime.trigger = trigger.New(s.runtime.releaseDAO, s.runtime.processor)
	s.runtime.gate = s.gateService
	s.runtime.events = s.eventService
	s.runtime.actions = s.actions
	s.runtime.queue = s.queue

	if err := event.SetListenerOf[*execution.StepExecution](s.eventService, s.onStepEvent); err != nil {
		log.Printf("failed to install step event listener: %v", err)
	}
}

// onStepEvent forwards gate requests to the gate service and keeps the
// optional progress tracker current.
func (s *Service) onStepEvent(e *event.Event[*execution.StepExecution]) {
	if e == nil || e.Context == nil {
		return
	}
	switch e.Context.EventType {
	case "gateRequested":
		if s.gateService == nil || e.Data == nil {
			return
		}
		args, _ := json.Marshal(executor.Redact(e.Data.Data))
		request := &gate.Request{
			RunID:       e.Context.RunID,
			StepID:      e.Context.StepID,
			ExecutionID: e.Data.ID,
			Action:      e.Context.Service + "." + e.Context.Method,
			Args:        args,
		}
		if err := s.gateService.Request(context.Background(), request); err != nil {
			log.Printf("failed to record gate request for %v: %v", e.Data.ID, err)
		}
	case "scheduled":
		s.progress.Update(progress.Delta{Total: 1, Pending: 1})
	case "executed":
		delta := progress.Delta{Pending: -1}
		if e.Data != nil && e.Data.State == execution.StepStateFailed {
			delta.Failed = 1
		} else {
			delta.Completed = 1
		}
		s.progress.Update(delta)
	}
}

// RegisterExtensionTypes registers additional Go types usable in pipelines.
func (s *Service) RegisterExtensionTypes(types ...*x.Type) {
	for i := range types {
		s.actions.Types().Register(types[i])
	}
}

// RegisterExtensionServices registers additional action services.
func (s *Service) RegisterExtensionServices(services ...types.Service) {
	for i := range services {
		s.actions.Register(services[i])
	}
}

// Runtime returns the engine runtime.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// NewContext attaches the action registry and event service to the context.
func (s *Service) NewContext(ctx context.Context) context.Context {
	return execution.NewContext(ctx, s.actions, s.eventService)
}

// Gate returns the gate service.
func (s *Service) Gate() gate.Service {
	return s.gateService
}

func (s *Service) ensureBaseSetup() {
	if s.metaService == nil {
		s.metaService = meta.New(afs.New(), s.metaBaseURL, s.metaFsOptions...)
	}
	if s.runtime.releaseDAO == nil {
		if s.rootStepNodeName == "" {
			s.rootStepNodeName = "pipeline"
		}
		s.runtime.releaseDAO = releasedao.New(
			releasedao.WithRootStepNodeName(s.rootStepNodeName),
			releasedao.WithMetaService(s.metaService))
	}
	if s.queue == nil {
		s.queue = mmemory.NewQueue[execution.StepExecution](mmemory.DefaultConfig())
	}
	if s.runtime.runDAO == nil {
		s.runtime.runDAO = runmemory.New()
	}
	if s.runtime.executionDAO == nil {
		s.runtime.executionDAO = memory.New()
	}
	if s.eventService == nil {
		s.eventService, _ = event.New(messaging.VendorMemory)
	}
	if s.gateService == nil {
		s.gateService = gatememory.New(s.runtime.executionDAO, gatememory.WithRunDAO(s.runtime.runDAO))
	}
}

// New creates the engine facade.
func New(options ...Option) *Service {
	ret := &Service{runtime: &Runtime{}}
	ret.init(options)
	return ret
}
