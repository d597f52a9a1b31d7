package tagship

import (
	"github.com/viant/afs/storage"
	"github.com/viant/x"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/relforge/tagship/model/types"
	"github.com/relforge/tagship/progress"
	"github.com/relforge/tagship/runtime/execution"
	"github.com/relforge/tagship/service/dao"
	"github.com/relforge/tagship/service/event"
	"github.com/relforge/tagship/service/executor"
	"github.com/relforge/tagship/service/gate"
	"github.com/relforge/tagship/service/messaging"
	"github.com/relforge/tagship/service/meta"
	"github.com/relforge/tagship/tracing"
)

// Option customises the engine facade.
type Option func(s *Service)

// WithGateService sets the gate service used for manual release approval.
func WithGateService(svc gate.Service) Option {
	return func(s *Service) { s.gateService = svc }
}

// WithExtensionTypes sets the extension types
func WithExtensionTypes(types ...*x.Type) Option {
	return func(s *Service) {
		s.extensionTypes = types
	}
}

// WithEventService sets the event service
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.eventService = service
	}
}

// WithMetaService sets the meta service
func WithMetaService(service *meta.Service) Option {
	return func(s *Service) {
		s.metaService = service
	}
}

// WithExtensionServices sets the extension action services
func WithExtensionServices(services ...types.Service) Option {
	return func(s *Service) {
		s.extensionServices = services
	}
}

// WithQueue sets the step execution queue
func WithQueue(queue messaging.Queue[execution.StepExecution]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithRootStepNodeName sets the document key holding the step graph
func WithRootStepNodeName(name string) Option {
	return func(s *Service) {
		s.rootStepNodeName = name
	}
}

// WithRunDAO sets the run DAO
func WithRunDAO(dao dao.Service[string, execution.Run]) Option {
	return func(s *Service) {
		s.runtime.runDAO = dao
	}
}

// WithExecutionDAO sets the step execution DAO
func WithExecutionDAO(dao dao.Service[string, execution.StepExecution]) Option {
	return func(s *Service) {
		s.runtime.executionDAO = dao
	}
}

// WithProcessorWorkers sets the processor worker count
func WithProcessorWorkers(count int) Option {
	return func(s *Service) {
		s.processorWorkers = count
	}
}

// WithProgress installs a progress tracker fed from step events.
func WithProgress(tracker *progress.Progress) Option {
	return func(s *Service) {
		s.progress = tracker
	}
}

// WithExecutorOptions lets the caller supply additional options passed to
// executor.NewService (e.g. installing an execution listener).
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(s *Service) {
		s.executorOptions = append(s.executorOptions, opts...)
	}
}

// WithMetaBaseURL sets the base URL release definitions are resolved against
func WithMetaBaseURL(url string) Option {
	return func(s *Service) {
		s.metaBaseURL = url
	}
}

// WithMetaFsOptions sets file system options for definition loading
func WithMetaFsOptions(options ...storage.Option) Option {
	return func(s *Service) {
		s.metaFsOptions = options
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If
// outputFile is empty the stdout exporter is used; otherwise spans are
// written to the supplied file path. Safe to call multiple times; the first
// successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, for example OTLP. Safe to call multiple times; the first
// successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
