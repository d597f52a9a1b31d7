package processor

import (
	"github.com/relforge/tagship/runtime/execution"
	"github.com/relforge/tagship/service/dao"
	"github.com/relforge/tagship/service/executor"
	"github.com/relforge/tagship/service/messaging"
)

// Option customises the processor service.
type Option func(*Service)

// WithRunDAO sets the run store implementation.
func WithRunDAO(runDAO dao.Service[string, execution.Run]) Option {
	return func(s *Service) {
		s.runDAO = runDAO
	}
}

// WithExecutionDAO sets the step execution store implementation.
func WithExecutionDAO(executionDAO dao.Service[string, execution.StepExecution]) Option {
	return func(s *Service) {
		s.executionDAO = executionDAO
	}
}

// WithMessageQueue sets the message queue implementation.
func WithMessageQueue(queue messaging.Queue[execution.StepExecution]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithExecutor sets the step executor for the service.
func WithExecutor(executor executor.Service) Option {
	return func(s *Service) {
		s.executor = executor
	}
}

// WithWorkers sets the number of worker goroutines.
func WithWorkers(count int) Option {
	return func(s *Service) {
		s.config.WorkerCount = count
	}
}

// WithSessionListeners registers state listeners copied to every run session
// created by StartRun.
func WithSessionListeners(fns ...execution.StateListener) Option {
	return func(s *Service) {
		if len(fns) == 0 {
			return
		}
		s.sessListeners = append(s.sessListeners, fns...)
	}
}

// WithWhenListeners registers callbacks invoked after every when-condition
// evaluation.
func WithWhenListeners(fns ...execution.WhenListener) Option {
	return func(s *Service) {
		if len(fns) == 0 {
			return
		}
		s.whenListeners = append(s.whenListeners, fns...)
	}
}

// WithConfig sets the configuration for the service.
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}
