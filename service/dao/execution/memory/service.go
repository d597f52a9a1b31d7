// Package memory implements an in-memory step execution store. All
// operations work with clones to prevent data races when callers mutate the
// returned instances.
package memory

import (
	"context"
	"sync"

	"github.com/relforge/tagship/runtime/execution"
	"github.com/relforge/tagship/service/dao"
)

// Service stores step executions keyed by execution ID.
type Service struct {
	executions map[string]*execution.StepExecution
	mux        sync.RWMutex
}

var _ dao.Service[string, execution.StepExecution] = (*Service)(nil)

// New creates an empty execution store.
func New() *Service {
	return &Service{executions: map[string]*execution.StepExecution{}}
}

// Save persists a clone of the supplied execution.
func (s *Service) Save(_ context.Context, e *execution.StepExecution) error {
	if e == nil {
		return dao.ErrNilEntity
	}
	if e.ID == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	s.executions[e.ID] = e.Clone()
	return nil
}

// Load retrieves a clone of the execution or dao.ErrNotFound.
func (s *Service) Load(_ context.Context, id string) (*execution.StepExecution, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.RLock()
	e, ok := s.executions[id]
	s.mux.RUnlock()
	if !ok {
		return nil, dao.ErrNotFound
	}
	return e.Clone(), nil
}

// Delete removes an execution.
func (s *Service) Delete(_ context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.executions[id]; !ok {
		return dao.ErrNotFound
	}
	delete(s.executions, id)
	return nil
}

// List returns clones of all executions; filtering is not implemented for
// the in-memory store.
func (s *Service) List(_ context.Context, _ ...*dao.Parameter) ([]*execution.StepExecution, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]*execution.StepExecution, 0, len(s.executions))
	for _, e := range s.executions {
		out = append(out, e.Clone())
	}
	return out, nil
}
