// Package memory implements an in-memory, thread-safe run store.
package memory

import (
	"context"
	"sync"

	"github.com/relforge/tagship/runtime/execution"
	"github.com/relforge/tagship/service/dao"
	"github.com/relforge/tagship/service/dao/criteria"
)

// Service stores runs in a map. Saving an already stored run merges the
// mutable fields so callers holding a reference observe the update.
type Service struct {
	runs map[string]*execution.Run
	mux  sync.RWMutex
}

var _ dao.Service[string, execution.Run] = (*Service)(nil)

// New creates an empty run store.
func New() *Service {
	return &Service{runs: map[string]*execution.Run{}}
}

// Save persists the run, merging into an existing entry when present.
func (s *Service) Save(_ context.Context, r *execution.Run) error {
	if r == nil {
		return dao.ErrNilEntity
	}
	if r.ID == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if existing, ok := s.runs[r.ID]; ok && existing != nil {
		existing.CopyFrom(r)
	} else {
		s.runs[r.ID] = r
	}
	return nil
}

// Load retrieves a run or dao.ErrNotFound.
func (s *Service) Load(_ context.Context, id string) (*execution.Run, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.RLock()
	r, ok := s.runs[id]
	s.mux.RUnlock()
	if !ok {
		return nil, dao.ErrNotFound
	}
	return r, nil
}

// Delete removes a run.
func (s *Service) Delete(_ context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.runs[id]; !ok {
		return dao.ErrNotFound
	}
	delete(s.runs, id)
	return nil
}

// List returns runs matching the optional state filter.
func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*execution.Run, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]*execution.Run, 0, len(s.runs))
	for _, r := range s.runs {
		if !criteria.FilterByState(r.GetState(), parameters) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
