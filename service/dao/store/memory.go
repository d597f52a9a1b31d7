// Package store provides a generic in-memory dao.Service implementation that
// concrete stores can embed instead of repeating identical CRUD logic.
package store

import (
	"context"
	"sync"

	"github.com/relforge/tagship/service/dao"
)

// Memory keeps entities of type *T mapped by a comparable key K extracted
// with keySelector. It carries no business logic; concrete DAOs override
// List when they need filtering.
type Memory[K comparable, T any] struct {
	mu          sync.RWMutex
	records     map[K]*T
	keySelector func(*T) K
}

// NewMemory creates a memory store; keySelector extracts the entity key.
func NewMemory[K comparable, T any](keySelector func(*T) K) *Memory[K, T] {
	return &Memory[K, T]{
		records:     make(map[K]*T),
		keySelector: keySelector,
	}
}

// Save stores or overwrites a record.
func (s *Memory[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = v
	return nil
}

// Load returns a record by key, or dao.ErrNotFound.
func (s *Memory[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return v, nil
}

// Delete removes a record.
func (s *Memory[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return dao.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// List returns all stored records.
func (s *Memory[K, T]) List(_ context.Context, _ ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.records))
	for _, v := range s.records {
		out = append(out, v)
	}
	return out, nil
}
