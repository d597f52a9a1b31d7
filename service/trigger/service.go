// Package trigger matches incoming ref events against loaded releases and
// starts runs for the ones whose trigger fires.  Duplicate delivery of the
// same event for the same release is a no-op.
package trigger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/runtime/execution"
	"github.com/relforge/tagship/service/dao/release"
)

// Starter launches a run for a release; implemented by the processor.
type Starter interface {
	StartRun(ctx context.Context, release *model.Release, refEvent *model.RefEvent, init map[string]interface{}) (*execution.Run, error)
}

// Option customises the trigger service.
type Option func(*Service)

// WithDedupeTTL sets how long a delivered (event, release) pair is
// remembered.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.seen = cache.New(ttl, 2*ttl)
	}
}

// Service is the trigger index.
type Service struct {
	releaseDAO *release.Service
	starter    Starter

	mu       sync.RWMutex
	releases map[string]*model.Release

	seen *cache.Cache
}

// New creates a trigger service over the release store and run starter.
func New(releaseDAO *release.Service, starter Starter, options ...Option) *Service {
	ret := &Service{
		releaseDAO: releaseDAO,
		starter:    starter,
		releases:   make(map[string]*model.Release),
		seen:       cache.New(time.Hour, 2*time.Hour),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Register loads a release definition and adds it to the index.
func (s *Service) Register(ctx context.Context, URL string) (*model.Release, error) {
	aRelease, err := s.releaseDAO.Load(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", URL, err)
	}
	s.Upsert(aRelease)
	return aRelease, nil
}

// Upsert adds or replaces a release in the index.
func (s *Service) Upsert(aRelease *model.Release) {
	if aRelease == nil || aRelease.Name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases[aRelease.Name] = aRelease
}

// Remove drops a release from the index.
func (s *Service) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.releases, name)
}

// Releases returns the indexed releases sorted by name.
func (s *Service) Releases() []*model.Release {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Release, 0, len(s.releases))
	for _, aRelease := range s.releases {
		out = append(out, aRelease)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch starts a run for every indexed release whose trigger matches the
// event, at most once per (event, release) pair.
func (s *Service) Dispatch(ctx context.Context, refEvent model.RefEvent) ([]*execution.Run, error) {
	if refEvent.ReceivedAt.IsZero() {
		refEvent.ReceivedAt = time.Now()
	}
	var started []*execution.Run
	for _, aRelease := range s.Releases() {
		if !aRelease.On.Matches(refEvent) {
			continue
		}
		key := dedupeKey(aRelease.Name, refEvent)
		if _, delivered := s.seen.Get(key); delivered {
			continue
		}
		aRun, err := s.starter.StartRun(ctx, aRelease, &refEvent, nil)
		if err != nil {
			return started, fmt.Errorf("failed to start run for %s: %w", aRelease.Name, err)
		}
		s.seen.SetDefault(key, aRun.ID)
		started = append(started, aRun)
	}
	return started, nil
}

func dedupeKey(releaseName string, refEvent model.RefEvent) string {
	return releaseName + "|" + refEvent.Ref + "|" + refEvent.SHA
}
