package extension

import (
	"sync"

	"github.com/relforge/tagship/model/types"
	"github.com/viant/x"
)

// DataTypeIniter is implemented by action services that register their own
// input and output types on startup.
type DataTypeIniter interface {
	InitTypes(types *Types)
}

// Actions is the registry of action services addressable from release steps.
type Actions struct {
	types    *Types
	services map[string]types.Service
	mux      sync.RWMutex
}

// Types returns the shared type registry.
func (s *Actions) Types() *Types {
	return s.types
}

// Lookup returns a service by name, or nil.
func (s *Actions) Lookup(name string) types.Service {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.services[name]
}

// Register adds a service to the registry.
func (s *Actions) Register(service types.Service) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if initer, ok := service.(DataTypeIniter); ok {
		initer.InitTypes(s.types)
	}
	s.services[service.Name()] = service
}

// NewActions creates an action registry seeded with the given Go types.
func NewActions(goTypes ...*x.Type) *Actions {
	ret := &Actions{
		types:    NewTypes(),
		services: make(map[string]types.Service),
	}
	for _, t := range goTypes {
		if t != nil {
			ret.types.Register(t)
		}
	}
	return ret
}
