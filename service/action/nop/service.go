package nop

import (
	"context"
	"reflect"

	"github.com/relforge/tagship/model/types"
)

const name = "nop"

// Service is a placeholder action for wiring and testing pipelines.
type Service struct{}

type Input struct{}

type Output struct{}

// New creates a new nop service
func New() *Service {
	return &Service{}
}

// Name returns the service name
func (s *Service) Name() string {
	return name
}

// Methods returns the service methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        "nop",
			Description: "Performs no operation and returns immediately.",
			Input:       reflect.TypeOf(&Input{}),
			Output:      reflect.TypeOf(&Output{}),
		},
	}
}

// Method returns method by name
func (s *Service) Method(name string) (types.Executable, error) {
	return s.nop, nil
}

// does nothing
func (s *Service) nop(ctx context.Context, in, out interface{}) error {
	return nil
}
