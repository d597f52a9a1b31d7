package printer

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/relforge/tagship/model/types"
)

const name = "printer"

// Service prints pipeline state to standard output.
type Service struct{}

type Input struct {
	Message string
}

type Output struct {
}

// New creates a new printer service
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
			Name:        "print",
			Description: "Prints the given message to standard output.",
			Input:       reflect.TypeOf(&Input{}),
			Output:      reflect.TypeOf(&Output{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "print":
		return s.print, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) print(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*Input)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	fmt.Println(input.Message)
	return nil
}
