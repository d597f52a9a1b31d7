// Package vcs implements the repository checkout action. It fetches the
// commit a ref event points at into a working directory using a shallow
// git fetch, without leaving credentials behind on disk.
package vcs

import (
	"context"
	"reflect"
	"strings"
	"sync"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"

	"github.com/relforge/tagship/model/types"
)

const Name = "vcs"

// Service runs git over a local shell session.
type Service struct {
	mux     sync.Mutex
	session *gosh.Service
}

// New creates a new checkout service
func New() *Service {
	return &Service{}
}

// Name returns the service name
func (s *Service) Name() string {
	return Name
}

// Methods returns the service methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name: "checkout",
			Description: `Fetches repository contents at the given ref or commit into a working
directory using a shallow git fetch. Credentials are passed per invocation
and are not written to the repository config unless persistCredentials is
set.`,
			Input:  reflect.TypeOf(&CheckoutInput{}),
			Output: reflect.TypeOf(&CheckoutOutput{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "checkout":
		return s.checkout, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) checkout(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*CheckoutInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*CheckoutOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Checkout(ctx, input, output)
}

// getSession lazily opens the local shell session shared by checkouts.
func (s *Service) getSession(ctx context.Context) (*gosh.Service, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.session != nil {
		return s.session, nil
	}
	session, err := gosh.New(ctx, local.New())
	if err != nil {
		return nil, err
	}
	s.session = session
	return session, nil
}

// run executes a single git command and surfaces a non-zero exit as error.
func (s *Service) run(ctx context.Context, command string, timeoutMs int) (string, error) {
	session, err := s.getSession(ctx)
	if err != nil {
		return "", err
	}
	stdout, status, err := session.Run(ctx, command, runner.WithTimeout(timeoutMs))
	if err != nil {
		return stdout, err
	}
	if status != 0 {
		return stdout, &commandError{status: status, output: stdout}
	}
	return stdout, nil
}

// Close releases the shell session.
func (s *Service) Close(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	return err
}
