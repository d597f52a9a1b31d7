// Package registry implements the package-registry actions: OIDC token
// exchange and crate publishing. The authenticate method trades a workload
// identity token for a short-lived publish token; the publish method runs
// the package-publish command with that token injected only into the
// process environment.
package registry

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/relforge/tagship/model/types"
)

const Name = "registry"

// Service talks to the package registry.
type Service struct {
	client *http.Client
	tokens *cache.Cache
}

// Option customises the registry service.
type Option func(*Service)

// WithHTTPClient overrides the HTTP client used for token exchange.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) { s.client = client }
}

// New creates a new registry service
func New(options ...Option) *Service {
	ret := &Service{
		client: &http.Client{Timeout: 30 * time.Second},
		tokens: cache.New(10*time.Minute, 20*time.Minute),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Name returns the service name
func (s *Service) Name() string {
	return Name
}

// Methods returns the service methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name: "authenticate",
			Description: `Exchanges a workload identity token for a short-lived registry publish
token. Requires the release to grant the id-token write permission.`,
			Input:  reflect.TypeOf(&AuthInput{}),
			Output: reflect.TypeOf(&AuthOutput{}),
		},
		{
			Name:        "publish",
			Description: "Publishes the package in the working directory with the supplied registry token.",
			Input:       reflect.TypeOf(&PublishInput{}),
			Output:      reflect.TypeOf(&PublishOutput{}),
		},
		{
			Name:        "verify",
			Description: "Diffs the local package manifest against the published metadata.",
			Input:       reflect.TypeOf(&VerifyInput{}),
			Output:      reflect.TypeOf(&VerifyOutput{}),
		},
	}
}

// Method returns the specified method. The mint method is dispatchable but
// unlisted; pipelines normally let authenticate mint implicitly.
func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "authenticate", "exchange":
		return s.authenticate, nil
	case "mint":
		return s.mint, nil
	case "publish":
		return s.publish, nil
	case "verify":
		return s.verify, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) authenticate(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*AuthInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*AuthOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Authenticate(ctx, input, output)
}

func (s *Service) mint(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*AuthInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*AuthOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	token, err := s.mintIdentityToken(ctx, input)
	if err != nil {
		return err
	}
	output.Token = token
	return nil
}

func (s *Service) publish(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*PublishInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*PublishOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Publish(ctx, input, output)
}

func (s *Service) verify(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*VerifyInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*VerifyOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Verify(ctx, input, output)
}
