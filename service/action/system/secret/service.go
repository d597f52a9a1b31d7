package secret

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/viant/scy"

	"github.com/relforge/tagship/model/types"
)

const Name = "system/secret"

// Service wraps viant/scy secret management. Pipelines use it to keep
// registry fallback tokens and identity signing keys encrypted at rest and
// to mint or check JWTs outside the registry exchange path.
type Service struct {
	scyService *scy.Service
}

// New creates a new secret service
func New() *Service {
	return &Service{scyService: scy.New()}
}

// Name returns the service Name
func (s *Service) Name() string {
	return Name
}

// Methods returns the service methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        "secure",
			Description: "Encrypts a secret and stores it at the destination URL.",
			Input:       reflect.TypeOf(&SecureInput{}),
			Output:      reflect.TypeOf(&SecureOutput{}),
		},
		{
			Name:        "reveal",
			Description: "Loads and decrypts a stored secret.",
			Input:       reflect.TypeOf(&RevealInput{}),
			Output:      reflect.TypeOf(&RevealOutput{}),
		},
		{
			Name:   "signJWT",
			Input:  reflect.TypeOf(&SignJWTInput{}),
			Output: reflect.TypeOf(&SignJWTOutput{}),
		},
		{
			Name:   "verifyJWT",
			Input:  reflect.TypeOf(&VerifyJWTInput{}),
			Output: reflect.TypeOf(&VerifyJWTOutput{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "secure":
		return s.secure, nil
	case "reveal":
		return s.reveal, nil
	case "signjwt":
		return s.signJWT, nil
	case "verifyjwt":
		return s.verifyJWT, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

// keyResource resolves the signing or verification key; exactly one of
// rsaKeyURL/hmacKeyURL must be set.
func keyResource(rsaKeyURL, hmacKeyURL, keySecret string) (rsa, hmac *scy.Resource, err error) {
	if rsaKeyURL == "" && hmacKeyURL == "" {
		return nil, nil, fmt.Errorf("either rsaKeyURL or hmacKeyURL must be provided")
	}
	if rsaKeyURL != "" {
		rsa = &scy.Resource{URL: rsaKeyURL, Key: keySecret}
	}
	if hmacKeyURL != "" {
		hmac = &scy.Resource{URL: hmacKeyURL, Key: keySecret}
	}
	return rsa, hmac, nil
}

func (s *Service) secure(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*SecureInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*SecureOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Secure(ctx, input, output)
}

func (s *Service) reveal(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*RevealInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*RevealOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Reveal(ctx, input, output)
}

func (s *Service) signJWT(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*SignJWTInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*SignJWTOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.SignJWT(ctx, input, output)
}

func (s *Service) verifyJWT(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*VerifyJWTInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*VerifyJWTOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.VerifyJWT(ctx, input, output)
}
