package secret

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/scy/auth/jwt/signer"
)

const defaultTokenTTL = time.Hour

// SignJWTInput describes a token to mint; claims come inline or from a URL.
type SignJWTInput struct {
	Claims     map[string]interface{} `json:"claims,omitempty"`
	ClaimsURL  string                 `json:"claimsURL,omitempty"`
	RSAKeyURL  string                 `json:"rsaKeyURL,omitempty"`
	HMACKeyURL string                 `json:"hmacKeyURL,omitempty"`
	KeySecret  string                 `json:"keySecret,omitempty" description:"secret to decrypt the key when encrypted"`
	TTLSec     int                    `json:"ttlSec,omitempty" description:"token lifetime in seconds (default 3600)"`
}

// SignJWTOutput carries the minted token.
type SignJWTOutput struct {
	Token   string `json:"token"`
	Success bool   `json:"success"`
}

// SignJWT mints a signed JWT, for releases that bring their own identity
// signing key instead of a platform-issued token.
func (s *Service) SignJWT(ctx context.Context, input *SignJWTInput, output *SignJWTOutput) error {
	rsa, hmac, err := keyResource(input.RSAKeyURL, input.HMACKeyURL, input.KeySecret)
	if err != nil {
		return err
	}
	jwtSigner := signer.New(&signer.Config{RSA: rsa, HMAC: hmac})
	if err := jwtSigner.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize JWT signer: %w", err)
	}

	claims, err := s.resolveClaims(ctx, input)
	if err != nil {
		return err
	}

	ttl := time.Duration(input.TTLSec) * time.Second
	if ttl == 0 {
		ttl = defaultTokenTTL
	}
	token, err := jwtSigner.Create(ttl, claims)
	if err != nil {
		return fmt.Errorf("failed to create JWT token: %w", err)
	}
	output.Token = token
	output.Success = true
	return nil
}

func (s *Service) resolveClaims(ctx context.Context, input *SignJWTInput) (map[string]interface{}, error) {
	if len(input.Claims) > 0 {
		return input.Claims, nil
	}
	if input.ClaimsURL == "" {
		return nil, fmt.Errorf("no claims provided: specify claims or claimsURL")
	}
	data, err := afs.New().DownloadWithURL(ctx, input.ClaimsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download claims from %s: %w", input.ClaimsURL, err)
	}
	var claims map[string]interface{}
	if err = json.Unmarshal(data, &claims); err != nil {
		return nil, fmt.Errorf("invalid JSON claims: %w", err)
	}
	return claims, nil
}
