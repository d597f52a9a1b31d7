package secret

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/scy"
	sjwt "github.com/viant/scy/auth/jwt"
	"github.com/viant/scy/auth/jwt/verifier"
)

// VerifyJWTInput describes a token to check; the token comes inline or from
// a URL.
type VerifyJWTInput struct {
	Token      string `json:"token,omitempty"`
	TokenURL   string `json:"tokenURL,omitempty"`
	RSAKeyURL  string `json:"rsaKeyURL,omitempty"`
	HMACKeyURL string `json:"hmacKeyURL,omitempty"`
	KeySecret  string `json:"keySecret,omitempty"`
}

// VerifyJWTOutput reports validity; Claims is set only for valid tokens.
type VerifyJWTOutput struct {
	Valid  bool         `json:"valid"`
	Claims *sjwt.Claims `json:"claims,omitempty"`
}

// VerifyJWT checks a token signature and extracts its claims. An invalid
// token is a result, not a failure.
func (s *Service) VerifyJWT(ctx context.Context, input *VerifyJWTInput, output *VerifyJWTOutput) error {
	rsa, hmac, err := keyResource(input.RSAKeyURL, input.HMACKeyURL, input.KeySecret)
	if err != nil {
		return err
	}
	var rsaKeys []*scy.Resource
	if rsa != nil {
		rsaKeys = []*scy.Resource{rsa}
	}
	jwtVerifier := verifier.New(&verifier.Config{RSA: rsaKeys, HMAC: hmac})
	if err := jwtVerifier.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize JWT verifier: %w", err)
	}

	tokenString := input.Token
	if tokenString == "" {
		if input.TokenURL == "" {
			return fmt.Errorf("no token provided: specify token or tokenURL")
		}
		tokenData, err := afs.New().DownloadWithURL(ctx, input.TokenURL)
		if err != nil {
			return fmt.Errorf("failed to download token from %s: %w", input.TokenURL, err)
		}
		tokenString = string(tokenData)
	}

	claims, err := jwtVerifier.VerifyClaims(ctx, tokenString)
	if err != nil {
		output.Valid = false
		return nil
	}
	output.Valid = true
	output.Claims = claims
	return nil
}
