package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/viant/scy"
	"github.com/viant/scy/auth/jwt/signer"

	"github.com/relforge/tagship/runtime/execution"
)

// idTokenPermission is the release permission gating token exchange.
const idTokenPermission = "id-token"

// AuthInput defines parameters for the OIDC token exchange
type AuthInput struct {
	TokenURL      string `json:"tokenURL" required:"true" description:"registry token exchange endpoint"`
	Audience      string `json:"audience,omitempty" description:"audience the identity token is minted for"`
	IdentityToken string `json:"identityToken,omitempty" description:"pre-issued workload identity token"`
	SigningKeyURL string `json:"signingKeyURL,omitempty" description:"RSA key resource to mint an identity token with"`
	KeySecret     string `json:"keySecret,omitempty" description:"secret to decrypt the signing key"`
	TTLSec        int    `json:"ttlSec,omitempty" description:"minted identity token lifetime in seconds (default 300)"`
	Subject       string `json:"subject,omitempty" description:"subject claim for a minted identity token"`
}

// AuthOutput carries the publish token; the token value is redacted from
// recorded inputs downstream.
type AuthOutput struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// exchangeRequest is the registry token endpoint wire format.
type exchangeRequest struct {
	Token    string `json:"token"`
	Audience string `json:"audience,omitempty"`
}

type exchangeResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// Authenticate exchanges a workload identity token for a registry publish
// token, caching it until shortly before expiry.
func (s *Service) Authenticate(ctx context.Context, input *AuthInput, output *AuthOutput) error {
	if input.TokenURL == "" {
		return fmt.Errorf("tokenURL is required")
	}
	aRun := execution.ContextValue[*execution.Run](ctx)
	if aRun == nil || aRun.Release == nil || !aRun.Release.HasPermission(idTokenPermission, "write") {
		return fmt.Errorf("release does not grant %s: write permission", idTokenPermission)
	}

	cacheKey := input.TokenURL + "|" + input.Audience
	if cached, ok := s.tokens.Get(cacheKey); ok {
		entry := cached.(*AuthOutput)
		output.Token = entry.Token
		output.ExpiresAt = entry.ExpiresAt
		return nil
	}

	identityToken := input.IdentityToken
	if identityToken == "" {
		minted, err := s.mintIdentityToken(ctx, input)
		if err != nil {
			return err
		}
		identityToken = minted
	}

	body, err := json.Marshal(&exchangeRequest{Token: identityToken, Audience: input.Audience})
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, input.TokenURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("token exchange request failed: %w", err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read token exchange response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("token exchange rejected with status %d", response.StatusCode)
	}

	var exchanged exchangeResponse
	if err := json.Unmarshal(data, &exchanged); err != nil {
		return fmt.Errorf("invalid token exchange response: %w", err)
	}
	if exchanged.Token == "" {
		return fmt.Errorf("token exchange response carried no token")
	}

	output.Token = exchanged.Token
	if exchanged.ExpiresIn > 0 {
		output.ExpiresAt = time.Now().Add(time.Duration(exchanged.ExpiresIn) * time.Second)
		// Cache expires ahead of the token so a cached value is never stale.
		ttl := time.Duration(exchanged.ExpiresIn)*time.Second - 30*time.Second
		if ttl > 0 {
			s.tokens.Set(cacheKey, &AuthOutput{Token: output.Token, ExpiresAt: output.ExpiresAt}, ttl)
		}
	}
	return nil
}

// mintIdentityToken signs a fresh identity token with the configured key.
func (s *Service) mintIdentityToken(ctx context.Context, input *AuthInput) (string, error) {
	if input.SigningKeyURL == "" {
		return "", fmt.Errorf("either identityToken or signingKeyURL is required")
	}
	config := &signer.Config{
		RSA: &scy.Resource{URL: input.SigningKeyURL, Key: input.KeySecret},
	}
	jwtSigner := signer.New(config)
	if err := jwtSigner.Init(ctx); err != nil {
		return "", fmt.Errorf("failed to initialize identity token signer: %w", err)
	}
	ttl := time.Duration(input.TTLSec) * time.Second
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	claims := map[string]interface{}{
		"aud": input.Audience,
	}
	if input.Subject != "" {
		claims["sub"] = input.Subject
	}
	token, err := jwtSigner.Create(ttl, claims)
	if err != nil {
		return "", fmt.Errorf("failed to mint identity token: %w", err)
	}
	return token, nil
}
