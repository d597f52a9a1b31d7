package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relforge/tagship/model"
	"github.com/relforge/tagship/runtime/execution"
)

func runContext(permissions map[string]string) context.Context {
	aRelease := model.NewRelease("publish")
	aRelease.Permissions = permissions
	aRun := execution.NewRun("publish/run-1", "publish", aRelease, nil)
	return context.WithValue(context.Background(), execution.RunKey, aRun)
}

func TestService_Authenticate(t *testing.T) {
	var exchanges int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		var request exchangeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.Equal(t, "id-token-1", request.Token)
		assert.Equal(t, "crates-io", request.Audience)
		_ = json.NewEncoder(w).Encode(&exchangeResponse{Token: "publish-token-1", ExpiresIn: 900})
	}))
	defer server.Close()

	svc := New()
	ctx := runContext(map[string]string{"id-token": "write"})

	input := &AuthInput{TokenURL: server.URL, Audience: "crates-io", IdentityToken: "id-token-1"}
	output := &AuthOutput{}
	assert.NoError(t, svc.Authenticate(ctx, input, output))
	assert.Equal(t, "publish-token-1", output.Token)
	assert.False(t, output.ExpiresAt.IsZero())

	// Second exchange for the same registry and audience is served from cache.
	output = &AuthOutput{}
	assert.NoError(t, svc.Authenticate(ctx, input, output))
	assert.Equal(t, "publish-token-1", output.Token)
	assert.Equal(t, 1, exchanges)
}

func TestService_Authenticate_PermissionDenied(t *testing.T) {
	svc := New()
	output := &AuthOutput{}
	input := &AuthInput{TokenURL: "https://registry.example.com/token", IdentityToken: "id-token-1"}

	err := svc.Authenticate(runContext(nil), input, output)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "id-token")

	// No run in context at all is rejected the same way.
	err = svc.Authenticate(context.Background(), input, output)
	assert.Error(t, err)
}

func TestService_Authenticate_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	svc := New()
	err := svc.Authenticate(runContext(map[string]string{"id-token": "write"}),
		&AuthInput{TokenURL: server.URL, IdentityToken: "id-token-1"}, &AuthOutput{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestService_Authenticate_MissingToken(t *testing.T) {
	svc := New()
	err := svc.Authenticate(runContext(map[string]string{"id-token": "write"}),
		&AuthInput{TokenURL: "https://registry.example.com/token"}, &AuthOutput{})
	assert.Error(t, err)
}
