package vcs

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckoutInput_Validate(t *testing.T) {
	testCases := []struct {
		description string
		input       CheckoutInput
		expectErr   bool
	}{
		{
			description: "ref checkout",
			input:       CheckoutInput{Repository: "https://example.com/acme/widgets.git", Ref: "refs/tags/v1.0.0"},
		},
		{
			description: "sha checkout",
			input:       CheckoutInput{Repository: "https://example.com/acme/widgets.git", SHA: "deadbeef"},
		},
		{
			description: "missing repository",
			input:       CheckoutInput{Ref: "refs/tags/v1.0.0"},
			expectErr:   true,
		},
		{
			description: "missing ref and sha",
			input:       CheckoutInput{Repository: "https://example.com/acme/widgets.git"},
			expectErr:   true,
		},
	}
	for _, testCase := range testCases {
		err := testCase.input.Validate()
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		assert.NoError(t, err, testCase.description)
	}
}

func TestCheckoutInput_Init(t *testing.T) {
	input := &CheckoutInput{Repository: "https://example.com/acme/widgets.git", Ref: "refs/tags/v1.0.0"}
	input.Init()
	assert.Equal(t, 1, input.Depth)
	assert.Equal(t, 120000, input.TimeoutMs)
}

func TestTagFromRef(t *testing.T) {
	assert.Equal(t, "v1.2.3", tagFromRef("refs/tags/v1.2.3"))
	assert.Equal(t, "", tagFromRef("refs/heads/main"))
	assert.Equal(t, "", tagFromRef(""))
}

func TestRedactToken(t *testing.T) {
	token := "s3cr3t"
	encoded := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))
	err := errors.New("fetch failed: basic " + encoded + " raw " + token)
	redacted := redactToken(err, token)
	assert.NotContains(t, redacted.Error(), token)
	assert.NotContains(t, redacted.Error(), encoded)

	assert.Nil(t, redactToken(nil, token))
	assert.Equal(t, err, redactToken(err, ""))
}
