package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnvExpr(t *testing.T) {
	t.Setenv("REGISTRY_URL", "https://registry.example.com")
	t.Setenv("TOKEN_ENV", "CARGO_REGISTRY_TOKEN")

	testCases := []struct {
		description string
		input       string
		expected    string
	}{
		{
			description: "single reference",
			input:       "url: ${env.REGISTRY_URL}",
			expected:    "url: https://registry.example.com",
		},
		{
			description: "multiple references",
			input:       "${env.REGISTRY_URL}/${env.TOKEN_ENV}",
			expected:    "https://registry.example.com/CARGO_REGISTRY_TOKEN",
		},
		{
			description: "unset variable expands to empty",
			input:       "x=${env.TAGSHIP_NO_SUCH_VAR}!",
			expected:    "x=!",
		},
		{
			description: "no reference passes through",
			input:       "tags: [v*]",
			expected:    "tags: [v*]",
		},
		{
			description: "missing closing brace kept literal",
			input:       "x=${env.REGISTRY_URL",
			expected:    "x=${env.REGISTRY_URL",
		},
		{
			description: "invalid key kept literal",
			input:       "x=${env.BAD-KEY}",
			expected:    "x=${env.BAD-KEY}",
		},
	}

	for _, testCase := range testCases {
		actual := expandEnvExpr(testCase.input)
		assert.Equal(t, testCase.expected, actual, testCase.description)
	}
}
