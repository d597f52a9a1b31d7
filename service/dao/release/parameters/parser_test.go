package parameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	bstate "github.com/viant/bindly/state"

	"github.com/relforge/tagship/model/state"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		description string
		input       string
		expected    *state.Parameter
		shouldError bool
	}{
		{
			description: "name with type, kind and location",
			input:       "manifest[manifest.Manifest](resource/Cargo.toml)",
			expected: &state.Parameter{
				Name:     "manifest",
				DataType: "manifest.Manifest",
				Location: &bstate.Location{
					Kind: "resource",
					In:   "Cargo.toml",
				},
			},
		},
		{
			description: "name with type and kind only",
			input:       "token[string](env)",
			expected: &state.Parameter{
				Name:     "token",
				DataType: "string",
				Location: &bstate.Location{
					Kind: "env",
				},
			},
		},
		{
			description: "empty location",
			input:       "artifacts[[]Artifact]()",
			expected: &state.Parameter{
				Name:     "artifacts",
				DataType: "[]Artifact",
				Location: &bstate.Location{},
			},
		},
		{
			description: "URI location",
			input:       "config[registry.Config](resource/file:///etc/tagship.yaml)",
			expected: &state.Parameter{
				Name:     "config",
				DataType: "registry.Config",
				Location: &bstate.Location{
					Kind: "resource",
					In:   "file:///etc/tagship.yaml",
				},
			},
		},
		{
			description: "missing closing bracket",
			input:       "manifest[manifest.Manifest(resource/Cargo.toml)",
			shouldError: true,
		},
		{
			description: "missing opening parenthesis",
			input:       "manifest[manifest.Manifest]resource/Cargo.toml)",
			shouldError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			result, err := Parse([]byte(tc.input))
			if tc.shouldError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.EqualValues(t, tc.expected, result)
		})
	}
}
