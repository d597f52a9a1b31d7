package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseParams(t *testing.T) {
	testCases := []struct {
		description string
		pairs       []string
		expected    map[string]interface{}
		expectErr   bool
	}{
		{
			description: "no params",
		},
		{
			description: "key value pairs",
			pairs:       []string{"tag=v1.2.3", "channel=stable"},
			expected:    map[string]interface{}{"tag": "v1.2.3", "channel": "stable"},
		},
		{
			description: "value containing equals",
			pairs:       []string{"query=a=b"},
			expected:    map[string]interface{}{"query": "a=b"},
		},
		{
			description: "missing separator",
			pairs:       []string{"novalue"},
			expectErr:   true,
		},
		{
			description: "empty key",
			pairs:       []string{"=value"},
			expectErr:   true,
		},
	}
	for _, testCase := range testCases {
		actual, err := parseParams(testCase.pairs)
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		assert.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expected, actual, testCase.description)
	}
}
