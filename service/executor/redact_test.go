package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	testCases := []struct {
		description string
		input       interface{}
		expected    interface{}
	}{
		{
			description: "token masked",
			input:       map[string]interface{}{"token": "tok-secret", "tag": "v1.2.3"},
			expected:    map[string]interface{}{"token": "***", "tag": "v1.2.3"},
		},
		{
			description: "nested credentials masked",
			input: map[string]interface{}{
				"registry": map[string]interface{}{"apiKey": "abc", "url": "https://crates.io"},
			},
			expected: map[string]interface{}{
				"registry": map[string]interface{}{"apiKey": "***", "url": "https://crates.io"},
			},
		},
		{
			description: "slice elements visited",
			input:       []interface{}{map[string]interface{}{"password": "x"}},
			expected:    []interface{}{map[string]interface{}{"password": "***"}},
		},
		{
			description: "plain values untouched",
			input:       map[string]interface{}{"count": 3.0},
			expected:    map[string]interface{}{"count": 3.0},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.EqualValues(t, tc.expected, Redact(tc.input))
		})
	}
	assert.Nil(t, Redact(nil))
}
