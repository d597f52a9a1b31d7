package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	state := map[string]interface{}{
		"tag": "v1.2.3",
		"publish": map[string]interface{}{
			"Status": 0,
			"Output": "done",
		},
		"auth": map[string]interface{}{
			"Token": "tok",
		},
		"artifacts": []interface{}{"a.crate"},
		"dryRun":    false,
	}

	testCases := []struct {
		description string
		expr        string
		expected    bool
	}{
		{
			description: "empty condition passes",
			expr:        "",
			expected:    true,
		},
		{
			description: "equality on expanded path",
			expr:        "${publish.Output} == 'done'",
			expected:    true,
		},
		{
			description: "inequality on numeric status",
			expr:        "${publish.Status} != 0",
			expected:    false,
		},
		{
			description: "comparison",
			expr:        "${publish.Status} < 1",
			expected:    true,
		},
		{
			description: "boolean and",
			expr:        "${publish.Status} == 0 && ${auth.Token} == 'tok'",
			expected:    true,
		},
		{
			description: "boolean or with short circuit",
			expr:        "${dryRun} || ${publish.Status} == 0",
			expected:    true,
		},
		{
			description: "negation",
			expr:        "!${dryRun}",
			expected:    true,
		},
		{
			description: "len of slice",
			expr:        "len(artifacts) > 0",
			expected:    true,
		},
		{
			description: "truthy string reference",
			expr:        "$tag",
			expected:    true,
		},
		{
			description: "missing reference is falsy",
			expr:        "${no.such.path}",
			expected:    false,
		},
		{
			description: "string prefix comparison",
			expr:        "$tag >= 'v1'",
			expected:    true,
		},
	}

	for _, testCase := range testCases {
		actual, err := Evaluate(testCase.expr, state)
		if !assert.Nil(t, err, testCase.description) {
			continue
		}
		assert.Equal(t, testCase.expected, actual, testCase.description)
	}
}

func TestEvaluate_LenOfExpandedSlice(t *testing.T) {
	state := map[string]interface{}{
		"artifacts": []interface{}{"a.crate", "b.crate"},
	}
	// Bare selector keeps the slice value so len() sees it.
	actual, err := Evaluate("len(artifacts) == 2", state)
	assert.Nil(t, err)
	assert.True(t, actual)
}

func TestEvaluate_Invalid(t *testing.T) {
	_, err := Evaluate("== broken", map[string]interface{}{})
	assert.NotNil(t, err)
}

func TestValue(t *testing.T) {
	state := map[string]interface{}{"count": 2}
	value, err := Value("count + 1", state)
	assert.Nil(t, err)
	assert.Equal(t, 3, value)
}
