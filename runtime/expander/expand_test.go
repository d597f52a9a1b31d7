package expander

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpand(t *testing.T) {
	state := map[string]interface{}{
		"tag": "v1.2.3",
		"auth": map[string]interface{}{
			"Token": "tok-123",
		},
		"publish": map[string]interface{}{
			"Artifacts": []interface{}{
				map[string]interface{}{"Name": "crate-1.2.3.crate"},
			},
		},
		"attempts": 3,
	}

	testCases := []struct {
		description string
		value       interface{}
		expected    interface{}
	}{
		{
			description: "plain text untouched",
			value:       "release",
			expected:    "release",
		},
		{
			description: "sole reference keeps type",
			value:       "$attempts",
			expected:    3,
		},
		{
			description: "braced path",
			value:       "${auth.Token}",
			expected:    "tok-123",
		},
		{
			description: "interpolation renders string",
			value:       "tag=$tag attempts=${attempts}",
			expected:    "tag=v1.2.3 attempts=3",
		},
		{
			description: "index access",
			value:       "${publish.Artifacts[0].Name}",
			expected:    "crate-1.2.3.crate",
		},
		{
			description: "unresolved reference kept verbatim",
			value:       "${missing.path}",
			expected:    "${missing.path}",
		},
		{
			description: "map values expanded",
			value:       map[string]interface{}{"token": "${auth.Token}"},
			expected:    map[string]interface{}{"token": "tok-123"},
		},
		{
			description: "slice elements expanded",
			value:       []interface{}{"$tag", "fixed"},
			expected:    []interface{}{"v1.2.3", "fixed"},
		},
		{
			description: "sole map reference keeps structure",
			value:       "${auth}",
			expected:    map[string]interface{}{"Token": "tok-123"},
		},
	}

	for _, testCase := range testCases {
		actual, err := Expand(testCase.value, state)
		assert.Nil(t, err, testCase.description)
		assert.EqualValues(t, testCase.expected, actual, testCase.description)
	}
}

func TestExpandString(t *testing.T) {
	state := map[string]interface{}{"count": 2}
	actual, err := ExpandString("n=$count", state)
	assert.Nil(t, err)
	assert.Equal(t, "n=2", actual)

	actual, err = ExpandString("$count", state)
	assert.Nil(t, err)
	assert.Equal(t, "2", actual)
}

func TestLookup_Struct(t *testing.T) {
	type output struct {
		Status int
	}
	state := map[string]interface{}{"step": &output{Status: 1}}
	value, ok := Lookup("step.Status", state)
	assert.True(t, ok)
	assert.Equal(t, 1, value)
}
