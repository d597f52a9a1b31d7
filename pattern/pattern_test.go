package pattern

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestPattern_Match(t *testing.T) {
	testCases := []struct {
		description string
		pattern     string
		name        string
		expected    bool
	}{
		{
			description: "version tag prefix",
			pattern:     "v*",
			name:        "v1.2.3",
			expected:    true,
		},
		{
			description: "prefix mismatch",
			pattern:     "v*",
			name:        "release-1.2.3",
			expected:    false,
		},
		{
			description: "star does not cross segment",
			pattern:     "release/*",
			name:        "release/1.2/rc1",
			expected:    false,
		},
		{
			description: "globstar crosses segments",
			pattern:     "release/**",
			name:        "release/1.2/rc1",
			expected:    true,
		},
		{
			description: "question matches single rune",
			pattern:     "v?.0",
			name:        "v1.0",
			expected:    true,
		},
		{
			description: "question rejects slash",
			pattern:     "v?",
			name:        "v/",
			expected:    false,
		},
		{
			description: "class with range",
			pattern:     "v[0-9]*",
			name:        "v2.0.0",
			expected:    true,
		},
		{
			description: "class mismatch",
			pattern:     "v[0-9]*",
			name:        "vbeta",
			expected:    false,
		},
		{
			description: "negated class",
			pattern:     "v[^0]*",
			name:        "v1",
			expected:    true,
		},
		{
			description: "empty star suffix",
			pattern:     "v*",
			name:        "v",
			expected:    true,
		},
	}

	for _, testCase := range testCases {
		compiled, err := Parse(testCase.pattern)
		if !assert.Nil(t, err, testCase.description) {
			continue
		}
		assert.Equal(t, testCase.expected, compiled.Match(testCase.name), testCase.description)
	}
}

func TestParse_Errors(t *testing.T) {
	for _, expr := range []string{"", "v[", "v[]", "v[9-0]"} {
		_, err := Parse(expr)
		assert.NotNil(t, err, expr)
	}
}

func TestMatchAny(t *testing.T) {
	assert.True(t, MatchAny([]string{"main", "v*"}, "v0.1.0"))
	assert.False(t, MatchAny([]string{"main", "v*"}, "feature/x"))
	assert.False(t, MatchAny(nil, "v1.0.0"))
}

// Tag triggers with the canonical "v*" glob must fire for exactly the names
// with a leading 'v'.
func TestVersionTagProperty(t *testing.T) {
	compiled, err := Parse("v*")
	assert.Nil(t, err)
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[a-zA-Z0-9./-]{0,12}`).Draw(t, "name")
		expected := strings.HasPrefix(name, "v") && !strings.Contains(name[1:], "/")
		if compiled.Match(name) != expected {
			t.Fatalf("pattern v* on %q: got %v, want %v", name, !expected, expected)
		}
	})
}
