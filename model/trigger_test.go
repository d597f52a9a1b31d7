package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRef(t *testing.T) {
	testCases := []struct {
		ref          string
		expectedKind string
		expectedName string
	}{
		{"refs/tags/v1.2.3", RefKindTag, "v1.2.3"},
		{"refs/heads/main", RefKindBranch, "main"},
		{"refs/heads/release/1.2", RefKindBranch, "release/1.2"},
		{"main", RefKindBranch, "main"},
	}
	for _, testCase := range testCases {
		ev := ParseRef(testCase.ref)
		assert.Equal(t, testCase.expectedKind, ev.Kind, testCase.ref)
		assert.Equal(t, testCase.expectedName, ev.Name, testCase.ref)
	}
}

func TestTrigger_Matches(t *testing.T) {
	trigger := &Trigger{Push: &PushTrigger{Tags: []string{"v*"}}}

	assert.True(t, trigger.Matches(ParseRef("refs/tags/v1.2.3")))
	assert.False(t, trigger.Matches(ParseRef("refs/tags/release-1")))
	// a branch push never matches a tags-only trigger
	assert.False(t, trigger.Matches(ParseRef("refs/heads/v1.2.3")))
	// nil and empty triggers match nothing
	assert.False(t, (*Trigger)(nil).Matches(ParseRef("refs/tags/v1.2.3")))
	assert.False(t, (&Trigger{}).Matches(ParseRef("refs/tags/v1.2.3")))
	assert.False(t, (&Trigger{Push: &PushTrigger{}}).Matches(ParseRef("refs/tags/v1.2.3")))

	both := &Trigger{Push: &PushTrigger{Tags: []string{"v*"}, Branches: []string{"main", "release/**"}}}
	assert.True(t, both.Matches(ParseRef("refs/heads/main")))
	assert.True(t, both.Matches(ParseRef("refs/heads/release/1.2/rc1")))
	assert.False(t, both.Matches(ParseRef("refs/heads/feature/x")))
}
