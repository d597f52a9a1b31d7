package model

import (
	"testing"

	"github.com/relforge/tagship/model/graph"
	"github.com/stretchr/testify/assert"
)

func publishRelease() *Release {
	release := NewRelease("publish").
		WithTrigger(&Trigger{Push: &PushTrigger{Tags: []string{"v*"}}}).
		WithPermission(PermissionIDToken, PermissionWrite)
	checkout := release.NewStep("checkout").WithAction("repo/checkout", "checkout", nil)
	auth := release.NewStep("auth").WithAction("registry/auth", "exchange", nil)
	auth.WithDependsOn(checkout.ID)
	publish := release.NewStep("publish").WithAction("registry/publish", "publish", nil)
	publish.WithDependsOn(auth.ID)
	return release
}

func TestRelease_Validate(t *testing.T) {
	testCases := []struct {
		description string
		mutate      func(r *Release)
		expected    int
	}{
		{
			description: "sound release",
			mutate:      func(r *Release) {},
			expected:    0,
		},
		{
			description: "missing pipeline",
			mutate:      func(r *Release) { r.Pipeline = nil },
			expected:    1,
		},
		{
			description: "unknown dependency",
			mutate: func(r *Release) {
				r.Pipeline.Steps[0].DependsOn = []string{"publish/missing"}
			},
			expected: 1,
		},
		{
			description: "self dependency",
			mutate: func(r *Release) {
				step := r.Pipeline.Steps[0]
				step.DependsOn = []string{step.ID}
			},
			expected: 2, // self-dependency also forms a cycle
		},
		{
			description: "cyclic dependencies",
			mutate: func(r *Release) {
				r.Pipeline.Steps[0].DependsOn = []string{r.Pipeline.Steps[2].ID}
			},
			expected: 1,
		},
		{
			description: "unknown goto target",
			mutate: func(r *Release) {
				r.Pipeline.Steps[2].WithGoto("${publish.Status} != 0", "rollback")
			},
			expected: 1,
		},
		{
			description: "invalid scheduleIn",
			mutate: func(r *Release) {
				r.Pipeline.Steps[1].ScheduleIn = "later"
			},
			expected: 1,
		},
		{
			description: "invalid retry delay",
			mutate: func(r *Release) {
				r.Pipeline.Steps[2].Retry = &graph.Retry{Type: "fixed", Delay: "soon"}
			},
			expected: 1,
		},
		{
			description: "invalid trigger pattern",
			mutate: func(r *Release) {
				r.On.Push.Tags = []string{"v["}
			},
			expected: 1,
		},
	}

	for _, testCase := range testCases {
		release := publishRelease()
		testCase.mutate(release)
		issues := release.Validate()
		assert.Equal(t, testCase.expected, len(issues), testCase.description)
	}
}

func TestRelease_HasPermission(t *testing.T) {
	release := publishRelease()
	assert.True(t, release.HasPermission(PermissionIDToken, PermissionWrite))
	assert.False(t, release.HasPermission(PermissionIDToken, "read"))
	assert.False(t, NewRelease("bare").HasPermission(PermissionIDToken, PermissionWrite))
}

func TestRelease_Clone(t *testing.T) {
	release := publishRelease()
	clone := release.Clone()
	assert.Equal(t, release.Name, clone.Name)
	assert.Equal(t, len(release.Pipeline.Steps), len(clone.Pipeline.Steps))
	clone.Pipeline.Steps[0].Name = "altered"
	assert.NotEqual(t, release.Pipeline.Steps[0].Name, clone.Pipeline.Steps[0].Name)
}
