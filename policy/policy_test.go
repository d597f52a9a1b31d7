package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Decide(t *testing.T) {
	testCases := []struct {
		description string
		config      *Config
		action      string
		expected    Decision
	}{
		{
			description: "nil config allows",
			action:      "registry.publish",
			expected:    DecisionAllow,
		},
		{
			description: "auto mode allows",
			config:      &Config{Mode: ModeAuto},
			action:      "registry.publish",
			expected:    DecisionAllow,
		},
		{
			description: "dry run skips",
			config:      &Config{Mode: ModeDryRun},
			action:      "registry.publish",
			expected:    DecisionSkip,
		},
		{
			description: "deny mode blocks",
			config:      &Config{Mode: ModeDeny},
			action:      "registry.publish",
			expected:    DecisionDeny,
		},
		{
			description: "block list has priority",
			config:      &Config{Mode: ModeAuto, BlockList: []string{"Registry.Publish"}},
			action:      "registry.publish",
			expected:    DecisionDeny,
		},
		{
			description: "allow list excludes unlisted",
			config:      &Config{Mode: ModeAuto, AllowList: []string{"vcs.checkout"}},
			action:      "registry.publish",
			expected:    DecisionDeny,
		},
		{
			description: "allow list admits listed",
			config:      &Config{Mode: ModeAuto, AllowList: []string{"registry.publish"}},
			action:      "registry.publish",
			expected:    DecisionAllow,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.config.Decide(tc.action))
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	p := &Policy{Mode: ModeDryRun}
	ctx := WithPolicy(context.Background(), p)
	assert.Same(t, p, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))

	cfg := ToConfig(p)
	assert.Equal(t, ModeDryRun, cfg.Mode)
	assert.Equal(t, p.Mode, FromConfig(cfg).Mode)
}
