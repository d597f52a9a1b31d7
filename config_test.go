package tagship

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relforge/tagship/service/messaging"
)

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		description string
		mutate      func(*Config)
		expectErr   bool
	}{
		{
			description: "defaults are valid",
			mutate:      func(c *Config) {},
		},
		{
			description: "zero workers",
			mutate:      func(c *Config) { c.Processor.WorkerCount = 0 },
			expectErr:   true,
		},
		{
			description: "negative retries",
			mutate:      func(c *Config) { c.Processor.MaxStepRetries = -1 },
			expectErr:   true,
		},
		{
			description: "unknown queue vendor",
			mutate:      func(c *Config) { c.Queue.Vendor = messaging.Vendor("kafka") },
			expectErr:   true,
		},
	}
	for _, testCase := range testCases {
		config := DefaultConfig()
		testCase.mutate(config)
		err := config.Validate()
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		assert.NoError(t, err, testCase.description)
	}

	var config *Config
	assert.NoError(t, config.Validate())
}
