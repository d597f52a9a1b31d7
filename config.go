package tagship

import (
	"fmt"
	"time"

	"github.com/relforge/tagship/service/messaging"
)

// Config is a serialisable representation of the engine configuration. It
// can be populated from JSON, YAML, environment variables, etc. The
// zero-value is useful; all nested fields inherit their package defaults.
type Config struct {
	Processor ProcessorConfig `json:"processor" yaml:"processor"`
	Allocator AllocatorConfig `json:"allocator" yaml:"allocator"`
	Queue     QueueConfig     `json:"queue" yaml:"queue"`
}

type ProcessorConfig struct {
	WorkerCount    int           `json:"workers" yaml:"workers"`
	MaxStepRetries int           `json:"maxStepRetries" yaml:"maxStepRetries"`
	RetryDelay     time.Duration `json:"retryDelay" yaml:"retryDelay"`
}

type AllocatorConfig struct {
	PollingInterval time.Duration `json:"pollingInterval" yaml:"pollingInterval"`
}

type QueueConfig struct {
	Vendor messaging.Vendor `json:"vendor" yaml:"vendor"`
}

// DefaultConfig returns a Config mirroring the component defaults.
func DefaultConfig() *Config {
	return &Config{
		Processor: ProcessorConfig{
			WorkerCount:    5,
			MaxStepRetries: 0,
			RetryDelay:     3 * time.Second,
		},
		Allocator: AllocatorConfig{
			PollingInterval: 20 * time.Millisecond,
		},
		Queue: QueueConfig{
			Vendor: messaging.VendorMemory,
		},
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Processor.WorkerCount <= 0 {
		return fmt.Errorf("processor.workers must be > 0")
	}
	if c.Processor.MaxStepRetries < 0 {
		return fmt.Errorf("processor.maxStepRetries must be >= 0")
	}
	if c.Allocator.PollingInterval < 0 {
		return fmt.Errorf("allocator.pollingInterval must be >= 0")
	}
	switch c.Queue.Vendor {
	case "", messaging.VendorMemory, messaging.VendorFS:
	default:
		return fmt.Errorf("unsupported queue vendor: %s", c.Queue.Vendor)
	}
	return nil
}
