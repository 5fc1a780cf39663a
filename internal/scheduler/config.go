package scheduler

import (
	"fmt"
	"time"
)

// SchedulerConfig defines configuration for the scheduler's main loop
type SchedulerConfig struct {
	// Main loop iteration interval
	LoopInterval time.Duration `toml:"loop_interval"`

	// Runs in flight across all scouts
	MaxConcurrentRuns int64 `toml:"max_concurrent_runs"`

	// Completion inbox buffer size
	InboxBufferSize int `toml:"inbox_buffer_size"`

	// Timeout for sending to inbox
	InboxSendTimeout time.Duration `toml:"inbox_send_timeout"`
}

// DefaultSchedulerConfig returns scheduler configuration defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		LoopInterval:      30 * time.Second,
		MaxConcurrentRuns: 4,
		InboxBufferSize:   1000,
		InboxSendTimeout:  5 * time.Second,
	}
}

// Validate validates scheduler configuration
func (c SchedulerConfig) Validate() error {
	return validateConfig(c)
}

// validateConfig validates scheduler configuration and returns error if invalid
func validateConfig(config SchedulerConfig) error {
	if config.LoopInterval <= 0 {
		return fmt.Errorf("LoopInterval must be positive, got %v", config.LoopInterval)
	}

	if config.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("MaxConcurrentRuns must be positive, got %d", config.MaxConcurrentRuns)
	}

	if config.InboxBufferSize <= 0 {
		return fmt.Errorf("InboxBufferSize must be positive, got %d", config.InboxBufferSize)
	}

	if int64(config.InboxBufferSize) < config.MaxConcurrentRuns {
		return fmt.Errorf("InboxBufferSize (%d) must be at least MaxConcurrentRuns (%d)",
			config.InboxBufferSize, config.MaxConcurrentRuns)
	}

	if config.InboxSendTimeout <= 0 {
		return fmt.Errorf("InboxSendTimeout must be positive, got %v", config.InboxSendTimeout)
	}

	return nil
}
