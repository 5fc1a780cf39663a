package syncer

import (
	"fmt"
	"time"
)

// Config defines configuration for the result writer's buffering
type Config struct {
	// Maximum buffered results of one run before the write is refused
	MaxBufferedResults int `toml:"max_buffered_results"`

	// Deadline of the single flush transaction
	FlushTimeout time.Duration `toml:"flush_timeout"`
}

// DefaultConfig returns result writer defaults
func DefaultConfig() Config {
	return Config{
		MaxBufferedResults: 1000,
		FlushTimeout:       30 * time.Second,
	}
}

// validateConfig validates syncer configuration and returns error if invalid
func validateConfig(config Config) error {
	if config.MaxBufferedResults <= 0 {
		return fmt.Errorf("MaxBufferedResults must be positive, got %d", config.MaxBufferedResults)
	}

	if config.FlushTimeout <= 0 {
		return fmt.Errorf("FlushTimeout must be positive, got %v", config.FlushTimeout)
	}

	return nil
}

// Validate checks the configuration
func (c Config) Validate() error {
	return validateConfig(c)
}
