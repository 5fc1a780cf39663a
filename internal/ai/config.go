package ai

import (
	"fmt"
	"time"
)

// Config holds the Anthropic client settings and call policy
type Config struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`

	// Token bucket shared by every call
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`

	// Maximum AI calls in flight, 0 = unlimited
	MaxConcurrentCalls int64 `toml:"max_concurrent_calls"`

	MaxRetries        int           `toml:"max_retries"`
	InitialBackoff    time.Duration `toml:"initial_backoff"`
	MaxBackoff        time.Duration `toml:"max_backoff"`
	BackoffMultiplier float64       `toml:"backoff_multiplier"`
	Timeout           time.Duration `toml:"timeout"` // per attempt

	// Judgments remembered by the urgency judge
	JudgeCacheSize int `toml:"judge_cache_size"`
}

// DefaultConfig returns AI defaults
func DefaultConfig() Config {
	return Config{
		Model:              "claude-sonnet-4-5",
		MaxTokens:          2048,
		RequestsPerSecond:  2,
		Burst:              4,
		MaxConcurrentCalls: 3,
		MaxRetries:         3,
		InitialBackoff:     1 * time.Second,
		MaxBackoff:         30 * time.Second,
		BackoffMultiplier:  2.0,
		Timeout:            60 * time.Second,
		JudgeCacheSize:     1024,
	}
}

// Validate checks the configuration. The API key is only required by
// NewClient, so offline commands can load a config without one.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("ai model is required")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive, got %v", c.RequestsPerSecond)
	}
	if c.Burst <= 0 {
		return fmt.Errorf("burst must be positive, got %d", c.Burst)
	}
	if c.MaxConcurrentCalls < 0 {
		return fmt.Errorf("max_concurrent_calls must not be negative, got %d", c.MaxConcurrentCalls)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.InitialBackoff <= 0 || c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("backoff must satisfy 0 < initial_backoff <= max_backoff")
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be at least 1, got %v", c.BackoffMultiplier)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.JudgeCacheSize <= 0 {
		return fmt.Errorf("judge_cache_size must be positive, got %d", c.JudgeCacheSize)
	}
	return nil
}
