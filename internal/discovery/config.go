package discovery

import (
	"fmt"
	"time"
)

// Config defines discovery timeouts, concurrency and page caching
type Config struct {
	// Per-query deadline, also used as the HTTP client timeout
	QueryTimeout time.Duration `toml:"query_timeout"`

	// Maximum queries of one plan in flight at once
	MaxConcurrentQueries int `toml:"max_concurrent_queries"`

	UserAgent string `toml:"user_agent"`

	// Page text cache used by the analyzer
	PageCacheSize int           `toml:"page_cache_size"`
	PageCacheTTL  time.Duration `toml:"page_cache_ttl"`
	MaxPageBytes  int           `toml:"max_page_bytes"`
}

// DefaultConfig returns discovery defaults
func DefaultConfig() Config {
	return Config{
		QueryTimeout:         20 * time.Second,
		MaxConcurrentQueries: 4,
		UserAgent:            "Mozilla/5.0 scout/0.1",
		PageCacheSize:        512,
		PageCacheTTL:         30 * time.Minute,
		MaxPageBytes:         16 * 1024,
	}
}

// Validate checks discovery configuration
func (c Config) Validate() error {
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive, got %v", c.QueryTimeout)
	}
	if c.MaxConcurrentQueries <= 0 {
		return fmt.Errorf("max_concurrent_queries must be positive, got %d", c.MaxConcurrentQueries)
	}
	if c.PageCacheSize <= 0 {
		return fmt.Errorf("page_cache_size must be positive, got %d", c.PageCacheSize)
	}
	if c.PageCacheTTL <= 0 {
		return fmt.Errorf("page_cache_ttl must be positive, got %v", c.PageCacheTTL)
	}
	if c.MaxPageBytes <= 0 {
		return fmt.Errorf("max_page_bytes must be positive, got %d", c.MaxPageBytes)
	}
	return nil
}
