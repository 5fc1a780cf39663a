package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/livinlefevreloca/scout/internal/ai"
	"github.com/livinlefevreloca/scout/internal/analyzer"
	"github.com/livinlefevreloca/scout/internal/db"
	"github.com/livinlefevreloca/scout/internal/discovery"
	"github.com/livinlefevreloca/scout/internal/planner"
	"github.com/livinlefevreloca/scout/internal/scheduler"
	"github.com/livinlefevreloca/scout/internal/scout"
	"github.com/livinlefevreloca/scout/internal/syncer"
)

// Environment variables that override file settings
const (
	EnvDBDriver = "SCOUT_DB_DRIVER"
	EnvDBDSN    = "SCOUT_DB_DSN"
	EnvAPIKey   = "ANTHROPIC_API_KEY"
	EnvAIModel  = "SCOUT_AI_MODEL"
)

// Config represents the application configuration
type Config struct {
	Database   db.Config                 `toml:"database"`
	Logging    LoggingConfig             `toml:"logging"`
	Runner     analyzer.Config           `toml:"runner"`
	AI         ai.Config                 `toml:"ai"`
	Planner    planner.Config            `toml:"planner"`
	Classifier ClassifierConfig          `toml:"classifier"`
	Discovery  discovery.Config          `toml:"discovery"`
	Scheduler  scheduler.SchedulerConfig `toml:"scheduler"`
	Syncer     syncer.Config             `toml:"syncer"`
}

// ClassifierConfig selects the urgency judge: "signal" trusts the analysis
// urgency, "ai" asks the model
type ClassifierConfig struct {
	Judge string `toml:"judge"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: db.Config{
			Driver:          db.DriverSQLite,
			DSN:             "scout.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Runner:     analyzer.DefaultConfig(),
		AI:         ai.DefaultConfig(),
		Planner:    planner.DefaultConfig(),
		Classifier: ClassifierConfig{Judge: "signal"},
		Discovery:  discovery.DefaultConfig(),
		Scheduler:  scheduler.DefaultSchedulerConfig(),
		Syncer:     syncer.DefaultConfig(),
	}
}

// LoadFromFile loads configuration from a TOML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	meta, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}

	return config, nil
}

// LoadConfig loads configuration with the following precedence:
// 1. Default values
// 2. Config file (if specified)
// 3. Environment variables, including a .env file in the working directory
// 4. Command-line flags (handled by caller)
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		fileConfig, err := LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	// Missing .env is fine; variables already set win over the file
	_ = godotenv.Load()
	config.applyEnv(os.LookupEnv)

	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := nonEmpty(lookup, EnvDBDriver); ok {
		c.Database.Driver = v
	}
	if v, ok := nonEmpty(lookup, EnvDBDSN); ok {
		c.Database.DSN = v
	}
	if v, ok := nonEmpty(lookup, EnvAPIKey); ok {
		c.AI.APIKey = v
	}
	if v, ok := nonEmpty(lookup, EnvAIModel); ok {
		c.AI.Model = v
	}
}

func nonEmpty(lookup func(string) (string, bool), key string) (string, bool) {
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Database validation
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver must be specified")
	}
	if c.Database.Driver != db.DriverSQLite && c.Database.Driver != db.DriverPostgres {
		return fmt.Errorf("unsupported database driver: %s (must be %s or %s)", c.Database.Driver, db.DriverSQLite, db.DriverPostgres)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN must be specified")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if err := c.Runner.Validate(); err != nil {
		return fmt.Errorf("runner: %w", err)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	if err := c.Planner.Validate(); err != nil {
		return fmt.Errorf("planner: %w", err)
	}
	if c.Classifier.Judge != "signal" && c.Classifier.Judge != "ai" {
		return fmt.Errorf("classifier judge must be signal or ai, got %q", c.Classifier.Judge)
	}
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.Syncer.Validate(); err != nil {
		return fmt.Errorf("syncer: %w", err)
	}
	if c.Syncer.MaxBufferedResults < scout.MaxResultsLimit {
		return fmt.Errorf("syncer: max_buffered_results must be at least %d to hold a full run", scout.MaxResultsLimit)
	}

	return nil
}
