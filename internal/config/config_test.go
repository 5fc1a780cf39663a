package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Database defaults
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("expected driver sqlite3, got %s", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "scout.db" {
		t.Errorf("expected DSN scout.db, got %s", cfg.Database.DSN)
	}

	// Pipeline defaults
	if cfg.Planner.Mode != "keyword" {
		t.Errorf("expected keyword planner, got %s", cfg.Planner.Mode)
	}
	if cfg.Classifier.Judge != "signal" {
		t.Errorf("expected signal judge, got %s", cfg.Classifier.Judge)
	}
	if cfg.Runner.Workers <= 0 {
		t.Errorf("expected positive runner workers, got %d", cfg.Runner.Workers)
	}

	// Scheduler defaults
	if cfg.Scheduler.LoopInterval != 30*time.Second {
		t.Errorf("expected loop_interval 30s, got %v", cfg.Scheduler.LoopInterval)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[database]
driver = "pgx"
dsn = "postgres://localhost/scout"
max_open_conns = 50

[logging]
level = "debug"
format = "text"

[runner]
workers = 8
call_timeout = "45s"

[ai]
model = "claude-haiku-4-5"
requests_per_second = 0.5

[planner]
mode = "ai"

[classifier]
judge = "ai"

[scheduler]
loop_interval = "2m"
max_concurrent_runs = 2
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Check overridden values
	if cfg.Database.Driver != "pgx" {
		t.Errorf("expected driver pgx, got %s", cfg.Database.Driver)
	}
	if cfg.Database.MaxOpenConns != 50 {
		t.Errorf("expected max_open_conns 50, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected text logging, got %s", cfg.Logging.Format)
	}
	if cfg.Runner.Workers != 8 || cfg.Runner.CallTimeout != 45*time.Second {
		t.Errorf("unexpected runner config %+v", cfg.Runner)
	}
	if cfg.AI.Model != "claude-haiku-4-5" || cfg.AI.RequestsPerSecond != 0.5 {
		t.Errorf("unexpected ai config %+v", cfg.AI)
	}
	if cfg.Planner.Mode != "ai" || cfg.Classifier.Judge != "ai" {
		t.Errorf("expected ai planner and judge, got %s/%s", cfg.Planner.Mode, cfg.Classifier.Judge)
	}
	if cfg.Scheduler.LoopInterval != 2*time.Minute {
		t.Errorf("expected loop_interval 2m, got %v", cfg.Scheduler.LoopInterval)
	}
	if cfg.Scheduler.MaxConcurrentRuns != 2 {
		t.Errorf("expected max_concurrent_runs 2, got %d", cfg.Scheduler.MaxConcurrentRuns)
	}

	// Check default values still present
	if cfg.Database.MaxIdleConns != 5 {
		t.Errorf("expected max_idle_conns default 5, got %d", cfg.Database.MaxIdleConns)
	}
	if cfg.AI.MaxRetries != 3 {
		t.Errorf("expected ai max_retries default 3, got %d", cfg.AI.MaxRetries)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected loaded config to validate, got %v", err)
	}
}

func TestLoadFromFile_UnknownKey(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[planner]\nmodee = \"ai\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil || !strings.Contains(err.Error(), "modee") {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/config.toml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	t.Setenv(EnvDBDriver, "")
	t.Setenv(EnvDBDSN, "")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected no error for empty config path, got %v", err)
	}

	// Should return defaults
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("expected default driver, got %s", cfg.Database.Driver)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDBDriver, "pgx")
	t.Setenv(EnvDBDSN, "postgres://env/scout")
	t.Setenv(EnvAPIKey, "sk-test")
	t.Setenv(EnvAIModel, "  claude-opus-4-1 ")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Database.Driver != "pgx" {
		t.Errorf("expected driver from env, got %s", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "postgres://env/scout" {
		t.Errorf("expected DSN from env, got %s", cfg.Database.DSN)
	}
	if cfg.AI.APIKey != "sk-test" {
		t.Errorf("expected api key from env, got %q", cfg.AI.APIKey)
	}
	if cfg.AI.Model != "claude-opus-4-1" {
		t.Errorf("expected trimmed model from env, got %q", cfg.AI.Model)
	}
}

func TestApplyEnv_BlankIgnored(t *testing.T) {
	cfg := DefaultConfig()
	cfg.applyEnv(func(key string) (string, bool) {
		if key == EnvDBDSN {
			return "   ", true
		}
		return "", false
	})

	if cfg.Database.DSN != "scout.db" {
		t.Errorf("expected blank env value to be ignored, got %q", cfg.Database.DSN)
	}
}

func TestValidate_Success(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty driver", func(c *Config) { c.Database.Driver = "" }, "driver"},
		{"unsupported driver", func(c *Config) { c.Database.Driver = "mysql" }, "unsupported"},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, "DSN"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
		{"runner workers", func(c *Config) { c.Runner.Workers = 0 }, "runner"},
		{"planner mode", func(c *Config) { c.Planner.Mode = "magic" }, "planner"},
		{"judge", func(c *Config) { c.Classifier.Judge = "coin" }, "judge"},
		{"scheduler interval", func(c *Config) { c.Scheduler.LoopInterval = 0 }, "scheduler"},
		{"syncer buffer below run size", func(c *Config) { c.Syncer.MaxBufferedResults = 100 }, "max_buffered_results"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}
