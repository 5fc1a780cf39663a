package db

import (
	"context"
	"fmt"
	"time"
)

// schemaStatements create the tables if they do not exist. Types are chosen so
// the same DDL runs on SQLite and PostgreSQL.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS scouts (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL,
		instructions      TEXT NOT NULL DEFAULT '',
		keywords          TEXT NOT NULL DEFAULT '[]',
		platform          TEXT NOT NULL,
		platform_config   TEXT,
		max_results       INTEGER NOT NULL,
		quality_threshold DOUBLE PRECISION NOT NULL,
		frequency         TEXT NOT NULL DEFAULT '',
		is_running        BOOLEAN NOT NULL DEFAULT FALSE,
		total_runs        INTEGER NOT NULL DEFAULT 0,
		last_run_at       TIMESTAMP,
		created_at        TIMESTAMP NOT NULL,
		updated_at        TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scout_runs (
		id                   TEXT PRIMARY KEY,
		scout_id             TEXT NOT NULL REFERENCES scouts(id) ON DELETE CASCADE,
		status               TEXT NOT NULL,
		started_at           TIMESTAMP NOT NULL,
		completed_at         TIMESTAMP,
		results_count        INTEGER NOT NULL DEFAULT 0,
		high_relevance_count INTEGER NOT NULL DEFAULT 0,
		error                TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scout_runs_scout ON scout_runs (scout_id, started_at)`,
	`CREATE TABLE IF NOT EXISTS scout_results (
		scout_id        TEXT NOT NULL REFERENCES scouts(id) ON DELETE CASCADE,
		url             TEXT NOT NULL,
		run_id          TEXT NOT NULL,
		category        TEXT NOT NULL CHECK (category IN ('immediate_action', 'high_priority')),
		relevance_score DOUBLE PRECISION NOT NULL,
		title           TEXT NOT NULL DEFAULT '',
		detail          TEXT,
		rationale       TEXT NOT NULL DEFAULT '',
		updated_at      TIMESTAMP NOT NULL,
		UNIQUE (scout_id, url)
	)`,
}

// EnsureSchema creates any missing tables
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Scout represents a stored scout definition
type Scout struct {
	ID               string
	Name             string
	Instructions     string
	Keywords         string  // JSON array
	Platform         string
	PlatformConfig   *string // JSON object
	MaxResults       int
	QualityThreshold float64
	Frequency        string
	IsRunning        bool
	TotalRuns        int
	LastRunAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ScoutRun represents a single execution of a scout
type ScoutRun struct {
	ID                 string
	ScoutID            string
	Status             string
	StartedAt          time.Time
	CompletedAt        *time.Time
	ResultsCount       int
	HighRelevanceCount int
	Error              *string
}

// ScoutResult represents a persisted, accepted candidate
type ScoutResult struct {
	ScoutID        string
	URL            string
	RunID          string
	Category       string
	RelevanceScore float64
	Title          string
	Detail         *string // JSON object
	Rationale      string
	UpdatedAt      time.Time
}
