package scout

import (
	"encoding/json"
	"fmt"
	"time"
)

// Scout is a named, persistent search profile
type Scout struct {
	ID               string
	Name             string
	Instructions     string
	Keywords         []string
	Platform         string
	PlatformConfig   json.RawMessage // Opaque to the orchestrator, interpreted by the platform source
	MaxResults       int
	QualityThreshold float64 // 0-1
	Frequency        string  // cron expression or alias, empty means manual only
	TotalRuns        int
	IsRunning        bool
	LastRunAt        *time.Time
}

// MaxResultsLimit bounds max_results so one run's results fit a single
// write batch.
const MaxResultsLimit = 1000

// Validate reports whether the scout configuration can drive a run at all.
// Keyword checks and platform support belong to planning.
func (s *Scout) Validate() error {
	if s.ID == "" {
		return &ConfigurationError{ScoutID: s.ID, Reason: "scout id is empty"}
	}
	if s.Platform == "" {
		return &ConfigurationError{ScoutID: s.ID, Reason: "platform is empty"}
	}
	if s.QualityThreshold < 0 || s.QualityThreshold > 1 || s.QualityThreshold != s.QualityThreshold {
		return &ConfigurationError{ScoutID: s.ID, Reason: "quality_threshold must be within [0,1]"}
	}
	if s.MaxResults <= 0 {
		return &ConfigurationError{ScoutID: s.ID, Reason: "max_results must be positive"}
	}
	if s.MaxResults > MaxResultsLimit {
		return &ConfigurationError{ScoutID: s.ID, Reason: fmt.Sprintf("max_results must be at most %d", MaxResultsLimit)}
	}
	if len(s.PlatformConfig) > 0 && !json.Valid(s.PlatformConfig) {
		return &ConfigurationError{ScoutID: s.ID, Reason: "platform_config is not valid JSON"}
	}
	return nil
}

// RunStatus is the persisted lifecycle status of a run
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// IsTerminal returns true for completed and failed
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed
}

// CanTransitionTo enforces pending -> running -> {completed|failed}
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunPending:
		return next == RunRunning
	case RunRunning:
		return next == RunCompleted || next == RunFailed
	default:
		return false
	}
}

// Run is one execution of the pipeline for a scout
type Run struct {
	ID                 string
	ScoutID            string
	Status             RunStatus
	StartedAt          time.Time
	CompletedAt        *time.Time
	ResultsCount       int
	HighRelevanceCount int
	Error              *string
}

// DiscoveryQuery is one concrete search against a platform
type DiscoveryQuery struct {
	Platform string
	Target   string   // search string or feed URL, interpreted by the platform source
	Keywords []string // keywords this query covers, used for local filtering
	Limit    int      // expected result cap, never above the scout's max_results
	Page     int      // pagination hint, 1-based
}

// Candidate is a raw discovered item before enrichment
type Candidate struct {
	Title       string
	URL         string
	Author      string
	Snippet     string
	Source      string
	PublishedAt *time.Time
	Metadata    map[string]string
}

// Extraction is the validated answer of the analysis capability
type Extraction struct {
	Detail         json.RawMessage
	RelevanceScore float64
	Rationale      string
	Confidence     float64
	Urgency        Urgency
}

// Urgency is the qualitative signal the analysis step attaches to a candidate
type Urgency string

const (
	UrgencyNone      Urgency = ""
	UrgencyLow       Urgency = "low"
	UrgencyElevated  Urgency = "elevated"
	UrgencyImmediate Urgency = "immediate"
)

// AnalyzedCandidate is a candidate enriched by the analysis capability
type AnalyzedCandidate struct {
	Candidate
	RelevanceScore float64
	Detail         json.RawMessage
	Rationale      string
	Confidence     float64
	Urgency        Urgency
}

// Category is the priority tier of a classified candidate
type Category string

const (
	CategoryImmediateAction Category = "immediate_action"
	CategoryHighPriority    Category = "high_priority"
	CategoryWatchList       Category = "watch_list"
)

// Valid returns true for the three known tiers
func (c Category) Valid() bool {
	switch c {
	case CategoryImmediateAction, CategoryHighPriority, CategoryWatchList:
		return true
	default:
		return false
	}
}

// ClassifiedCandidate is an analyzed candidate with its tier
type ClassifiedCandidate struct {
	AnalyzedCandidate
	Category Category
}

// Result is the durable row for an accepted candidate, unique on (ScoutID, URL)
type Result struct {
	ScoutID        string
	RunID          string
	URL            string
	Title          string
	Category       Category
	RelevanceScore float64
	Detail         json.RawMessage
	Rationale      string
	UpdatedAt      time.Time
}

// WriteReport counts the rows touched by one upsert batch
type WriteReport struct {
	Inserted int
	Updated  int
}

// Persisted returns the total number of rows written
func (w WriteReport) Persisted() int {
	return w.Inserted + w.Updated
}
