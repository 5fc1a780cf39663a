package orchestrator

import (
	"context"

	"github.com/livinlefevreloca/scout/internal/analyzer"
	"github.com/livinlefevreloca/scout/internal/discovery"
	"github.com/livinlefevreloca/scout/internal/report"
	"github.com/livinlefevreloca/scout/internal/scout"
	"github.com/livinlefevreloca/scout/internal/tracker"
)

// Request identifies the scout to run. RunID is generated when empty.
type Request struct {
	ScoutID string
	RunID   string
}

// Outcome is the result of one run as reported to callers
type Outcome struct {
	RunID              string          `json:"run_id"`
	Status             scout.RunStatus `json:"status"`
	ResultsCount       int             `json:"results_count"`
	HighRelevanceCount int             `json:"high_relevance_count"`
	Error              string          `json:"error,omitempty"`
	Report             *report.Report  `json:"-"`
}

// ScoutLoader loads scout configuration
type ScoutLoader interface {
	GetScout(ctx context.Context, id string) (*scout.Scout, error)
}

// RunTracker owns the run record and the running flag
type RunTracker interface {
	Start(ctx context.Context, scoutID, runID string) (*scout.Run, error)
	Finish(ctx context.Context, run *scout.Run, outcome tracker.Outcome) error
}

// QueryPlanner builds the discovery plan
type QueryPlanner interface {
	Plan(ctx context.Context, sc *scout.Scout) ([]scout.DiscoveryQuery, error)
}

// CandidateDiscoverer runs a plan against the content sources
type CandidateDiscoverer interface {
	DiscoverAll(ctx context.Context, sc *scout.Scout, plan []scout.DiscoveryQuery) (discovery.Result, error)
}

// CandidateAnalyzer enriches candidates
type CandidateAnalyzer interface {
	Analyze(ctx context.Context, sc *scout.Scout, candidates []scout.Candidate) analyzer.Batch
}

// CandidateClassifier assigns tiers
type CandidateClassifier interface {
	ClassifyAll(ctx context.Context, sc *scout.Scout, analyzed []scout.AnalyzedCandidate) []scout.ClassifiedCandidate
}

// ResultWriter persists the eligible candidates of a run
type ResultWriter interface {
	Upsert(ctx context.Context, scoutID, runID string, eligible []scout.ClassifiedCandidate) (scout.WriteReport, error)
}

// Dependencies wires the pipeline components
type Dependencies struct {
	Scouts     ScoutLoader
	Tracker    RunTracker
	Planner    QueryPlanner
	Discoverer CandidateDiscoverer
	Analyzer   CandidateAnalyzer
	Classifier CandidateClassifier
	Writer     ResultWriter
}
