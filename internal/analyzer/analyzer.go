package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/livinlefevreloca/scout/internal/scout"
)

// Extractor scores and extracts structured detail for one candidate
type Extractor interface {
	Extract(ctx context.Context, sc *scout.Scout, candidate scout.Candidate) (scout.Extraction, error)
}

// Config for the analysis worker pool
type Config struct {
	Workers     int           `toml:"workers"`
	CallTimeout time.Duration `toml:"call_timeout"`
}

// DefaultConfig returns analyzer defaults
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		CallTimeout: 60 * time.Second,
	}
}

// Validate checks analyzer configuration
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive, got %v", c.CallTimeout)
	}
	return nil
}

// Outcome is the analysis result of one candidate, exactly one of Analyzed
// and Err is set
type Outcome struct {
	Candidate scout.Candidate
	Analyzed  *scout.AnalyzedCandidate
	Err       error
}

// Batch holds outcomes in input order
type Batch struct {
	Outcomes []Outcome
}

// Analyzed returns the successfully analyzed candidates
func (b Batch) Analyzed() []scout.AnalyzedCandidate {
	out := make([]scout.AnalyzedCandidate, 0, len(b.Outcomes))
	for _, o := range b.Outcomes {
		if o.Analyzed != nil {
			out = append(out, *o.Analyzed)
		}
	}
	return out
}

// Failures returns the candidate-level errors
func (b Batch) Failures() []error {
	var out []error
	for _, o := range b.Outcomes {
		if o.Err != nil {
			out = append(out, o.Err)
		}
	}
	return out
}

// Analyzer runs the extractor over candidates through a fixed worker pool
type Analyzer struct {
	extractor Extractor
	config    Config
	logger    *slog.Logger
}

func New(extractor Extractor, config Config, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		extractor: extractor,
		config:    config,
		logger:    logger,
	}
}

// Analyze extracts every unique candidate. Failures are recorded as
// *scout.AnalysisError in the batch and never stop the others.
func (a *Analyzer) Analyze(ctx context.Context, sc *scout.Scout, candidates []scout.Candidate) Batch {
	unique := make([]scout.Candidate, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.URL]; dup {
			continue
		}
		seen[c.URL] = struct{}{}
		unique = append(unique, c)
	}

	outcomes := make([]Outcome, len(unique))
	jobs := make(chan int)

	workers := min(a.config.Workers, len(unique))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = a.analyzeOne(ctx, sc, unique[i])
			}
		}()
	}

	for i := range unique {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	batch := Batch{Outcomes: outcomes}
	failures := batch.Failures()
	for _, err := range failures {
		a.logger.Warn("candidate analysis failed", "scout_id", sc.ID, "error", err)
	}
	a.logger.Debug("analysis complete",
		"scout_id", sc.ID,
		"candidates", len(unique),
		"failed", len(failures))

	return batch
}

func (a *Analyzer) analyzeOne(ctx context.Context, sc *scout.Scout, c scout.Candidate) (outcome Outcome) {
	outcome.Candidate = c

	defer func() {
		if r := recover(); r != nil {
			outcome.Analyzed = nil
			outcome.Err = &scout.AnalysisError{URL: c.URL, Err: fmt.Errorf("extractor panic: %v", r)}
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, a.config.CallTimeout)
	defer cancel()

	extraction, err := a.extractor.Extract(callCtx, sc, c)
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
		outcome.Err = &scout.AnalysisError{URL: c.URL, Timeout: timedOut, Err: err}
		return outcome
	}

	if err := ValidateExtraction(extraction); err != nil {
		outcome.Err = &scout.AnalysisError{URL: c.URL, Err: err}
		return outcome
	}

	outcome.Analyzed = &scout.AnalyzedCandidate{
		Candidate:      c,
		RelevanceScore: extraction.RelevanceScore,
		Detail:         extraction.Detail,
		Rationale:      extraction.Rationale,
		Confidence:     extraction.Confidence,
		Urgency:        extraction.Urgency,
	}
	return outcome
}

// ValidateExtraction rejects out-of-range scores instead of clamping them
func ValidateExtraction(e scout.Extraction) error {
	if !inUnitInterval(e.RelevanceScore) {
		return fmt.Errorf("relevance_score %v outside [0,1]", e.RelevanceScore)
	}
	if !inUnitInterval(e.Confidence) {
		return fmt.Errorf("confidence %v outside [0,1]", e.Confidence)
	}
	switch e.Urgency {
	case scout.UrgencyNone, scout.UrgencyLow, scout.UrgencyElevated, scout.UrgencyImmediate:
	default:
		return fmt.Errorf("unknown urgency %q", e.Urgency)
	}
	if detail := bytes.TrimSpace(e.Detail); len(detail) > 0 && detail[0] != '{' {
		return errors.New("detail must be a JSON object")
	}
	return nil
}

func inUnitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
