package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/livinlefevreloca/scout/internal/classifier"
	"github.com/livinlefevreloca/scout/internal/scout"
)

// Syncer handles the result write phase of runs
type Syncer struct {
	// Configuration
	config Config
	store  ResultStore
	logger *slog.Logger

	// Statistics
	mu    sync.Mutex
	stats Stats

	now func() time.Time
}

// NewSyncer creates a new syncer with the specified configuration
func NewSyncer(config Config, store ResultStore, logger *slog.Logger) (*Syncer, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return &Syncer{
		config: config,
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Batch buffers the results of one run. It is not safe for concurrent use.
type Batch struct {
	syncer  *Syncer
	scoutID string
	runID   string
	buffer  []scout.Result
	index   map[string]int
	skipped int
}

// NewBatch starts a write batch for one run
func (s *Syncer) NewBatch(scoutID, runID string) *Batch {
	return &Batch{
		syncer:  s,
		scoutID: scoutID,
		runID:   runID,
		buffer:  make([]scout.Result, 0),
		index:   make(map[string]int),
	}
}

// BufferResult adds a classified candidate to the batch. Categories that
// must not be persisted are skipped; a repeated URL replaces the earlier
// entry. Returns error if buffer exceeds maximum allowed size.
func (b *Batch) BufferResult(c scout.ClassifiedCandidate) error {
	if !classifier.ShouldPersist(c.Category) {
		b.skipped++
		return nil
	}

	result := scout.Result{
		ScoutID:        b.scoutID,
		RunID:          b.runID,
		URL:            c.URL,
		Title:          c.Title,
		Category:       c.Category,
		RelevanceScore: c.RelevanceScore,
		Detail:         c.Detail,
		Rationale:      c.Rationale,
		UpdatedAt:      b.syncer.now(),
	}

	if i, ok := b.index[c.URL]; ok {
		b.buffer[i] = result
		return nil
	}

	b.index[c.URL] = len(b.buffer)
	b.buffer = append(b.buffer, result)

	// Check if buffer exceeded maximum
	if len(b.buffer) > b.syncer.config.MaxBufferedResults {
		return fmt.Errorf("result buffer exceeded maximum size: %d > %d",
			len(b.buffer), b.syncer.config.MaxBufferedResults)
	}

	return nil
}

// Len returns the number of buffered results
func (b *Batch) Len() int {
	return len(b.buffer)
}

// Flush writes every buffered result in one transaction
func (b *Batch) Flush(ctx context.Context) (scout.WriteReport, error) {
	s := b.syncer
	if len(b.buffer) == 0 {
		s.record(scout.WriteReport{}, b.skipped, nil)
		return scout.WriteReport{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.FlushTimeout)
	defer cancel()

	report, err := s.store.UpsertResults(ctx, b.buffer)
	s.record(report, b.skipped, err)
	if err != nil {
		s.logger.Error("failed to write results",
			"scout_id", b.scoutID,
			"run_id", b.runID,
			"results", len(b.buffer),
			"error", err)
		return scout.WriteReport{}, &scout.PersistenceError{Op: "upsert results", Err: err}
	}

	s.logger.Debug("wrote results",
		"scout_id", b.scoutID,
		"run_id", b.runID,
		"inserted", report.Inserted,
		"updated", report.Updated)

	b.buffer = make([]scout.Result, 0)
	b.index = make(map[string]int)
	return report, nil
}

// Upsert buffers eligible candidates of a run and flushes them at once.
// Any failure is a *scout.PersistenceError and nothing is committed.
func (s *Syncer) Upsert(ctx context.Context, scoutID, runID string, eligible []scout.ClassifiedCandidate) (scout.WriteReport, error) {
	batch := s.NewBatch(scoutID, runID)
	for _, c := range eligible {
		if err := batch.BufferResult(c); err != nil {
			s.record(scout.WriteReport{}, batch.skipped, err)
			return scout.WriteReport{}, &scout.PersistenceError{Op: "buffer results", Err: err}
		}
	}

	if batch.skipped > 0 {
		s.logger.Warn("skipped results with non-persistable category",
			"scout_id", scoutID,
			"run_id", runID,
			"skipped", batch.skipped)
	}

	return batch.Flush(ctx)
}

func (s *Syncer) record(report scout.WriteReport, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.SkippedResults += skipped
	if err != nil {
		s.stats.FlushFailures++
		return
	}
	s.stats.BatchesFlushed++
	s.stats.ResultsInserted += report.Inserted
	s.stats.ResultsUpdated += report.Updated
	s.stats.LastFlush = s.now()
}

// GetStats returns current syncer statistics
func (s *Syncer) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// GetConfig returns the syncer configuration
func (s *Syncer) GetConfig() Config {
	return s.config
}
