package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/livinlefevreloca/scout/internal/db"
	"github.com/livinlefevreloca/scout/internal/scout"
)

// Store adapts the internal db.DB to the repository interfaces used by the
// tracker, orchestrator, result writer and scheduler
type Store struct {
	db *db.DB
}

// New creates a new store backed by database
func New(database *db.DB) *Store {
	return &Store{db: database}
}

// GetScout loads a scout by id. A missing scout is scout.ErrNotFound.
func (s *Store) GetScout(ctx context.Context, id string) (*scout.Scout, error) {
	row, err := s.db.GetScout(ctx, id)
	if db.IsNotFound(err) {
		return nil, fmt.Errorf("scout %q: %w", id, scout.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scout %q: %w", id, err)
	}
	return scoutFromRow(row)
}

// ListScouts returns every stored scout. Rows that cannot be decoded are
// returned as an error rather than skipped.
func (s *Store) ListScouts(ctx context.Context) ([]scout.Scout, error) {
	rows, err := s.db.GetAllScouts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scouts: %w", err)
	}

	scouts := make([]scout.Scout, 0, len(rows))
	for i := range rows {
		sc, err := scoutFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		scouts = append(scouts, *sc)
	}
	return scouts, nil
}

// SaveScout inserts or updates a scout definition
func (s *Store) SaveScout(ctx context.Context, sc *scout.Scout) error {
	row, err := scoutToRow(sc)
	if err != nil {
		return err
	}
	if err := s.db.SaveScout(ctx, row); err != nil {
		return fmt.Errorf("failed to save scout %q: %w", sc.ID, err)
	}
	return nil
}

// DeleteScout removes a scout together with its runs and results
func (s *Store) DeleteScout(ctx context.Context, id string) error {
	err := s.db.DeleteScout(ctx, id)
	if db.IsNotFound(err) {
		return fmt.Errorf("scout %q: %w", id, scout.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete scout %q: %w", id, err)
	}
	return nil
}

// SetRunning flips the scout's running flag with a compare-and-set
func (s *Store) SetRunning(ctx context.Context, scoutID string, running bool) (bool, error) {
	changed, err := s.db.SetScoutRunning(ctx, scoutID, running)
	if db.IsNotFound(err) {
		return false, fmt.Errorf("scout %q: %w", scoutID, scout.ErrNotFound)
	}
	return changed, err
}

// IncrementTotalRuns adds one to the scout's run counter
func (s *Store) IncrementTotalRuns(ctx context.Context, scoutID string) error {
	err := s.db.IncrementScoutTotalRuns(ctx, scoutID)
	if db.IsNotFound(err) {
		return fmt.Errorf("scout %q: %w", scoutID, scout.ErrNotFound)
	}
	return err
}

// CreateRun records a new run
func (s *Store) CreateRun(ctx context.Context, run *scout.Run) error {
	return s.db.CreateScoutRun(ctx, runToRow(run))
}

// FinishRun records the terminal state of a run
func (s *Store) FinishRun(ctx context.Context, run *scout.Run) error {
	err := s.db.FinishScoutRun(ctx, runToRow(run))
	if db.IsNotFound(err) {
		return fmt.Errorf("run %q: %w", run.ID, scout.ErrRunTerminal)
	}
	return err
}

// GetRun loads a run by id
func (s *Store) GetRun(ctx context.Context, runID string) (*scout.Run, error) {
	row, err := s.db.GetScoutRun(ctx, runID)
	if db.IsNotFound(err) {
		return nil, fmt.Errorf("run %q: %w", runID, scout.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	run := runFromRow(row)
	return &run, nil
}

// ListRuns returns the most recent runs of a scout
func (s *Store) ListRuns(ctx context.Context, scoutID string, limit int) ([]scout.Run, error) {
	rows, err := s.db.GetScoutRuns(ctx, scoutID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]scout.Run, 0, len(rows))
	for i := range rows {
		runs = append(runs, runFromRow(&rows[i]))
	}
	return runs, nil
}

// UpsertResults writes a batch of accepted results in one transaction
func (s *Store) UpsertResults(ctx context.Context, results []scout.Result) (scout.WriteReport, error) {
	rows := make([]db.ScoutResult, 0, len(results))
	for _, r := range results {
		rows = append(rows, resultToRow(r))
	}

	inserted, updated, err := s.db.UpsertScoutResults(ctx, rows)
	if err != nil {
		return scout.WriteReport{}, err
	}
	return scout.WriteReport{Inserted: inserted, Updated: updated}, nil
}

// GetResult loads one persisted result by its natural key
func (s *Store) GetResult(ctx context.Context, scoutID, url string) (*scout.Result, error) {
	row, err := s.db.GetScoutResult(ctx, scoutID, url)
	if db.IsNotFound(err) {
		return nil, fmt.Errorf("result %q: %w", url, scout.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	result := resultFromRow(row)
	return &result, nil
}

// ListResults returns persisted results of a scout, best first
func (s *Store) ListResults(ctx context.Context, scoutID string, limit int) ([]scout.Result, error) {
	rows, err := s.db.GetScoutResults(ctx, scoutID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	results := make([]scout.Result, 0, len(rows))
	for i := range rows {
		results = append(results, resultFromRow(&rows[i]))
	}
	return results, nil
}

// Conversion helpers

func scoutFromRow(row *db.Scout) (*scout.Scout, error) {
	sc := &scout.Scout{
		ID:               row.ID,
		Name:             row.Name,
		Instructions:     row.Instructions,
		Platform:         row.Platform,
		MaxResults:       row.MaxResults,
		QualityThreshold: row.QualityThreshold,
		Frequency:        row.Frequency,
		TotalRuns:        row.TotalRuns,
		IsRunning:        row.IsRunning,
		LastRunAt:        row.LastRunAt,
	}

	if row.Keywords != "" {
		if err := json.Unmarshal([]byte(row.Keywords), &sc.Keywords); err != nil {
			return nil, &scout.ConfigurationError{ScoutID: row.ID, Reason: "keywords are not a JSON array", Err: err}
		}
	}
	if row.PlatformConfig != nil {
		sc.PlatformConfig = json.RawMessage(*row.PlatformConfig)
	}

	return sc, nil
}

func scoutToRow(sc *scout.Scout) (*db.Scout, error) {
	keywords := sc.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	encoded, err := json.Marshal(keywords)
	if err != nil {
		return nil, fmt.Errorf("failed to encode keywords: %w", err)
	}

	row := &db.Scout{
		ID:               sc.ID,
		Name:             sc.Name,
		Instructions:     sc.Instructions,
		Keywords:         string(encoded),
		Platform:         sc.Platform,
		MaxResults:       sc.MaxResults,
		QualityThreshold: sc.QualityThreshold,
		Frequency:        sc.Frequency,
	}
	if len(sc.PlatformConfig) > 0 {
		config := string(sc.PlatformConfig)
		row.PlatformConfig = &config
	}
	return row, nil
}

func runToRow(run *scout.Run) *db.ScoutRun {
	return &db.ScoutRun{
		ID:                 run.ID,
		ScoutID:            run.ScoutID,
		Status:             string(run.Status),
		StartedAt:          run.StartedAt,
		CompletedAt:        run.CompletedAt,
		ResultsCount:       run.ResultsCount,
		HighRelevanceCount: run.HighRelevanceCount,
		Error:              run.Error,
	}
}

func runFromRow(row *db.ScoutRun) scout.Run {
	return scout.Run{
		ID:                 row.ID,
		ScoutID:            row.ScoutID,
		Status:             scout.RunStatus(row.Status),
		StartedAt:          row.StartedAt,
		CompletedAt:        row.CompletedAt,
		ResultsCount:       row.ResultsCount,
		HighRelevanceCount: row.HighRelevanceCount,
		Error:              row.Error,
	}
}

func resultToRow(r scout.Result) db.ScoutResult {
	row := db.ScoutResult{
		ScoutID:        r.ScoutID,
		URL:            r.URL,
		RunID:          r.RunID,
		Category:       string(r.Category),
		RelevanceScore: r.RelevanceScore,
		Title:          r.Title,
		Rationale:      r.Rationale,
		UpdatedAt:      r.UpdatedAt,
	}
	if len(r.Detail) > 0 {
		detail := string(r.Detail)
		row.Detail = &detail
	}
	return row
}

func resultFromRow(row *db.ScoutResult) scout.Result {
	r := scout.Result{
		ScoutID:        row.ScoutID,
		RunID:          row.RunID,
		URL:            row.URL,
		Title:          row.Title,
		Category:       scout.Category(row.Category),
		RelevanceScore: row.RelevanceScore,
		Rationale:      row.Rationale,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.Detail != nil {
		r.Detail = json.RawMessage(*row.Detail)
	}
	return r
}
