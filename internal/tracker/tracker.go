package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/livinlefevreloca/scout/internal/scout"
)

// Store is the persistence the tracker needs
type Store interface {
	SetRunning(ctx context.Context, scoutID string, running bool) (bool, error)
	IncrementTotalRuns(ctx context.Context, scoutID string) error
	CreateRun(ctx context.Context, run *scout.Run) error
	FinishRun(ctx context.Context, run *scout.Run) error
}

// Outcome is the terminal state a run is finished with
type Outcome struct {
	Status             scout.RunStatus
	ResultsCount       int
	HighRelevanceCount int
	Err                error
}

// Completed builds a successful outcome
func Completed(resultsCount, highRelevanceCount int) Outcome {
	return Outcome{
		Status:             scout.RunCompleted,
		ResultsCount:       resultsCount,
		HighRelevanceCount: highRelevanceCount,
	}
}

// Failed builds a failed outcome carrying err
func Failed(err error) Outcome {
	return Outcome{Status: scout.RunFailed, Err: err}
}

// Tracker owns the run lifecycle and the scout's running flag
type Tracker struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a tracker
func New(store Store, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Start acquires the scout's running flag and records a new running run.
// If another run holds the flag it returns *scout.AlreadyRunningError and
// records nothing.
func (t *Tracker) Start(ctx context.Context, scoutID, runID string) (*scout.Run, error) {
	acquired, err := t.store.SetRunning(ctx, scoutID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire running flag: %w", err)
	}
	if !acquired {
		t.logger.Debug("scout already running", "scout_id", scoutID, "run_id", runID)
		return nil, &scout.AlreadyRunningError{ScoutID: scoutID}
	}

	run := &scout.Run{
		ID:      runID,
		ScoutID: scoutID,
		Status:  scout.RunPending,
	}
	if err := transition(run, scout.RunRunning); err != nil {
		return nil, t.abandon(ctx, scoutID, err)
	}
	run.StartedAt = t.now()

	if err := t.store.CreateRun(ctx, run); err != nil {
		return nil, t.abandon(ctx, scoutID, fmt.Errorf("failed to create run: %w", err))
	}

	t.logger.Info("run started", "scout_id", scoutID, "run_id", runID)
	return run, nil
}

// abandon clears the running flag after a failed start
func (t *Tracker) abandon(ctx context.Context, scoutID string, cause error) error {
	if _, err := t.store.SetRunning(ctx, scoutID, false); err != nil {
		t.logger.Error("failed to clear running flag", "scout_id", scoutID, "error", err)
		return errors.Join(cause, fmt.Errorf("failed to clear running flag: %w", err))
	}
	return cause
}

// Finish moves run to its terminal state, increments the scout's run counter
// and clears the running flag. The flag is cleared even when the other steps
// fail; all step errors are joined.
func (t *Tracker) Finish(ctx context.Context, run *scout.Run, outcome Outcome) error {
	var errs []error

	if err := transition(run, outcome.Status); err != nil {
		errs = append(errs, err)
	} else {
		completedAt := t.now()
		run.CompletedAt = &completedAt
		if outcome.Status == scout.RunCompleted {
			run.ResultsCount = outcome.ResultsCount
			run.HighRelevanceCount = outcome.HighRelevanceCount
		} else {
			msg := "run failed"
			if outcome.Err != nil {
				msg = outcome.Err.Error()
			}
			run.Error = &msg
		}

		if err := t.store.FinishRun(ctx, run); err != nil {
			errs = append(errs, fmt.Errorf("failed to record run outcome: %w", err))
		}
		if err := t.store.IncrementTotalRuns(ctx, run.ScoutID); err != nil {
			errs = append(errs, fmt.Errorf("failed to increment total runs: %w", err))
		}
	}

	if _, err := t.store.SetRunning(ctx, run.ScoutID, false); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear running flag: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		t.logger.Error("run finish incomplete",
			"scout_id", run.ScoutID,
			"run_id", run.ID,
			"status", string(run.Status),
			"error", err)
		return err
	}

	t.logger.Info("run finished",
		"scout_id", run.ScoutID,
		"run_id", run.ID,
		"status", string(run.Status),
		"results_count", run.ResultsCount,
		"high_relevance_count", run.HighRelevanceCount)
	return nil
}

func transition(run *scout.Run, next scout.RunStatus) error {
	if run.Status.IsTerminal() {
		return fmt.Errorf("run %q is %s: %w", run.ID, run.Status, scout.ErrRunTerminal)
	}
	if !run.Status.CanTransitionTo(next) {
		return fmt.Errorf("run %q cannot move from %s to %s", run.ID, run.Status, next)
	}
	run.Status = next
	return nil
}
