package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/livinlefevreloca/scout/internal/cron"
	"github.com/livinlefevreloca/scout/internal/inbox"
	"github.com/livinlefevreloca/scout/internal/orchestrator"
	"github.com/livinlefevreloca/scout/internal/scout"
)

// Scheduler launches runs for scouts whose frequency says they are due
type Scheduler struct {
	// Configuration
	config SchedulerConfig
	logger *slog.Logger

	// Dependencies
	scouts   ScoutLister
	executor Executor

	// State (accessed only by main loop)
	active map[string]activeRun // scoutID → run
	stats  Stats

	// Communication
	inbox *inbox.Inbox[RunCompletion]
	slots *semaphore.Weighted
	wg    sync.WaitGroup

	// Control
	shutdown     chan struct{}
	shutdownOnce sync.Once

	now func() time.Time
}

// NewScheduler creates a new scheduler instance with validated configuration
func NewScheduler(config SchedulerConfig, scouts ScoutLister, executor Executor, logger *slog.Logger) (*Scheduler, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return &Scheduler{
		config:   config,
		logger:   logger,
		scouts:   scouts,
		executor: executor,
		active:   make(map[string]activeRun),
		inbox:    inbox.New[RunCompletion](config.InboxBufferSize, config.InboxSendTimeout, logger),
		slots:    semaphore.NewWeighted(config.MaxConcurrentRuns),
		shutdown: make(chan struct{}),
		now:      time.Now,
	}, nil
}

// Start runs the main loop until Shutdown is called or ctx is done. Runs in
// flight are not cancelled when the loop stops; use Wait to let them finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting scheduler",
		"loop_interval", s.config.LoopInterval,
		"max_concurrent_runs", s.config.MaxConcurrentRuns)

	s.iteration(ctx)

	ticker := time.NewTicker(s.config.LoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			s.handleShutdown()
			return
		case <-ctx.Done():
			s.handleShutdown()
			return
		case <-ticker.C:
			s.iteration(ctx)
		}
	}
}

// Shutdown stops the main loop
func (s *Scheduler) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

// Wait blocks until every launched run has returned
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// iteration performs a single iteration of the scheduler loop
func (s *Scheduler) iteration(ctx context.Context) {
	start := s.now()

	// Completions first so finished scouts can be scheduled again
	processed := s.inbox.Drain(s.handleCompletion)

	if err := s.scheduleDue(ctx, start); err != nil {
		s.logger.Error("failed to schedule scouts", "error", err)
	}

	s.stats.Iterations++
	s.stats.ActiveRuns = len(s.active)
	s.logger.Debug("scheduler iteration",
		"completions", processed,
		"active_runs", len(s.active),
		"duration", s.now().Sub(start))
}

// scheduleDue launches a run for every due scout that is not already active,
// as long as run slots are free
func (s *Scheduler) scheduleDue(ctx context.Context, now time.Time) error {
	scouts, err := s.scouts.ListScouts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list scouts: %w", err)
	}

	for i := range scouts {
		sc := &scouts[i]
		if _, running := s.active[sc.ID]; running {
			continue
		}

		schedule, err := cron.ParseFrequency(sc.Frequency)
		if err != nil {
			s.logger.Warn("invalid scout frequency", "scout_id", sc.ID, "frequency", sc.Frequency, "error", err)
			continue
		}
		if schedule == nil || !schedule.Due(sc.LastRunAt, now) {
			continue
		}

		// A run that is still going from another process is rejected by the
		// orchestrator; skipping it here saves the round trip
		if sc.IsRunning {
			s.stats.RunsSkipped++
			s.logger.Debug("scout already running, skipping", "scout_id", sc.ID)
			continue
		}

		if !s.slots.TryAcquire(1) {
			s.stats.CapacityDeferred++
			s.logger.Debug("run capacity reached, deferring", "scout_id", sc.ID)
			continue
		}

		s.launch(ctx, sc.ID, now)
	}

	return nil
}

// launch starts a run in its own goroutine. The run gets a context that
// ignores scheduler shutdown so it is never interrupted mid-write.
func (s *Scheduler) launch(ctx context.Context, scoutID string, now time.Time) {
	s.active[scoutID] = activeRun{ScoutID: scoutID, StartedAt: now}
	s.stats.RunsLaunched++
	s.logger.Info("launching run", "scout_id", scoutID)

	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.slots.Release(1)

		completion := RunCompletion{ScoutID: scoutID, StartedAt: s.now()}
		func() {
			defer func() {
				if r := recover(); r != nil {
					completion.Err = fmt.Errorf("run panic: %v", r)
				}
			}()
			completion.Outcome, completion.Err = s.executor.Execute(runCtx, orchestrator.Request{ScoutID: scoutID})
		}()
		completion.CompletedAt = s.now()

		if !s.inbox.Send(completion) {
			s.logger.Error("dropped run completion", "scout_id", scoutID)
		}
	}()
}

// handleCompletion frees the scout for scheduling and records the outcome
func (s *Scheduler) handleCompletion(c RunCompletion) {
	delete(s.active, c.ScoutID)

	switch {
	case scout.IsAlreadyRunning(c.Err):
		s.stats.RunsSkipped++
		s.logger.Debug("scout already running, skipped", "scout_id", c.ScoutID)
	case scout.IsConfiguration(c.Err):
		s.stats.RunsRejected++
		s.logger.Warn("scout configuration rejected", "scout_id", c.ScoutID, "error", c.Err)
	case c.Outcome == nil:
		s.stats.RunsFailed++
		s.logger.Error("run could not start", "scout_id", c.ScoutID, "error", c.Err)
	case c.Outcome.Status == scout.RunCompleted:
		s.stats.RunsCompleted++
		s.logger.Info("run completed",
			"scout_id", c.ScoutID,
			"run_id", c.Outcome.RunID,
			"results", c.Outcome.ResultsCount,
			"high_relevance", c.Outcome.HighRelevanceCount,
			"duration", c.CompletedAt.Sub(c.StartedAt))
	default:
		s.stats.RunsFailed++
		s.logger.Warn("run failed",
			"scout_id", c.ScoutID,
			"run_id", c.Outcome.RunID,
			"error", c.Outcome.Error)
	}

	if c.Err != nil && c.Outcome != nil {
		s.logger.Error("run outcome not recorded", "scout_id", c.ScoutID, "run_id", c.Outcome.RunID, "error", c.Err)
	}
}

// handleShutdown processes the completions already delivered
func (s *Scheduler) handleShutdown() {
	s.inbox.Drain(s.handleCompletion)
	s.logger.Info("scheduler stopped", "active_runs", len(s.active))
}

// GetStats returns a copy of the scheduler statistics. Only safe to call
// when the main loop is not running.
func (s *Scheduler) GetStats() Stats {
	return s.stats
}
