package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/livinlefevreloca/scout/internal/classifier"
	"github.com/livinlefevreloca/scout/internal/report"
	"github.com/livinlefevreloca/scout/internal/scout"
	"github.com/livinlefevreloca/scout/internal/tracker"
)

// Time allowed to record the run outcome once the pipeline is done
const finishTimeout = 30 * time.Second

// Orchestrator executes scout runs end to end
type Orchestrator struct {
	deps   Dependencies
	logger *slog.Logger

	// Optional state recorder for testing
	recorder *StateRecorder
}

// NewOrchestrator creates an orchestrator over deps
func NewOrchestrator(deps Dependencies, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		deps:   deps,
		logger: logger,
	}
}

// WithRecorder records the phases of every run into r
func (o *Orchestrator) WithRecorder(r *StateRecorder) *Orchestrator {
	o.recorder = r
	return o
}

// Execute runs the pipeline once for req.ScoutID.
//
// A missing or malformed scout returns *scout.ConfigurationError and a scout
// that is already running returns *scout.AlreadyRunningError; neither creates
// a run. Once a run exists every pipeline failure is reported through the
// returned Outcome with status failed, and the error is non-nil only when the
// outcome itself could not be recorded.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (out *Outcome, err error) {
	sc, err := o.deps.Scouts.GetScout(ctx, req.ScoutID)
	if err != nil {
		if errors.Is(err, scout.ErrNotFound) {
			return nil, &scout.ConfigurationError{ScoutID: req.ScoutID, Reason: "scout not found", Err: err}
		}
		return nil, fmt.Errorf("failed to load scout %q: %w", req.ScoutID, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	run, err := o.deps.Tracker.Start(ctx, sc.ID, runID)
	if err != nil {
		return nil, err
	}

	e := &execution{
		deps:     o.deps,
		scout:    sc,
		run:      run,
		state:    &PlanningState{},
		recorder: o.recorder,
		logger:   o.logger.With("scout_id", sc.ID, "run_id", run.ID),
		timing:   PhaseTiming{StartedAt: time.Now()},
	}
	if e.recorder != nil {
		e.recorder.Record(e.state)
	}

	// The outcome is recorded even if the caller's context is gone
	defer func() {
		out = e.outcome()

		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
		defer cancel()
		if ferr := o.deps.Tracker.Finish(finishCtx, run, e.trackerOutcome()); ferr != nil {
			e.logger.Error("failed to record run outcome", "error", ferr)
			err = fmt.Errorf("failed to record run outcome: %w", ferr)
		}
	}()

	e.execute(ctx)
	return nil, nil
}

// execution is the state of one run
type execution struct {
	deps   Dependencies
	scout  *scout.Scout
	run    *scout.Run
	logger *slog.Logger

	// State management
	state    State
	recorder *StateRecorder
	timing   PhaseTiming

	// Pipeline data
	plan       []scout.DiscoveryQuery
	candidates []scout.Candidate
	analyzed   []scout.AnalyzedCandidate
	classified []scout.ClassifiedCandidate
	written    scout.WriteReport
	stats      report.Stats
	failures   []error
	report     *report.Report

	err error
}

// transitionTo performs a state transition and logs it
func (e *execution) transitionTo(newState State) {
	oldStateName := e.state.Name()
	e.state = newState

	if e.recorder != nil {
		e.recorder.Record(newState)
	}

	e.logger.Debug("state transition",
		"from", oldStateName,
		"to", newState.Name())
}

// fail records err and moves to the failed state
func (e *execution) fail(to *FailedState, err error) {
	e.err = err
	e.transitionTo(to)
}

// execute is the main pipeline loop
func (e *execution) execute(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("run panic recovered",
				"state", e.state.Name(),
				"panic", r)
			e.fail(&FailedState{}, fmt.Errorf("panic during %s: %v", e.state.Name(), r))
			e.runFailed()
		}
	}()

	for {
		switch state := e.state.(type) {
		case *PlanningState:
			e.runPlanning(ctx, state)
		case *DiscoveringState:
			e.runDiscovering(ctx, state)
		case *AnalyzingState:
			e.runAnalyzing(ctx, state)
		case *ClassifyingState:
			e.runClassifying(ctx, state)
		case *PersistingState:
			e.runPersisting(ctx, state)
		case *ReportingState:
			e.runReporting(state)
		case *CompletedState:
			e.runCompleted()
			return
		case *FailedState:
			e.runFailed()
			return
		default:
			e.logger.Error("unknown state type", "state", fmt.Sprintf("%T", e.state))
			e.fail(&FailedState{}, fmt.Errorf("unknown state %T", e.state))
		}
	}
}

func (e *execution) runPlanning(ctx context.Context, state *PlanningState) {
	plan, err := e.deps.Planner.Plan(ctx, e.scout)
	if err != nil {
		e.fail(state.ToFailed(), err)
		return
	}

	e.plan = plan
	e.stats.QueriesPlanned = len(plan)
	e.timing.DiscoveryStartedAt = time.Now()
	e.transitionTo(state.ToDiscovering())
}

func (e *execution) runDiscovering(ctx context.Context, state *DiscoveringState) {
	result, err := e.deps.Discoverer.DiscoverAll(ctx, e.scout, e.plan)
	e.stats.QueriesFailed = len(result.Failures)
	if err != nil {
		e.fail(state.ToFailed(), err)
		return
	}

	e.candidates = result.Candidates
	e.stats.Discovered = len(result.Candidates)
	e.failures = append(e.failures, result.Failures...)
	e.timing.AnalysisStartedAt = time.Now()
	e.transitionTo(state.ToAnalyzing())
}

func (e *execution) runAnalyzing(ctx context.Context, state *AnalyzingState) {
	batch := e.deps.Analyzer.Analyze(ctx, e.scout, e.candidates)

	e.analyzed = batch.Analyzed()
	analysisFailures := batch.Failures()
	e.stats.Analyzed = len(e.analyzed)
	e.stats.AnalysisFailures = len(analysisFailures)
	e.failures = append(e.failures, analysisFailures...)

	if len(analysisFailures) > 0 {
		e.logger.Warn("some candidates could not be analyzed",
			"analyzed", len(e.analyzed),
			"failed", len(analysisFailures))
	}
	e.transitionTo(state.ToClassifying())
}

func (e *execution) runClassifying(ctx context.Context, state *ClassifyingState) {
	e.classified = e.deps.Classifier.ClassifyAll(ctx, e.scout, e.analyzed)
	e.timing.PersistStartedAt = time.Now()
	e.transitionTo(state.ToPersisting())
}

func (e *execution) runPersisting(ctx context.Context, state *PersistingState) {
	written, err := e.deps.Writer.Upsert(ctx, e.scout.ID, e.run.ID, classifier.Eligible(e.classified))
	if err != nil {
		e.fail(state.ToFailed(), err)
		return
	}

	e.written = written
	e.stats.Inserted = written.Inserted
	e.stats.Updated = written.Updated
	e.transitionTo(state.ToReporting())
}

func (e *execution) runReporting(state *ReportingState) {
	e.assembleReport()
	e.transitionTo(state.ToCompleted())
}

func (e *execution) assembleReport() {
	e.report = report.Assemble(e.run.ID, e.scout.ID, e.classified).WithStats(e.stats, e.failures)
}

func (e *execution) runCompleted() {
	e.timing.CompletedAt = time.Now()
	e.logger.Info("run completed",
		"results", e.report.ResultsCount(),
		"high_relevance", e.report.HighRelevanceCount(),
		"analysis_failures", e.stats.AnalysisFailures,
		"duration", e.timing.CompletedAt.Sub(e.timing.StartedAt))
}

func (e *execution) runFailed() {
	e.timing.CompletedAt = time.Now()
	if e.report == nil {
		e.assembleReport()
	}
	e.logger.Error("run failed",
		"error", e.err,
		"duration", e.timing.CompletedAt.Sub(e.timing.StartedAt))
}

func (e *execution) completed() bool {
	_, ok := e.state.(*CompletedState)
	return ok
}

func (e *execution) trackerOutcome() tracker.Outcome {
	if e.completed() {
		return tracker.Completed(e.report.ResultsCount(), e.report.HighRelevanceCount())
	}
	err := e.err
	if err == nil {
		err = errors.New("run ended before completing")
	}
	return tracker.Failed(err)
}

func (e *execution) outcome() *Outcome {
	out := &Outcome{
		RunID:  e.run.ID,
		Status: scout.RunFailed,
		Report: e.report,
	}
	if e.completed() {
		out.Status = scout.RunCompleted
		out.ResultsCount = e.report.ResultsCount()
		out.HighRelevanceCount = e.report.HighRelevanceCount()
		return out
	}
	if e.err != nil {
		out.Error = e.err.Error()
	} else {
		out.Error = "run ended before completing"
	}
	return out
}
