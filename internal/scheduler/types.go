package scheduler

import (
	"context"
	"time"

	"github.com/livinlefevreloca/scout/internal/orchestrator"
	"github.com/livinlefevreloca/scout/internal/scout"
)

// ScoutLister lists every configured scout
type ScoutLister interface {
	ListScouts(ctx context.Context) ([]scout.Scout, error)
}

// Executor runs one scout to completion
type Executor interface {
	Execute(ctx context.Context, req orchestrator.Request) (*orchestrator.Outcome, error)
}

// RunCompletion is sent by a run goroutine when Execute returns
type RunCompletion struct {
	ScoutID     string
	Outcome     *orchestrator.Outcome // nil when no run was created
	Err         error
	StartedAt   time.Time
	CompletedAt time.Time
}

// activeRun tracks a scout the scheduler has launched
type activeRun struct {
	ScoutID   string
	StartedAt time.Time
}

// Stats provides cumulative scheduler statistics
type Stats struct {
	Iterations       int
	RunsLaunched     int
	RunsCompleted    int
	RunsFailed       int
	RunsSkipped      int // already running elsewhere
	RunsRejected     int // configuration errors
	CapacityDeferred int
	ActiveRuns       int
}
