package syncer

import (
	"context"
	"time"

	"github.com/livinlefevreloca/scout/internal/scout"
)

// ResultStore writes a batch of results atomically, keyed by (scout_id, url)
type ResultStore interface {
	UpsertResults(ctx context.Context, results []scout.Result) (scout.WriteReport, error)
}

// Stats provides cumulative syncer statistics
type Stats struct {
	BatchesFlushed  int
	FlushFailures   int
	ResultsInserted int
	ResultsUpdated  int
	SkippedResults  int
	LastFlush       time.Time
}
