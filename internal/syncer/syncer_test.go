package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/livinlefevreloca/scout/internal/scout"
	"github.com/livinlefevreloca/scout/internal/testutil"
)

func classified(url string, category scout.Category, score float64) scout.ClassifiedCandidate {
	return scout.ClassifiedCandidate{
		AnalyzedCandidate: scout.AnalyzedCandidate{
			Candidate:      scout.Candidate{URL: url, Title: "title " + url},
			RelevanceScore: score,
			Rationale:      "because",
		},
		Category: category,
	}
}

func newTestSyncer(t *testing.T, config Config) (*Syncer, *testutil.FakeStore) {
	t.Helper()
	store := testutil.NewFakeStore()
	syncer, err := NewSyncer(config, store, testutil.NewTestLogger().Logger())
	if err != nil {
		t.Fatalf("NewSyncer failed: %v", err)
	}
	return syncer, store
}

// =============================================================================
// Configuration Tests
// =============================================================================

// TestNewSyncer_InvalidConfig verifies that invalid configuration is rejected.
func TestNewSyncer_InvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.MaxBufferedResults = 0

	if _, err := NewSyncer(config, testutil.NewFakeStore(), testutil.NewTestLogger().Logger()); err == nil {
		t.Error("expected error for zero MaxBufferedResults")
	}

	config = DefaultConfig()
	config.FlushTimeout = 0
	if err := config.Validate(); err == nil {
		t.Error("expected error for zero FlushTimeout")
	}
}

// =============================================================================
// Buffering Tests
// =============================================================================

// TestBatch_BufferResult_SkipsWatchList verifies that watch-list candidates never reach the buffer.
func TestBatch_BufferResult_SkipsWatchList(t *testing.T) {
	syncer, _ := newTestSyncer(t, DefaultConfig())
	batch := syncer.NewBatch("scout-1", "run-1")

	batch.BufferResult(classified("https://a", scout.CategoryImmediateAction, 0.9))
	batch.BufferResult(classified("https://b", scout.CategoryWatchList, 0.2))
	batch.BufferResult(classified("https://c", scout.CategoryHighPriority, 0.7))

	if batch.Len() != 2 {
		t.Errorf("expected 2 buffered results, got %d", batch.Len())
	}
}

// TestBatch_BufferResult_CollapsesDuplicateURLs verifies that a repeated URL replaces the earlier entry.
func TestBatch_BufferResult_CollapsesDuplicateURLs(t *testing.T) {
	syncer, store := newTestSyncer(t, DefaultConfig())
	batch := syncer.NewBatch("scout-1", "run-1")

	batch.BufferResult(classified("https://a", scout.CategoryHighPriority, 0.7))
	batch.BufferResult(classified("https://a", scout.CategoryImmediateAction, 0.8))

	if batch.Len() != 1 {
		t.Fatalf("expected 1 buffered result, got %d", batch.Len())
	}

	report, err := batch.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if report.Inserted != 1 {
		t.Errorf("expected 1 insert, got %d", report.Inserted)
	}

	got := store.Results("scout-1")
	if len(got) != 1 || got[0].Category != scout.CategoryImmediateAction {
		t.Errorf("expected later entry to win, got %+v", got)
	}
}

// TestBatch_BufferResult_ExceedsMaximum verifies that an error is returned when buffer exceeds maximum size.
func TestBatch_BufferResult_ExceedsMaximum(t *testing.T) {
	config := DefaultConfig()
	config.MaxBufferedResults = 100
	syncer, _ := newTestSyncer(t, config)
	batch := syncer.NewBatch("scout-1", "run-1")

	var err error
	for i := 0; i < 101; i++ {
		err = batch.BufferResult(classified(fmt.Sprintf("https://example.com/%d", i), scout.CategoryHighPriority, 0.7))
		if err != nil {
			break
		}
	}

	if err == nil {
		t.Fatal("expected error when exceeding maximum buffer size")
	}

	if err.Error() != "result buffer exceeded maximum size: 101 > 100" {
		t.Errorf("unexpected error message: %v", err)
	}
}

// =============================================================================
// Upsert Tests
// =============================================================================

// TestUpsert_InsertThenUpdate verifies latest-run-wins across runs.
func TestUpsert_InsertThenUpdate(t *testing.T) {
	syncer, store := newTestSyncer(t, DefaultConfig())
	ctx := context.Background()

	report, err := syncer.Upsert(ctx, "scout-1", "run-1", []scout.ClassifiedCandidate{
		classified("https://a", scout.CategoryHighPriority, 0.7),
		classified("https://b", scout.CategoryImmediateAction, 0.9),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if report.Inserted != 2 || report.Updated != 0 {
		t.Errorf("report = %+v, want 2 inserted", report)
	}

	report, err = syncer.Upsert(ctx, "scout-1", "run-2", []scout.ClassifiedCandidate{
		classified("https://a", scout.CategoryImmediateAction, 0.95),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if report.Inserted != 0 || report.Updated != 1 {
		t.Errorf("report = %+v, want 1 updated", report)
	}

	a, err := store.GetResult(ctx, "scout-1", "https://a")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if a.RunID != "run-2" || a.Category != scout.CategoryImmediateAction {
		t.Errorf("result = %+v, want run-2 immediate_action", a)
	}

	stats := syncer.GetStats()
	if stats.BatchesFlushed != 2 || stats.ResultsInserted != 2 || stats.ResultsUpdated != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

// TestUpsert_NeverPersistsWatchList verifies that persisted categories are a subset of the actionable tiers.
func TestUpsert_NeverPersistsWatchList(t *testing.T) {
	syncer, store := newTestSyncer(t, DefaultConfig())

	_, err := syncer.Upsert(context.Background(), "scout-1", "run-1", []scout.ClassifiedCandidate{
		classified("https://a", scout.CategoryWatchList, 0.3),
		classified("https://b", scout.CategoryHighPriority, 0.7),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	for _, r := range store.Results("scout-1") {
		if r.Category != scout.CategoryImmediateAction && r.Category != scout.CategoryHighPriority {
			t.Errorf("persisted non-actionable category %q for %s", r.Category, r.URL)
		}
	}
	if syncer.GetStats().SkippedResults != 1 {
		t.Errorf("expected 1 skipped result, got %d", syncer.GetStats().SkippedResults)
	}
}

// TestUpsert_Empty verifies that an empty batch does not touch the store.
func TestUpsert_Empty(t *testing.T) {
	syncer, store := newTestSyncer(t, DefaultConfig())

	report, err := syncer.Upsert(context.Background(), "scout-1", "run-1", nil)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if report.Persisted() != 0 {
		t.Errorf("expected nothing persisted, got %+v", report)
	}
	if store.UpsertCalls() != 0 {
		t.Errorf("expected no store calls, got %d", store.UpsertCalls())
	}
}

// TestUpsert_StoreFailure verifies that storage errors surface as PersistenceError.
func TestUpsert_StoreFailure(t *testing.T) {
	syncer, store := newTestSyncer(t, DefaultConfig())
	cause := errors.New("database is locked")
	store.SetUpsertError(cause)

	report, err := syncer.Upsert(context.Background(), "scout-1", "run-1", []scout.ClassifiedCandidate{
		classified("https://a", scout.CategoryHighPriority, 0.7),
	})

	var persistErr *scout.PersistenceError
	if !errors.As(err, &persistErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be wrapped, got %v", err)
	}
	if report.Persisted() != 0 {
		t.Errorf("expected empty report on failure, got %+v", report)
	}
	if syncer.GetStats().FlushFailures != 1 {
		t.Errorf("expected 1 flush failure, got %d", syncer.GetStats().FlushFailures)
	}
}

// TestUpsert_BufferOverflow verifies that overflowing the buffer fails without writing.
func TestUpsert_BufferOverflow(t *testing.T) {
	config := DefaultConfig()
	config.MaxBufferedResults = 2
	syncer, store := newTestSyncer(t, config)

	var eligible []scout.ClassifiedCandidate
	for i := 0; i < 3; i++ {
		eligible = append(eligible, classified(fmt.Sprintf("https://%d", i), scout.CategoryHighPriority, 0.8))
	}

	_, err := syncer.Upsert(context.Background(), "scout-1", "run-1", eligible)

	var persistErr *scout.PersistenceError
	if !errors.As(err, &persistErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if store.UpsertCalls() != 0 {
		t.Errorf("expected no write on overflow, got %d calls", store.UpsertCalls())
	}
}
