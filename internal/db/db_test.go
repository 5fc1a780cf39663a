package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// Test Fixtures and Helpers

// NewTestDB creates an in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenWithConfig(context.Background(), Config{Driver: DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// MakeTestScout creates a scout with default test values
func MakeTestScout(id string) *Scout {
	return &Scout{
		ID:               id,
		Name:             "Test Scout " + id,
		Instructions:     "find posts about rust",
		Keywords:         `["rust","tokio"]`,
		Platform:         "rss",
		MaxResults:       10,
		QualityThreshold: 0.5,
		Frequency:        "daily",
	}
}

// MakeTestRun creates a running run with default test values
func MakeTestRun(scoutID, runID string, startedAt time.Time) *ScoutRun {
	return &ScoutRun{
		ID:        runID,
		ScoutID:   scoutID,
		Status:    "running",
		StartedAt: startedAt,
	}
}

// MakeTestResult creates a result with default test values
func MakeTestResult(scoutID, runID, url string, score float64) ScoutResult {
	return ScoutResult{
		ScoutID:        scoutID,
		RunID:          runID,
		URL:            url,
		Category:       "high_priority",
		RelevanceScore: score,
		Title:          "Result " + url,
		Rationale:      "matches",
	}
}

func mustCreateScout(t *testing.T, db *DB, id string) *Scout {
	t.Helper()
	scout := MakeTestScout(id)
	if err := db.CreateScout(context.Background(), scout); err != nil {
		t.Fatalf("CreateScout failed: %v", err)
	}
	return scout
}

// Connection Tests

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		dsn     string
		wantErr bool
	}{
		{
			name:    "sqlite in-memory",
			driver:  DriverSQLite,
			dsn:     ":memory:",
			wantErr: false,
		},
		{
			name:    "invalid driver",
			driver:  "invalid",
			dsn:     "",
			wantErr: true,
		},
		{
			name:    "empty dsn",
			driver:  DriverSQLite,
			dsn:     "",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := Open(tt.driver, tt.dsn)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer db.Close()

			if db.Driver() != tt.driver {
				t.Errorf("driver = %q, want %q", db.Driver(), tt.driver)
			}
		})
	}
}

func TestOpenWithConfig(t *testing.T) {
	config := Config{
		Driver:          DriverSQLite,
		DSN:             filepath.Join(t.TempDir(), "scout.db"),
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
	}

	db, err := OpenWithConfig(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	stats := db.Stats()
	if stats.MaxOpenConnections != 10 {
		t.Errorf("MaxOpenConnections = %d, want 10", stats.MaxOpenConnections)
	}

	// Schema was applied
	if _, err := db.GetAllScouts(context.Background()); err != nil {
		t.Errorf("GetAllScouts failed after schema apply: %v", err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"scout.db", "scout.db?_foreign_keys=on"},
		{":memory:", ":memory:?_foreign_keys=on"},
		{"file:scout.db?cache=shared", "file:scout.db?cache=shared&_foreign_keys=on"},
		{"file:scout.db?_foreign_keys=off", "file:scout.db?_foreign_keys=off"},
		{"scout.db?_fk=1", "scout.db?_fk=1"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := sqliteDSN(tt.dsn); got != tt.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestOpen_ForeignKeysOnEveryConnection(t *testing.T) {
	ctx := context.Background()
	db, err := OpenWithConfig(ctx, Config{
		Driver:       DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "scout.db"),
		MaxOpenConns: 4,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// Hold every connection at once so the pool cannot hand back the same one
	conns := make([]*sql.Conn, 0, 4)
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()
	for i := 0; i < 4; i++ {
		conn, err := db.Conn(ctx)
		if err != nil {
			t.Fatalf("failed to get connection %d: %v", i, err)
		}
		conns = append(conns, conn)

		var enabled int
		if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
			t.Fatalf("PRAGMA foreign_keys failed: %v", err)
		}
		if enabled != 1 {
			t.Errorf("connection %d: foreign_keys = %d, want 1", i, enabled)
		}
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	db := NewTestDB(t)

	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second EnsureSchema failed: %v", err)
	}
}

func TestRebind(t *testing.T) {
	sqlite := &DB{driver: DriverSQLite}
	postgres := &DB{driver: DriverPostgres}

	query := "SELECT * FROM scouts WHERE id = ? AND is_running = ?"

	if got := sqlite.rebind(query); got != query {
		t.Errorf("sqlite rebind = %q, want unchanged", got)
	}

	want := "SELECT * FROM scouts WHERE id = $1 AND is_running = $2"
	if got := postgres.rebind(query); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestClose(t *testing.T) {
	db, err := Open(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if err := db.Ping(); err == nil {
		t.Error("expected Ping to fail after Close")
	}
}

// Scout Tests

func TestCreateScout(t *testing.T) {
	db := NewTestDB(t)

	scout := MakeTestScout("scout-1")
	if err := db.CreateScout(context.Background(), scout); err != nil {
		t.Fatalf("CreateScout failed: %v", err)
	}

	if scout.CreatedAt.IsZero() {
		t.Error("CreatedAt was not set")
	}
	if scout.UpdatedAt.IsZero() {
		t.Error("UpdatedAt was not set")
	}
}

func TestCreateScout_Duplicate(t *testing.T) {
	db := NewTestDB(t)

	scout := mustCreateScout(t, db, "scout-1")

	err := db.CreateScout(context.Background(), scout)
	if err == nil {
		t.Fatal("expected duplicate error, got nil")
	}

	if !IsDuplicate(err) {
		t.Errorf("expected IsDuplicate(err) = true, got false: %v", err)
	}
}

func TestGetScout(t *testing.T) {
	db := NewTestDB(t)

	config := `{"feed_url":"https://example.com/feed"}`
	original := MakeTestScout("scout-1")
	original.PlatformConfig = &config
	if err := db.CreateScout(context.Background(), original); err != nil {
		t.Fatalf("CreateScout failed: %v", err)
	}

	retrieved, err := db.GetScout(context.Background(), "scout-1")
	if err != nil {
		t.Fatalf("GetScout failed: %v", err)
	}

	if retrieved.Name != original.Name {
		t.Errorf("Name = %q, want %q", retrieved.Name, original.Name)
	}
	if retrieved.Keywords != original.Keywords {
		t.Errorf("Keywords = %q, want %q", retrieved.Keywords, original.Keywords)
	}
	if retrieved.PlatformConfig == nil || *retrieved.PlatformConfig != config {
		t.Errorf("PlatformConfig = %v, want %q", retrieved.PlatformConfig, config)
	}
	if retrieved.QualityThreshold != original.QualityThreshold {
		t.Errorf("QualityThreshold = %v, want %v", retrieved.QualityThreshold, original.QualityThreshold)
	}
	if retrieved.IsRunning {
		t.Error("new scout should not be running")
	}
	if retrieved.LastRunAt != nil {
		t.Errorf("LastRunAt = %v, want nil", retrieved.LastRunAt)
	}
}

func TestGetScout_NotFound(t *testing.T) {
	db := NewTestDB(t)

	scout, err := db.GetScout(context.Background(), "nonexistent")
	if !IsNotFound(err) {
		t.Errorf("expected IsNotFound(err) = true, got false: %v", err)
	}
	if scout != nil {
		t.Errorf("expected nil scout, got %+v", scout)
	}
}

func TestGetAllScouts_Empty(t *testing.T) {
	db := NewTestDB(t)

	scouts, err := db.GetAllScouts(context.Background())
	if err != nil {
		t.Fatalf("GetAllScouts failed: %v", err)
	}
	if scouts == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(scouts) != 0 {
		t.Errorf("expected 0 scouts, got %d", len(scouts))
	}
}

func TestSaveScout_PreservesRuntimeState(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	scout := mustCreateScout(t, db, "scout-1")
	if _, err := db.SetScoutRunning(ctx, "scout-1", true); err != nil {
		t.Fatalf("SetScoutRunning failed: %v", err)
	}
	if err := db.IncrementScoutTotalRuns(ctx, "scout-1"); err != nil {
		t.Fatalf("IncrementScoutTotalRuns failed: %v", err)
	}

	scout.Name = "renamed"
	scout.IsRunning = false
	scout.TotalRuns = 0
	if err := db.SaveScout(ctx, scout); err != nil {
		t.Fatalf("SaveScout failed: %v", err)
	}

	retrieved, err := db.GetScout(ctx, "scout-1")
	if err != nil {
		t.Fatalf("GetScout failed: %v", err)
	}
	if retrieved.Name != "renamed" {
		t.Errorf("Name = %q, want renamed", retrieved.Name)
	}
	if !retrieved.IsRunning {
		t.Error("SaveScout must not clear is_running")
	}
	if retrieved.TotalRuns != 1 {
		t.Errorf("TotalRuns = %d, want 1", retrieved.TotalRuns)
	}
}

func TestSaveScout_Inserts(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	if err := db.SaveScout(ctx, MakeTestScout("scout-new")); err != nil {
		t.Fatalf("SaveScout failed: %v", err)
	}
	if _, err := db.GetScout(ctx, "scout-new"); err != nil {
		t.Errorf("GetScout failed after SaveScout: %v", err)
	}
}

func TestSetScoutRunning_CompareAndSet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	mustCreateScout(t, db, "scout-1")

	acquired, err := db.SetScoutRunning(ctx, "scout-1", true)
	if err != nil {
		t.Fatalf("SetScoutRunning failed: %v", err)
	}
	if !acquired {
		t.Fatal("expected first acquire to succeed")
	}

	acquired, err = db.SetScoutRunning(ctx, "scout-1", true)
	if err != nil {
		t.Fatalf("SetScoutRunning failed: %v", err)
	}
	if acquired {
		t.Error("expected second acquire to fail while running")
	}

	released, err := db.SetScoutRunning(ctx, "scout-1", false)
	if err != nil {
		t.Fatalf("SetScoutRunning(false) failed: %v", err)
	}
	if !released {
		t.Error("expected release to change the flag")
	}

	released, err = db.SetScoutRunning(ctx, "scout-1", false)
	if err != nil {
		t.Fatalf("SetScoutRunning(false) failed: %v", err)
	}
	if released {
		t.Error("expected second release to be a no-op")
	}
}

func TestSetScoutRunning_NotFound(t *testing.T) {
	db := NewTestDB(t)

	_, err := db.SetScoutRunning(context.Background(), "nonexistent", true)
	if !IsNotFound(err) {
		t.Errorf("expected IsNotFound(err) = true, got %v", err)
	}
}

func TestIncrementScoutTotalRuns_NotFound(t *testing.T) {
	db := NewTestDB(t)

	err := db.IncrementScoutTotalRuns(context.Background(), "nonexistent")
	if !IsNotFound(err) {
		t.Errorf("expected IsNotFound(err) = true, got %v", err)
	}
}

func TestDeleteScout_CascadeToRunsAndResults(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	mustCreateScout(t, db, "scout-1")

	if err := db.CreateScoutRun(ctx, MakeTestRun("scout-1", "run-1", time.Now().UTC())); err != nil {
		t.Fatalf("CreateScoutRun failed: %v", err)
	}
	if _, _, err := db.UpsertScoutResults(ctx, []ScoutResult{MakeTestResult("scout-1", "run-1", "https://a", 0.9)}); err != nil {
		t.Fatalf("UpsertScoutResults failed: %v", err)
	}

	if err := db.DeleteScout(ctx, "scout-1"); err != nil {
		t.Fatalf("DeleteScout failed: %v", err)
	}

	if _, err := db.GetScoutRun(ctx, "run-1"); !IsNotFound(err) {
		t.Errorf("run should be deleted with its scout, got %v", err)
	}
	if _, err := db.GetScoutResult(ctx, "scout-1", "https://a"); !IsNotFound(err) {
		t.Errorf("result should be deleted with its scout, got %v", err)
	}
}

func TestDeleteScout_NotFound(t *testing.T) {
	db := NewTestDB(t)

	if err := db.DeleteScout(context.Background(), "nonexistent"); !IsNotFound(err) {
		t.Errorf("expected IsNotFound(err) = true, got %v", err)
	}
}

// Run Tests

func TestCreateScoutRun_StampsLastRunAt(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	mustCreateScout(t, db, "scout-1")

	startedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := db.CreateScoutRun(ctx, MakeTestRun("scout-1", "run-1", startedAt)); err != nil {
		t.Fatalf("CreateScoutRun failed: %v", err)
	}

	scout, err := db.GetScout(ctx, "scout-1")
	if err != nil {
		t.Fatalf("GetScout failed: %v", err)
	}
	if scout.LastRunAt == nil || !scout.LastRunAt.Equal(startedAt) {
		t.Errorf("LastRunAt = %v, want %v", scout.LastRunAt, startedAt)
	}
}

func TestCreateScoutRun_Duplicate(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	mustCreateScout(t, db, "scout-1")

	run := MakeTestRun("scout-1", "run-1", time.Now().UTC())
	if err := db.CreateScoutRun(ctx, run); err != nil {
		t.Fatalf("CreateScoutRun failed: %v", err)
	}

	if err := db.CreateScoutRun(ctx, run); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateScoutRun_InvalidScoutID(t *testing.T) {
	db := NewTestDB(t)

	err := db.CreateScoutRun(context.Background(), MakeTestRun("nonexistent", "run-1", time.Now().UTC()))
	if !IsForeignKey(err) {
		t.Errorf("expected IsForeignKey = true for invalid scout_id, got %v", err)
	}
}

func TestGetScoutRuns_NewestFirstWithLimit(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	mustCreateScout(t, db, "scout-1")

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		if err := db.CreateScoutRun(ctx, MakeTestRun("scout-1", id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("CreateScoutRun failed: %v", err)
		}
	}

	runs, err := db.GetScoutRuns(ctx, "scout-1", 2)
	if err != nil {
		t.Fatalf("GetScoutRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("runs = [%s %s], want [run-c run-b]", runs[0].ID, runs[1].ID)
	}
}

func TestFinishScoutRun(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	mustCreateScout(t, db, "scout-1")

	run := MakeTestRun("scout-1", "run-1", time.Now().UTC())
	if err := db.CreateScoutRun(ctx, run); err != nil {
		t.Fatalf("CreateScoutRun failed: %v", err)
	}

	msg := "discovery failed"
	run.Status = "failed"
	run.ResultsCount = 3
	run.HighRelevanceCount = 1
	run.Error = &msg
	if err := db.FinishScoutRun(ctx, run); err != nil {
		t.Fatalf("FinishScoutRun failed: %v", err)
	}

	retrieved, err := db.GetScoutRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetScoutRun failed: %v", err)
	}
	if retrieved.Status != "failed" {
		t.Errorf("Status = %q, want failed", retrieved.Status)
	}
	if retrieved.CompletedAt == nil {
		t.Error("CompletedAt was not set")
	}
	if retrieved.ResultsCount != 3 || retrieved.HighRelevanceCount != 1 {
		t.Errorf("counts = (%d, %d), want (3, 1)", retrieved.ResultsCount, retrieved.HighRelevanceCount)
	}
	if retrieved.Error == nil || *retrieved.Error != msg {
		t.Errorf("Error = %v, want %q", retrieved.Error, msg)
	}

	// A terminal run cannot be finished again
	run.Status = "completed"
	if err := db.FinishScoutRun(ctx, run); !IsNotFound(err) {
		t.Errorf("expected IsNotFound for terminal run, got %v", err)
	}
}

// Result Tests

func TestUpsertScoutResults_InsertThenUpdate(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	mustCreateScout(t, db, "scout-1")

	first := []ScoutResult{
		MakeTestResult("scout-1", "run-1", "https://a", 0.7),
		MakeTestResult("scout-1", "run-1", "https://b", 0.8),
	}
	inserted, updated, err := db.UpsertScoutResults(ctx, first)
	if err != nil {
		t.Fatalf("UpsertScoutResults failed: %v", err)
	}
	if inserted != 2 || updated != 0 {
		t.Errorf("(inserted, updated) = (%d, %d), want (2, 0)", inserted, updated)
	}

	second := []ScoutResult{
		MakeTestResult("scout-1", "run-2", "https://b", 0.95),
		MakeTestResult("scout-1", "run-2", "https://c", 0.6),
	}
	second[0].Category = "immediate_action"
	inserted, updated, err = db.UpsertScoutResults(ctx, second)
	if err != nil {
		t.Fatalf("UpsertScoutResults failed: %v", err)
	}
	if inserted != 1 || updated != 1 {
		t.Errorf("(inserted, updated) = (%d, %d), want (1, 1)", inserted, updated)
	}

	b, err := db.GetScoutResult(ctx, "scout-1", "https://b")
	if err != nil {
		t.Fatalf("GetScoutResult failed: %v", err)
	}
	if b.RunID != "run-2" {
		t.Errorf("RunID = %q, want run-2", b.RunID)
	}
	if b.Category != "immediate_action" {
		t.Errorf("Category = %q, want immediate_action", b.Category)
	}
	if b.RelevanceScore != 0.95 {
		t.Errorf("RelevanceScore = %v, want 0.95", b.RelevanceScore)
	}

	all, err := db.GetScoutResults(ctx, "scout-1", 10)
	if err != nil {
		t.Fatalf("GetScoutResults failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 results, got %d", len(all))
	}
	if all[0].URL != "https://b" {
		t.Errorf("best result = %q, want https://b", all[0].URL)
	}
}

func TestUpsertScoutResults_RollsBackOnFailure(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	mustCreateScout(t, db, "scout-1")

	bad := MakeTestResult("scout-1", "run-1", "https://bad", 0.1)
	bad.Category = "watch_list"
	batch := []ScoutResult{
		MakeTestResult("scout-1", "run-1", "https://a", 0.9),
		bad,
	}

	if _, _, err := db.UpsertScoutResults(ctx, batch); err == nil {
		t.Fatal("expected check constraint failure for watch_list category")
	}

	if _, err := db.GetScoutResult(ctx, "scout-1", "https://a"); !IsNotFound(err) {
		t.Errorf("partial batch should be rolled back, got %v", err)
	}
}

func TestUpsertScoutResults_Empty(t *testing.T) {
	db := NewTestDB(t)

	inserted, updated, err := db.UpsertScoutResults(context.Background(), nil)
	if err != nil {
		t.Fatalf("UpsertScoutResults failed: %v", err)
	}
	if inserted != 0 || updated != 0 {
		t.Errorf("(inserted, updated) = (%d, %d), want (0, 0)", inserted, updated)
	}
}

// Transaction Tests

func TestWithTransaction_Success(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	mustCreateScout(t, db, "scout-1")

	err := db.WithTransaction(ctx, func(tx *Tx) error {
		_, err := tx.UpsertScoutResult(ctx, &ScoutResult{
			ScoutID: "scout-1", RunID: "run-1", URL: "https://a", Category: "high_priority", RelevanceScore: 0.5,
		})
		return err
	})
	if err != nil {
		t.Fatalf("WithTransaction failed: %v", err)
	}

	if _, err := db.GetScoutResult(ctx, "scout-1", "https://a"); err != nil {
		t.Errorf("result should exist after successful transaction: %v", err)
	}
}

func TestWithTransaction_Rollback(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	mustCreateScout(t, db, "scout-1")

	testErr := errors.New("test error")

	err := db.WithTransaction(ctx, func(tx *Tx) error {
		if _, err := tx.UpsertScoutResult(ctx, &ScoutResult{
			ScoutID: "scout-1", RunID: "run-1", URL: "https://a", Category: "high_priority", RelevanceScore: 0.5,
		}); err != nil {
			return err
		}
		return testErr
	})
	if err != testErr {
		t.Fatalf("expected testErr, got %v", err)
	}

	if _, err := db.GetScoutResult(ctx, "scout-1", "https://a"); !IsNotFound(err) {
		t.Error("result should not exist after rollback")
	}
}

// Error Handling Tests

func TestIsDuplicate(t *testing.T) {
	if IsDuplicate(nil) {
		t.Error("IsDuplicate(nil) = true")
	}
	if !IsDuplicate(errors.New(`ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)`)) {
		t.Error("expected postgres duplicate to be recognised")
	}
}

func TestIsForeignKey(t *testing.T) {
	if IsForeignKey(nil) {
		t.Error("IsForeignKey(nil) = true")
	}
	if !IsForeignKey(errors.New(`insert or update on table "scout_runs" violates foreign key constraint`)) {
		t.Error("expected postgres foreign key error to be recognised")
	}
}
