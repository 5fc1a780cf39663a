package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/livinlefevreloca/scout/internal/scout"
)

// FakeStore is an in-memory scout, run and result repository
type FakeStore struct {
	mu      sync.Mutex
	scouts  map[string]*scout.Scout
	runs    map[string]*scout.Run
	order   []string
	results map[string]scout.Result

	getScoutErr   error
	createRunErr  error
	finishRunErr  error
	incrementErr  error
	upsertErr     error
	releaseErr    error
	upsertCalls   int
	incrementRuns map[string]int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		scouts:        make(map[string]*scout.Scout),
		runs:          make(map[string]*scout.Run),
		results:       make(map[string]scout.Result),
		incrementRuns: make(map[string]int),
	}
}

func resultKey(scoutID, url string) string {
	return scoutID + "\x00" + url
}

// AddScout stores a copy of sc
func (f *FakeStore) AddScout(sc scout.Scout) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scouts[sc.ID] = &sc
}

func (f *FakeStore) SetGetScoutError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getScoutErr = err
}

func (f *FakeStore) SetCreateRunError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createRunErr = err
}

func (f *FakeStore) SetFinishRunError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishRunErr = err
}

func (f *FakeStore) SetIncrementError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incrementErr = err
}

func (f *FakeStore) SetUpsertError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertErr = err
}

// SetReleaseError makes clearing the running flag fail
func (f *FakeStore) SetReleaseError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseErr = err
}

func (f *FakeStore) GetScout(_ context.Context, id string) (*scout.Scout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getScoutErr != nil {
		return nil, f.getScoutErr
	}
	sc, ok := f.scouts[id]
	if !ok {
		return nil, fmt.Errorf("scout %q: %w", id, scout.ErrNotFound)
	}
	cp := *sc
	return &cp, nil
}

func (f *FakeStore) ListScouts(_ context.Context) ([]scout.Scout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getScoutErr != nil {
		return nil, f.getScoutErr
	}
	scouts := make([]scout.Scout, 0, len(f.scouts))
	for _, sc := range f.scouts {
		scouts = append(scouts, *sc)
	}
	sort.Slice(scouts, func(i, j int) bool { return scouts[i].ID < scouts[j].ID })
	return scouts, nil
}

func (f *FakeStore) SaveScout(_ context.Context, sc *scout.Scout) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *sc
	if existing, ok := f.scouts[sc.ID]; ok {
		cp.IsRunning = existing.IsRunning
		cp.TotalRuns = existing.TotalRuns
		cp.LastRunAt = existing.LastRunAt
	}
	f.scouts[sc.ID] = &cp
	return nil
}

func (f *FakeStore) SetRunning(_ context.Context, scoutID string, running bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sc, ok := f.scouts[scoutID]
	if !ok {
		return false, fmt.Errorf("scout %q: %w", scoutID, scout.ErrNotFound)
	}
	if !running && f.releaseErr != nil {
		return false, f.releaseErr
	}
	if sc.IsRunning == running {
		return false, nil
	}
	sc.IsRunning = running
	return true, nil
}

func (f *FakeStore) IncrementTotalRuns(_ context.Context, scoutID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.incrementErr != nil {
		return f.incrementErr
	}
	sc, ok := f.scouts[scoutID]
	if !ok {
		return fmt.Errorf("scout %q: %w", scoutID, scout.ErrNotFound)
	}
	sc.TotalRuns++
	f.incrementRuns[scoutID]++
	return nil
}

func (f *FakeStore) CreateRun(_ context.Context, run *scout.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createRunErr != nil {
		return f.createRunErr
	}
	if _, ok := f.runs[run.ID]; ok {
		return fmt.Errorf("run %q already exists", run.ID)
	}
	cp := *run
	f.runs[run.ID] = &cp
	f.order = append(f.order, run.ID)

	if sc, ok := f.scouts[run.ScoutID]; ok {
		started := run.StartedAt
		sc.LastRunAt = &started
	}
	return nil
}

func (f *FakeStore) FinishRun(_ context.Context, run *scout.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.finishRunErr != nil {
		return f.finishRunErr
	}
	stored, ok := f.runs[run.ID]
	if !ok || stored.Status.IsTerminal() {
		return fmt.Errorf("run %q: %w", run.ID, scout.ErrRunTerminal)
	}
	cp := *run
	f.runs[run.ID] = &cp
	return nil
}

func (f *FakeStore) GetRun(_ context.Context, runID string) (*scout.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	run, ok := f.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %q: %w", runID, scout.ErrNotFound)
	}
	cp := *run
	return &cp, nil
}

func (f *FakeStore) ListRuns(_ context.Context, scoutID string, limit int) ([]scout.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	runs := make([]scout.Run, 0)
	for i := len(f.order) - 1; i >= 0 && len(runs) < limit; i-- {
		if run := f.runs[f.order[i]]; run.ScoutID == scoutID {
			runs = append(runs, *run)
		}
	}
	return runs, nil
}

func (f *FakeStore) UpsertResults(_ context.Context, results []scout.Result) (scout.WriteReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.upsertCalls++
	if f.upsertErr != nil {
		return scout.WriteReport{}, f.upsertErr
	}

	var report scout.WriteReport
	for _, r := range results {
		key := resultKey(r.ScoutID, r.URL)
		if _, ok := f.results[key]; ok {
			report.Updated++
		} else {
			report.Inserted++
		}
		f.results[key] = r
	}
	return report, nil
}

func (f *FakeStore) GetResult(_ context.Context, scoutID, url string) (*scout.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.results[resultKey(scoutID, url)]
	if !ok {
		return nil, fmt.Errorf("result %q: %w", url, scout.ErrNotFound)
	}
	return &r, nil
}

func (f *FakeStore) ListResults(_ context.Context, scoutID string, limit int) ([]scout.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	results := make([]scout.Result, 0)
	for _, r := range f.results {
		if r.ScoutID == scoutID {
			results = append(results, r)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return results[i].URL < results[j].URL
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Runs returns every recorded run for a scout in creation order
func (f *FakeStore) Runs(scoutID string) []scout.Run {
	f.mu.Lock()
	defer f.mu.Unlock()

	runs := make([]scout.Run, 0)
	for _, id := range f.order {
		if run := f.runs[id]; run.ScoutID == scoutID {
			runs = append(runs, *run)
		}
	}
	return runs
}

// Results returns every stored result for a scout
func (f *FakeStore) Results(scoutID string) []scout.Result {
	results, _ := f.ListResults(context.Background(), scoutID, int(^uint(0)>>1))
	return results
}

func (f *FakeStore) IsRunning(scoutID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	sc, ok := f.scouts[scoutID]
	return ok && sc.IsRunning
}

func (f *FakeStore) TotalRuns(scoutID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.incrementRuns[scoutID]
}

func (f *FakeStore) UpsertCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upsertCalls
}

// MockClock provides controllable time for testing
type MockClock struct {
	mu      sync.Mutex
	current time.Time
}

func NewMockClock(start time.Time) *MockClock {
	return &MockClock{
		current: start,
	}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}

// TestLogger provides a logger that captures logs for testing
type TestLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

func NewTestLogger() *TestLogger {
	return &TestLogger{
		entries: make([]LogEntry, 0),
	}
}

func (l *TestLogger) log(level, msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := LogEntry{
		Level:   level,
		Message: msg,
		Fields:  make(map[string]interface{}),
	}

	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		entry.Fields[key] = fields[i+1]
	}

	l.entries = append(l.entries, entry)
}

func (l *TestLogger) GetEntries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]LogEntry, len(l.entries))
	copy(result, l.entries)
	return result
}

func (l *TestLogger) GetEntriesByLevel(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]LogEntry, 0)
	for _, entry := range l.entries {
		if entry.Level == level {
			result = append(result, entry)
		}
	}
	return result
}

// FindMessage returns the first entry logged with msg
func (l *TestLogger) FindMessage(msg string) (LogEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entry := range l.entries {
		if entry.Message == msg {
			return entry, true
		}
	}
	return LogEntry{}, false
}

func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]LogEntry, 0)
}

func (l *TestLogger) hasLevel(level string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entry := range l.entries {
		if entry.Level == level {
			return true
		}
	}
	return false
}

func (l *TestLogger) HasError() bool   { return l.hasLevel("ERROR") }
func (l *TestLogger) HasWarning() bool { return l.hasLevel("WARN") }
func (l *TestLogger) HasDebug() bool   { return l.hasLevel("DEBUG") }

// Logger returns a *slog.Logger that writes to this TestLogger
func (l *TestLogger) Logger() *slog.Logger {
	return slog.New(&testLogHandler{logger: l})
}

// testLogHandler implements slog.Handler for TestLogger
type testLogHandler struct {
	logger *TestLogger
	attrs  []slog.Attr
}

func (h *testLogHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]interface{}, 0, (r.NumAttrs()+len(h.attrs))*2)
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, a.Key, a.Value.Any())
		return true
	})
	for _, attr := range h.attrs {
		fields = append(fields, attr.Key, attr.Value.Any())
	}

	h.logger.log(r.Level.String(), r.Message, fields...)
	return nil
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	return &testLogHandler{logger: h.logger, attrs: newAttrs}
}

// Groups are flattened, the capture only matches on keys
func (h *testLogHandler) WithGroup(_ string) slog.Handler {
	return h
}

// WaitFor waits for a condition to be true with timeout
func WaitFor(t TestingT, condition func() bool, timeout time.Duration, msgAndArgs ...interface{}) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return true
		}

		<-ticker.C
		if time.Now().After(deadline) {
			t.Errorf("timeout waiting for condition: %v", msgAndArgs)
			return false
		}
	}
}

// TestingT is a minimal interface for testing
type TestingT interface {
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}
