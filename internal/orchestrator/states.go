package orchestrator

import (
	"sync"
	"time"
)

// State is the interface that all run phases must implement
type State interface {
	Name() string
}

// StateRecorder captures the phases a run went through
type StateRecorder struct {
	mu   sync.Mutex
	path []string
}

func NewStateRecorder() *StateRecorder {
	return &StateRecorder{path: make([]string, 0)}
}

func (r *StateRecorder) Record(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.path = append(r.path, state.Name())
}

func (r *StateRecorder) Path() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.path...)
}

// Phase timing boundaries (stored separately from states)
type PhaseTiming struct {
	StartedAt          time.Time
	DiscoveryStartedAt time.Time
	AnalysisStartedAt  time.Time
	PersistStartedAt   time.Time
	CompletedAt        time.Time
}
