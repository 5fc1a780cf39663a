package scout

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("scout: not found")
	ErrRunTerminal = errors.New("scout: run already in a terminal state")
)

// ConfigurationError means the scout is missing or malformed. No run is created.
type ConfigurationError struct {
	ScoutID string
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error for scout %q: %s: %v", e.ScoutID, e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error for scout %q: %s", e.ScoutID, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// AlreadyRunningError means another run holds the scout's running flag
type AlreadyRunningError struct {
	ScoutID string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("scout %q already has a run in progress", e.ScoutID)
}

// PlanningError means no valid discovery plan could be built
type PlanningError struct {
	Reason string
	Err    error
}

func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planning failed: %s: %v", e.Reason, e.Err)
	}
	return "planning failed: " + e.Reason
}

func (e *PlanningError) Unwrap() error { return e.Err }

// DiscoveryError is a transport or provider failure for one query, or for
// the whole plan when every query failed
type DiscoveryError struct {
	Query       string
	RateLimited bool
	Err         error
}

func (e *DiscoveryError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("discovery failed: %v", e.Err)
	}
	return fmt.Sprintf("discovery failed for %q: %v", e.Query, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// AnalysisError is a candidate-level failure. It is never fatal to a run.
type AnalysisError struct {
	URL     string
	Timeout bool
	Err     error
}

func (e *AnalysisError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("analysis of %s timed out: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("analysis of %s failed: %v", e.URL, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// PersistenceError means accepted results could not be stored
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsAlreadyRunning reports whether err is an AlreadyRunningError
func IsAlreadyRunning(err error) bool {
	var target *AlreadyRunningError
	return errors.As(err, &target)
}

// IsConfiguration reports whether err is a ConfigurationError
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
