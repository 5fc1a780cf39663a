package orchestrator

// PlanningState - building the discovery plan
type PlanningState struct{}

func (s *PlanningState) Name() string { return "planning" }
func (s *PlanningState) ToDiscovering() *DiscoveringState {
	return &DiscoveringState{}
}
func (s *PlanningState) ToFailed() *FailedState {
	return &FailedState{}
}

// DiscoveringState - running queries against the content source
type DiscoveringState struct{}

func (s *DiscoveringState) Name() string { return "discovering" }
func (s *DiscoveringState) ToAnalyzing() *AnalyzingState {
	return &AnalyzingState{}
}
func (s *DiscoveringState) ToFailed() *FailedState {
	return &FailedState{}
}

// AnalyzingState - extracting detail and scores, failures stay per candidate
type AnalyzingState struct{}

func (s *AnalyzingState) Name() string { return "analyzing" }
func (s *AnalyzingState) ToClassifying() *ClassifyingState {
	return &ClassifyingState{}
}

// ClassifyingState - assigning tiers to every analyzed candidate
type ClassifyingState struct{}

func (s *ClassifyingState) Name() string { return "classifying" }
func (s *ClassifyingState) ToPersisting() *PersistingState {
	return &PersistingState{}
}

// PersistingState - writing eligible results in one batch
type PersistingState struct{}

func (s *PersistingState) Name() string { return "persisting" }
func (s *PersistingState) ToReporting() *ReportingState {
	return &ReportingState{}
}
func (s *PersistingState) ToFailed() *FailedState {
	return &FailedState{}
}

// ReportingState - assembling the run report
type ReportingState struct{}

func (s *ReportingState) Name() string { return "reporting" }
func (s *ReportingState) ToCompleted() *CompletedState {
	return &CompletedState{}
}

// Terminal States

// CompletedState - completed successfully
type CompletedState struct{}

func (s *CompletedState) Name() string { return "completed" }

// FailedState - failed
type FailedState struct{}

func (s *FailedState) Name() string { return "failed" }
