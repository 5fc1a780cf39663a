package report

import (
	"sort"

	"github.com/livinlefevreloca/scout/internal/scout"
)

// Stats counts what happened at each pipeline phase
type Stats struct {
	QueriesPlanned   int `json:"queries_planned"`
	QueriesFailed    int `json:"queries_failed"`
	Discovered       int `json:"discovered"`
	Analyzed         int `json:"analyzed"`
	AnalysisFailures int `json:"analysis_failures"`
	Inserted         int `json:"inserted"`
	Updated          int `json:"updated"`
}

// Entry is one candidate as it appears in a report
type Entry struct {
	Title          string         `json:"title"`
	URL            string         `json:"url"`
	Category       scout.Category `json:"category"`
	RelevanceScore float64        `json:"relevance_score"`
	Confidence     float64        `json:"confidence"`
	Rationale      string         `json:"rationale,omitempty"`
}

// Report groups every classified candidate of a run by tier, persisted or not
type Report struct {
	RunID           string   `json:"run_id"`
	ScoutID         string   `json:"scout_id"`
	ImmediateAction []Entry  `json:"immediate_action"`
	HighPriority    []Entry  `json:"high_priority"`
	WatchList       []Entry  `json:"watch_list"`
	Stats           Stats    `json:"stats"`
	Failures        []string `json:"failures,omitempty"`
}

// Total returns the number of entries across tiers
func (r *Report) Total() int {
	return len(r.ImmediateAction) + len(r.HighPriority) + len(r.WatchList)
}

// ResultsCount is the number of persisted rows, inserted plus updated
func (r *Report) ResultsCount() int {
	return r.Stats.Inserted + r.Stats.Updated
}

// HighRelevanceCount is the number of immediate_action entries
func (r *Report) HighRelevanceCount() int {
	return len(r.ImmediateAction)
}

// Assemble groups candidates by tier, each tier sorted by descending score
// with ties kept in input order
func Assemble(runID, scoutID string, all []scout.ClassifiedCandidate) *Report {
	r := &Report{
		RunID:           runID,
		ScoutID:         scoutID,
		ImmediateAction: []Entry{},
		HighPriority:    []Entry{},
		WatchList:       []Entry{},
	}

	for _, c := range all {
		entry := Entry{
			Title:          c.Title,
			URL:            c.URL,
			Category:       c.Category,
			RelevanceScore: c.RelevanceScore,
			Confidence:     c.Confidence,
			Rationale:      c.Rationale,
		}

		switch c.Category {
		case scout.CategoryImmediateAction:
			r.ImmediateAction = append(r.ImmediateAction, entry)
		case scout.CategoryHighPriority:
			r.HighPriority = append(r.HighPriority, entry)
		default:
			r.WatchList = append(r.WatchList, entry)
		}
	}

	for _, tier := range [][]Entry{r.ImmediateAction, r.HighPriority, r.WatchList} {
		sort.SliceStable(tier, func(i, j int) bool {
			return tier[i].RelevanceScore > tier[j].RelevanceScore
		})
	}

	return r
}

// WithStats attaches pipeline counters and failure messages
func (r *Report) WithStats(stats Stats, failures []error) *Report {
	r.Stats = stats
	for _, err := range failures {
		r.Failures = append(r.Failures, err.Error())
	}
	return r
}
