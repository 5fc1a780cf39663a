package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/livinlefevreloca/scout/internal/scout"
)

// Capability builds candidate queries for a scout
type Capability interface {
	PlanQueries(ctx context.Context, sc *scout.Scout) ([]scout.DiscoveryQuery, error)
}

// Platforms reports which platforms discovery can serve
type Platforms interface {
	Has(platform string) bool
}

// Config for the search planner
type Config struct {
	// "keyword" or "ai"
	Mode string `toml:"mode"`

	// Keywords combined into one query by the keyword capability
	KeywordsPerQuery int `toml:"keywords_per_query"`

	// Upper bound on queries the ai capability may plan
	MaxQueries int `toml:"max_queries"`
}

// DefaultConfig returns planner defaults
func DefaultConfig() Config {
	return Config{
		Mode:             "keyword",
		KeywordsPerQuery: 3,
		MaxQueries:       5,
	}
}

// Validate checks planner configuration
func (c Config) Validate() error {
	if c.Mode != "keyword" && c.Mode != "ai" {
		return fmt.Errorf("planner mode must be keyword or ai, got %q", c.Mode)
	}
	if c.KeywordsPerQuery <= 0 {
		return fmt.Errorf("keywords_per_query must be positive, got %d", c.KeywordsPerQuery)
	}
	if c.MaxQueries <= 0 {
		return fmt.Errorf("max_queries must be positive, got %d", c.MaxQueries)
	}
	return nil
}

// Planner turns a scout into a validated discovery plan
type Planner struct {
	capability Capability
	platforms  Platforms
	logger     *slog.Logger
}

func New(capability Capability, platforms Platforms, logger *slog.Logger) *Planner {
	return &Planner{
		capability: capability,
		platforms:  platforms,
		logger:     logger,
	}
}

// Plan returns one or more queries for sc. A scout without keywords, an
// unknown platform, a capability failure or any malformed query fails the
// whole plan with *scout.PlanningError.
func (p *Planner) Plan(ctx context.Context, sc *scout.Scout) ([]scout.DiscoveryQuery, error) {
	if len(cleanKeywords(sc.Keywords)) == 0 {
		return nil, &scout.PlanningError{Reason: "scout has no keywords"}
	}
	if !p.platforms.Has(sc.Platform) {
		return nil, &scout.PlanningError{Reason: fmt.Sprintf("platform %q is not supported", sc.Platform)}
	}

	plan, err := p.capability.PlanQueries(ctx, sc)
	if err != nil {
		return nil, &scout.PlanningError{Reason: "query planning capability failed", Err: err}
	}

	if err := validatePlan(sc, plan); err != nil {
		p.logger.Warn("rejected discovery plan", "scout_id", sc.ID, "queries", len(plan), "error", err)
		return nil, err
	}

	p.logger.Debug("planned discovery", "scout_id", sc.ID, "queries", len(plan))
	return plan, nil
}

func validatePlan(sc *scout.Scout, plan []scout.DiscoveryQuery) error {
	if len(plan) == 0 {
		return &scout.PlanningError{Reason: "plan is empty"}
	}

	for i, q := range plan {
		switch {
		case strings.TrimSpace(q.Target) == "":
			return &scout.PlanningError{Reason: fmt.Sprintf("query %d has an empty target", i)}
		case q.Platform != sc.Platform:
			return &scout.PlanningError{Reason: fmt.Sprintf("query %d targets platform %q, scout uses %q", i, q.Platform, sc.Platform)}
		case q.Limit <= 0 || q.Limit > sc.MaxResults:
			return &scout.PlanningError{Reason: fmt.Sprintf("query %d limit %d outside (0, %d]", i, q.Limit, sc.MaxResults)}
		}
	}
	return nil
}

// KeywordCapability plans deterministically: one query per group of at most
// KeywordsPerQuery keywords
type KeywordCapability struct {
	KeywordsPerQuery int
}

func (k KeywordCapability) PlanQueries(_ context.Context, sc *scout.Scout) ([]scout.DiscoveryQuery, error) {
	keywords := cleanKeywords(sc.Keywords)
	size := k.KeywordsPerQuery
	if size <= 0 {
		size = len(keywords)
	}

	plan := make([]scout.DiscoveryQuery, 0, (len(keywords)+size-1)/size)
	for start := 0; start < len(keywords); start += size {
		end := min(start+size, len(keywords))
		group := keywords[start:end]
		plan = append(plan, scout.DiscoveryQuery{
			Platform: sc.Platform,
			Target:   strings.Join(group, " "),
			Keywords: group,
			Limit:    sc.MaxResults,
			Page:     1,
		})
	}
	return plan, nil
}

// cleanKeywords trims keywords and drops empty and repeated entries
func cleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		key := strings.ToLower(k)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}
	return out
}
