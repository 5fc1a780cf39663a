package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/livinlefevreloca/scout/internal/scout"
)

// Planner turns a scout's instructions and keywords into discovery queries
type Planner struct {
	completer  Completer
	maxQueries int
}

func NewPlanner(completer Completer, maxQueries int) *Planner {
	if maxQueries <= 0 {
		maxQueries = 5
	}
	return &Planner{completer: completer, maxQueries: maxQueries}
}

type planResponse struct {
	Queries []struct {
		Platform string   `json:"platform"`
		Target   string   `json:"target"`
		Keywords []string `json:"keywords"`
		Limit    int      `json:"limit"`
		Page     int      `json:"page"`
	} `json:"queries"`
}

// PlanQueries asks the model for a plan. Platform defaults to the scout's,
// and a missing page defaults to 1; everything else is validated by the
// planner package.
func (p *Planner) PlanQueries(ctx context.Context, sc *scout.Scout) ([]scout.DiscoveryQuery, error) {
	answer, err := p.completer.Complete(ctx, "plan_queries", p.prompt(sc))
	if err != nil {
		return nil, err
	}

	resp, err := parseJSON[planResponse](answer)
	if err != nil {
		return nil, err
	}
	if len(resp.Queries) == 0 {
		return nil, fmt.Errorf("model returned no queries")
	}
	if len(resp.Queries) > p.maxQueries {
		resp.Queries = resp.Queries[:p.maxQueries]
	}

	plan := make([]scout.DiscoveryQuery, 0, len(resp.Queries))
	for _, q := range resp.Queries {
		query := scout.DiscoveryQuery{
			Platform: q.Platform,
			Target:   strings.TrimSpace(q.Target),
			Keywords: q.Keywords,
			Limit:    q.Limit,
			Page:     q.Page,
		}
		if query.Platform == "" {
			query.Platform = sc.Platform
		}
		if query.Page <= 0 {
			query.Page = 1
		}
		plan = append(plan, query)
	}
	return plan, nil
}

func (p *Planner) prompt(sc *scout.Scout) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You plan searches on the %q platform for a monitoring profile named %q.\n", sc.Platform, sc.Name)
	if sc.Instructions != "" {
		fmt.Fprintf(&b, "Instructions: %s\n", sc.Instructions)
	}
	fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(sc.Keywords, ", "))
	fmt.Fprintf(&b, "Produce at most %d queries. Each query limit must be between 1 and %d.\n", p.maxQueries, sc.MaxResults)
	b.WriteString(`Respond with only a JSON object of the form:
{"queries": [{"target": "search text or feed URL", "keywords": ["..."], "limit": 10, "page": 1}]}`)
	return b.String()
}
