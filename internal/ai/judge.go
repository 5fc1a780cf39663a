package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/livinlefevreloca/scout/internal/scout"
)

// Judge asks the model whether a candidate needs immediate action
type Judge struct {
	completer Completer
}

func NewJudge(completer Completer) *Judge {
	return &Judge{completer: completer}
}

type judgeResponse struct {
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// Judge returns the model's category as-is. The classifier owns the fallback
// for answers outside immediate_action and high_priority.
func (j *Judge) Judge(ctx context.Context, sc *scout.Scout, candidate scout.AnalyzedCandidate) (scout.Category, error) {
	answer, err := j.completer.Complete(ctx, "judge_urgency", judgePrompt(sc, candidate))
	if err != nil {
		return "", err
	}

	resp, err := parseJSON[judgeResponse](answer)
	if err != nil {
		return "", err
	}
	return scout.Category(strings.TrimSpace(resp.Category)), nil
}

func judgePrompt(sc *scout.Scout, c scout.AnalyzedCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "An item matched the monitoring profile %q", sc.Name)
	if sc.Instructions != "" {
		fmt.Fprintf(&b, " (instructions: %s)", sc.Instructions)
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Title: %s\nURL: %s\nRelevance: %.2f\nUrgency signal: %s\nRationale: %s\n",
		c.Title, c.URL, c.RelevanceScore, c.Urgency, c.Rationale)
	b.WriteString(`Decide whether it needs immediate action or is high priority.
Respond with only a JSON object: {"category": "immediate_action" | "high_priority", "reason": "one sentence"}`)
	return b.String()
}
