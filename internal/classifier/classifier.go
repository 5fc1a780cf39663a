package classifier

import (
	"context"
	"log/slog"

	"github.com/livinlefevreloca/scout/internal/scout"
)

// UrgencyJudge decides between immediate_action and high_priority for a
// candidate that already cleared the quality threshold
type UrgencyJudge interface {
	Judge(ctx context.Context, sc *scout.Scout, candidate scout.AnalyzedCandidate) (scout.Category, error)
}

// Classifier assigns every analyzed candidate a tier
type Classifier struct {
	judge  UrgencyJudge
	logger *slog.Logger
}

func New(judge UrgencyJudge, logger *slog.Logger) *Classifier {
	return &Classifier{
		judge:  judge,
		logger: logger,
	}
}

// Classify puts candidates below the scout's quality threshold on the watch
// list without consulting the judge. Above it the judge decides; an error or
// an answer outside {immediate_action, high_priority} falls back to
// high_priority.
func (c *Classifier) Classify(ctx context.Context, sc *scout.Scout, candidate scout.AnalyzedCandidate) scout.ClassifiedCandidate {
	classified := scout.ClassifiedCandidate{AnalyzedCandidate: candidate}

	if candidate.RelevanceScore < sc.QualityThreshold {
		classified.Category = scout.CategoryWatchList
		return classified
	}

	category, err := c.judge.Judge(ctx, sc, candidate)
	switch {
	case err != nil:
		c.logger.Warn("urgency judgment failed, defaulting to high priority",
			"scout_id", sc.ID,
			"url", candidate.URL,
			"error", err)
		category = scout.CategoryHighPriority
	case category != scout.CategoryImmediateAction && category != scout.CategoryHighPriority:
		c.logger.Warn("urgency judgment out of domain, defaulting to high priority",
			"scout_id", sc.ID,
			"url", candidate.URL,
			"category", string(category))
		category = scout.CategoryHighPriority
	}

	classified.Category = category
	return classified
}

// ClassifyAll classifies a batch in order
func (c *Classifier) ClassifyAll(ctx context.Context, sc *scout.Scout, analyzed []scout.AnalyzedCandidate) []scout.ClassifiedCandidate {
	out := make([]scout.ClassifiedCandidate, 0, len(analyzed))
	for _, a := range analyzed {
		out = append(out, c.Classify(ctx, sc, a))
	}
	return out
}

// ShouldPersist is true only for immediate_action and high_priority
func ShouldPersist(category scout.Category) bool {
	return category == scout.CategoryImmediateAction || category == scout.CategoryHighPriority
}

// Eligible returns the candidates whose category should be persisted
func Eligible(classified []scout.ClassifiedCandidate) []scout.ClassifiedCandidate {
	out := make([]scout.ClassifiedCandidate, 0, len(classified))
	for _, c := range classified {
		if ShouldPersist(c.Category) {
			out = append(out, c)
		}
	}
	return out
}
