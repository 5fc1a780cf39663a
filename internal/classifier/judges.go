package classifier

import (
	"context"
	"fmt"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/livinlefevreloca/scout/internal/scout"
)

// SignalJudge uses the urgency signal the analysis step attached
type SignalJudge struct{}

func (SignalJudge) Judge(_ context.Context, _ *scout.Scout, candidate scout.AnalyzedCandidate) (scout.Category, error) {
	if candidate.Urgency == scout.UrgencyImmediate {
		return scout.CategoryImmediateAction, nil
	}
	return scout.CategoryHighPriority, nil
}

// MemoJudge remembers the answers of another judge so classifying the same
// analyzed candidate again yields the same category. Failed judgments are
// not remembered.
type MemoJudge struct {
	inner UrgencyJudge
	cache *lru.Cache[string, scout.Category]
}

func NewMemoJudge(inner UrgencyJudge, size int) (*MemoJudge, error) {
	cache, err := lru.New[string, scout.Category](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create judgment cache: %w", err)
	}
	return &MemoJudge{inner: inner, cache: cache}, nil
}

func (m *MemoJudge) Judge(ctx context.Context, sc *scout.Scout, candidate scout.AnalyzedCandidate) (scout.Category, error) {
	key := memoKey(sc, candidate)
	if category, ok := m.cache.Get(key); ok {
		return category, nil
	}

	category, err := m.inner.Judge(ctx, sc, candidate)
	if err != nil {
		return "", err
	}
	if ShouldPersist(category) {
		m.cache.Add(key, category)
	}
	return category, nil
}

// Len returns the number of remembered judgments
func (m *MemoJudge) Len() int {
	return m.cache.Len()
}

func memoKey(sc *scout.Scout, candidate scout.AnalyzedCandidate) string {
	return sc.ID + "\x00" + candidate.URL + "\x00" +
		strconv.FormatFloat(candidate.RelevanceScore, 'g', -1, 64) + "\x00" + string(candidate.Urgency)
}
