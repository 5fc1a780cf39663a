package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livinlefevreloca/scout/internal/scout"
	"github.com/livinlefevreloca/scout/internal/testutil"
)

type fakeCompleter struct {
	answer     string
	err        error
	operations []string
	prompts    []string
}

func (f *fakeCompleter) Complete(_ context.Context, operation, prompt string) (string, error) {
	f.operations = append(f.operations, operation)
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

type fakePages struct {
	text string
	err  error
}

func (f fakePages) PageText(context.Context, string) (string, error) {
	return f.text, f.err
}

func testScout() *scout.Scout {
	return &scout.Scout{
		ID:               "scout-1",
		Name:             "Go jobs",
		Instructions:     "remote senior Go roles",
		Keywords:         []string{"golang", "remote"},
		Platform:         "rss",
		MaxResults:       20,
		QualityThreshold: 0.6,
	}
}

func TestParseJSON(t *testing.T) {
	type answer struct {
		Category string `json:"category"`
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", `{"category":"high_priority"}`, "high_priority", false},
		{"fenced", "```json\n{\"category\":\"immediate_action\"}\n```", "immediate_action", false},
		{"prose around", `Sure. {"category":"high_priority"} Hope that helps.`, "high_priority", false},
		{"brace in string", `{"category":"a}b"}`, "a}b", false},
		{"unknown field", `{"category":"x","extra":1}`, "", true},
		{"no object", `I cannot answer`, "", true},
		{"unbalanced", `{"category":"x"`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJSON[answer](tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Category)
		})
	}
}

func TestPlanner_PlanQueries(t *testing.T) {
	completer := &fakeCompleter{answer: `{"queries":[
		{"target":" golang remote ","keywords":["golang","remote"],"limit":10},
		{"platform":"web","target":"go jobs","keywords":["golang"],"limit":5,"page":2}
	]}`}
	planner := NewPlanner(completer, 5)

	plan, err := planner.PlanQueries(context.Background(), testScout())

	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, scout.DiscoveryQuery{Platform: "rss", Target: "golang remote", Keywords: []string{"golang", "remote"}, Limit: 10, Page: 1}, plan[0])
	assert.Equal(t, "web", plan[1].Platform)
	assert.Equal(t, 2, plan[1].Page)
	assert.Equal(t, []string{"plan_queries"}, completer.operations)
	assert.Contains(t, completer.prompts[0], "remote senior Go roles")
}

func TestPlanner_TruncatesToMaxQueries(t *testing.T) {
	completer := &fakeCompleter{answer: `{"queries":[{"target":"a","limit":1},{"target":"b","limit":1},{"target":"c","limit":1}]}`}

	plan, err := NewPlanner(completer, 2).PlanQueries(context.Background(), testScout())

	require.NoError(t, err)
	assert.Len(t, plan, 2)
}

func TestPlanner_Errors(t *testing.T) {
	_, err := NewPlanner(&fakeCompleter{answer: `{"queries":[]}`}, 5).PlanQueries(context.Background(), testScout())
	assert.Error(t, err)

	_, err = NewPlanner(&fakeCompleter{err: errors.New("down")}, 5).PlanQueries(context.Background(), testScout())
	assert.Error(t, err)
}

func TestExtractor_Extract(t *testing.T) {
	completer := &fakeCompleter{answer: "```json\n" + `{"relevance_score":0.82,"confidence":0.9,"urgency":"elevated","rationale":"fits","detail":{"salary":"150k"}}` + "\n```"}
	extractor := NewExtractor(completer, fakePages{text: "full page body"}, testutil.NewTestLogger().Logger())

	got, err := extractor.Extract(context.Background(), testScout(), scout.Candidate{URL: "https://x/1", Title: "Go dev"})

	require.NoError(t, err)
	assert.Equal(t, 0.82, got.RelevanceScore)
	assert.Equal(t, 0.9, got.Confidence)
	assert.Equal(t, scout.UrgencyElevated, got.Urgency)
	assert.JSONEq(t, `{"salary":"150k"}`, string(got.Detail))
	assert.Contains(t, completer.prompts[0], "full page body")
}

func TestExtractor_PageFailureFallsBackToSnippet(t *testing.T) {
	completer := &fakeCompleter{answer: `{"relevance_score":0.5,"confidence":0.5}`}
	logger := testutil.NewTestLogger()
	extractor := NewExtractor(completer, fakePages{err: errors.New("404")}, logger.Logger())

	got, err := extractor.Extract(context.Background(), testScout(), scout.Candidate{URL: "https://x/1", Snippet: "short text"})

	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(got.Detail))
	assert.Contains(t, completer.prompts[0], "short text")
	assert.True(t, logger.HasDebug())
}

func TestExtractor_MissingFields(t *testing.T) {
	extractor := NewExtractor(&fakeCompleter{answer: `{"confidence":0.5}`}, nil, testutil.NewTestLogger().Logger())
	_, err := extractor.Extract(context.Background(), testScout(), scout.Candidate{URL: "https://x/1"})
	assert.ErrorContains(t, err, "relevance_score")

	extractor = NewExtractor(&fakeCompleter{answer: `{"relevance_score":0.5}`}, nil, testutil.NewTestLogger().Logger())
	_, err = extractor.Extract(context.Background(), testScout(), scout.Candidate{URL: "https://x/1"})
	assert.ErrorContains(t, err, "confidence")
}

func TestJudge(t *testing.T) {
	completer := &fakeCompleter{answer: `{"category":"immediate_action","reason":"deadline today"}`}

	category, err := NewJudge(completer).Judge(context.Background(), testScout(), scout.AnalyzedCandidate{
		Candidate:      scout.Candidate{URL: "https://x/1", Title: "Go dev"},
		RelevanceScore: 0.9,
		Urgency:        scout.UrgencyImmediate,
	})

	require.NoError(t, err)
	assert.Equal(t, scout.CategoryImmediateAction, category)
	assert.Equal(t, []string{"judge_urgency"}, completer.operations)
}

func TestJudge_MalformedAnswer(t *testing.T) {
	_, err := NewJudge(&fakeCompleter{answer: "immediate!"}).Judge(context.Background(), testScout(), scout.AnalyzedCandidate{})
	assert.Error(t, err)
}
