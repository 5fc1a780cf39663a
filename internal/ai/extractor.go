package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/livinlefevreloca/scout/internal/scout"
)

// PageReader returns the readable text of a page
type PageReader interface {
	PageText(ctx context.Context, url string) (string, error)
}

// Extractor asks the model for structured detail and a relevance score
type Extractor struct {
	completer Completer
	pages     PageReader // optional
	logger    *slog.Logger
}

func NewExtractor(completer Completer, pages PageReader, logger *slog.Logger) *Extractor {
	return &Extractor{completer: completer, pages: pages, logger: logger}
}

type extractResponse struct {
	RelevanceScore *float64        `json:"relevance_score"`
	Confidence     *float64        `json:"confidence"`
	Urgency        string          `json:"urgency"`
	Rationale      string          `json:"rationale"`
	Detail         json.RawMessage `json:"detail"`
}

// Extract returns the model's answer after a structural check. Range checks
// on the numbers are left to the analyzer so that every extractor is held to
// the same rules.
func (e *Extractor) Extract(ctx context.Context, sc *scout.Scout, candidate scout.Candidate) (scout.Extraction, error) {
	var page string
	if e.pages != nil {
		text, err := e.pages.PageText(ctx, candidate.URL)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return scout.Extraction{}, err
			}
			e.logger.Debug("page fetch failed, analyzing snippet only",
				"url", candidate.URL,
				"error", err)
		} else {
			page = text
		}
	}

	answer, err := e.completer.Complete(ctx, "extract", extractPrompt(sc, candidate, page))
	if err != nil {
		return scout.Extraction{}, err
	}

	resp, err := parseJSON[extractResponse](answer)
	if err != nil {
		return scout.Extraction{}, err
	}
	if resp.RelevanceScore == nil {
		return scout.Extraction{}, fmt.Errorf("response is missing relevance_score")
	}
	if resp.Confidence == nil {
		return scout.Extraction{}, fmt.Errorf("response is missing confidence")
	}

	detail := resp.Detail
	if len(detail) == 0 || string(detail) == "null" {
		detail = json.RawMessage(`{}`)
	}

	return scout.Extraction{
		Detail:         detail,
		RelevanceScore: *resp.RelevanceScore,
		Rationale:      resp.Rationale,
		Confidence:     *resp.Confidence,
		Urgency:        scout.Urgency(resp.Urgency),
	}, nil
}

func extractPrompt(sc *scout.Scout, c scout.Candidate, page string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You evaluate items for the monitoring profile %q.\n", sc.Name)
	if sc.Instructions != "" {
		fmt.Fprintf(&b, "Instructions: %s\n", sc.Instructions)
	}
	fmt.Fprintf(&b, "Keywords: %s\n\n", strings.Join(sc.Keywords, ", "))
	fmt.Fprintf(&b, "Title: %s\nURL: %s\n", c.Title, c.URL)
	if c.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", c.Author)
	}
	if c.Snippet != "" {
		fmt.Fprintf(&b, "Snippet: %s\n", c.Snippet)
	}
	if page != "" {
		fmt.Fprintf(&b, "Page text:\n%s\n", page)
	}
	b.WriteString(`
Respond with only a JSON object of the form:
{"relevance_score": 0.0-1.0, "confidence": 0.0-1.0, "urgency": "low" | "elevated" | "immediate", "rationale": "one sentence", "detail": {}}`)
	return b.String()
}
