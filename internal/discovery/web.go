package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/livinlefevreloca/scout/internal/scout"
)

const PlatformWeb = "web"

// WebConfig describes how to scrape a search results page
type WebConfig struct {
	// SearchURL may contain {query} and {page} placeholders
	SearchURL       string `json:"search_url"`
	ItemSelector    string `json:"item_selector"`
	TitleSelector   string `json:"title_selector"`
	LinkSelector    string `json:"link_selector"`
	LinkAttr        string `json:"link_attr"`
	SnippetSelector string `json:"snippet_selector"`
	AuthorSelector  string `json:"author_selector"`
}

func (c *WebConfig) applyDefaults() {
	if c.LinkSelector == "" {
		c.LinkSelector = "a"
	}
	if c.LinkAttr == "" {
		c.LinkAttr = "href"
	}
	if c.TitleSelector == "" {
		c.TitleSelector = c.LinkSelector
	}
}

// WebSource scrapes a search page with CSS selectors
type WebSource struct {
	client    *http.Client
	userAgent string
}

func NewWebSource(client *http.Client, userAgent string) *WebSource {
	return &WebSource{client: client, userAgent: userAgent}
}

func (w *WebSource) Search(ctx context.Context, query scout.DiscoveryQuery, platformConfig json.RawMessage) ([]scout.Candidate, error) {
	var config WebConfig
	if len(platformConfig) > 0 {
		if err := json.Unmarshal(platformConfig, &config); err != nil {
			return nil, fmt.Errorf("invalid web platform config: %w", err)
		}
	}
	if config.SearchURL == "" || config.ItemSelector == "" {
		return nil, errors.New("web platform config needs search_url and item_selector")
	}
	config.applyDefaults()

	searchURL := expandSearchURL(config.SearchURL, query)
	base, err := url.Parse(searchURL)
	if err != nil {
		return nil, fmt.Errorf("invalid search url: %w", err)
	}

	body, err := get(ctx, w.client, searchURL, w.userAgent, "text/html")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}

	out := make([]scout.Candidate, 0, query.Limit)
	doc.Find(config.ItemSelector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if query.Limit > 0 && len(out) >= query.Limit {
			return false
		}

		href, ok := item.Find(config.LinkSelector).First().Attr(config.LinkAttr)
		if !ok || strings.TrimSpace(href) == "" {
			return true
		}
		link, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}

		c := scout.Candidate{
			Title:    collapseSpace(item.Find(config.TitleSelector).First().Text()),
			URL:      link.String(),
			Source:   PlatformWeb,
			Metadata: map[string]string{"query": query.Target},
		}
		if config.SnippetSelector != "" {
			c.Snippet = collapseSpace(item.Find(config.SnippetSelector).First().Text())
		}
		if config.AuthorSelector != "" {
			c.Author = collapseSpace(item.Find(config.AuthorSelector).First().Text())
		}

		out = append(out, c)
		return true
	})

	return out, nil
}

func expandSearchURL(template string, query scout.DiscoveryQuery) string {
	page := query.Page
	if page <= 0 {
		page = 1
	}
	return strings.NewReplacer(
		"{query}", url.QueryEscape(query.Target),
		"{page}", strconv.Itoa(page),
	).Replace(template)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
