package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/livinlefevreloca/scout/internal/scout"
)

const PlatformRSS = "rss"

// RSSConfig is the platform config of an rss scout
type RSSConfig struct {
	Feeds []string `json:"feeds"`
}

// RSSSource pulls feeds and filters items locally by keyword, feeds are not
// queryable like search
type RSSSource struct {
	client    *http.Client
	userAgent string
}

func NewRSSSource(client *http.Client, userAgent string) *RSSSource {
	return &RSSSource{client: client, userAgent: userAgent}
}

// Search reads the query target when it is a feed URL, otherwise every feed
// in the platform config. A feed that fails is skipped unless all of them do.
func (r *RSSSource) Search(ctx context.Context, query scout.DiscoveryQuery, platformConfig json.RawMessage) ([]scout.Candidate, error) {
	feeds, err := rssFeeds(query, platformConfig)
	if err != nil {
		return nil, err
	}

	keywords := lowerKeywords(query.Keywords)
	if len(keywords) == 0 && !isURL(query.Target) {
		keywords = lowerKeywords(strings.Fields(query.Target))
	}

	parser := gofeed.NewParser()
	out := make([]scout.Candidate, 0, query.Limit)

	var errs []error
	for _, feedURL := range feeds {
		if query.Limit > 0 && len(out) >= query.Limit {
			break
		}

		feed, err := r.fetch(ctx, parser, feedURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", feedURL, err))
			continue
		}

		for _, item := range feed.Items {
			if query.Limit > 0 && len(out) >= query.Limit {
				break
			}
			if !matchesAnyKeyword(strings.ToLower(item.Title+" "+item.Description), keywords) {
				continue
			}
			out = append(out, candidateFromItem(feed, item))
		}
	}

	if len(errs) == len(feeds) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (r *RSSSource) fetch(ctx context.Context, parser *gofeed.Parser, feedURL string) (*gofeed.Feed, error) {
	body, err := get(ctx, r.client, feedURL, r.userAgent, "application/rss+xml, application/atom+xml, application/xml")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, nil
}

func rssFeeds(query scout.DiscoveryQuery, platformConfig json.RawMessage) ([]string, error) {
	if isURL(query.Target) {
		return []string{query.Target}, nil
	}

	var config RSSConfig
	if len(platformConfig) > 0 {
		if err := json.Unmarshal(platformConfig, &config); err != nil {
			return nil, fmt.Errorf("invalid rss platform config: %w", err)
		}
	}
	if len(config.Feeds) == 0 {
		return nil, errors.New("rss platform config has no feeds")
	}
	return config.Feeds, nil
}

func candidateFromItem(feed *gofeed.Feed, item *gofeed.Item) scout.Candidate {
	c := scout.Candidate{
		Title:   strings.TrimSpace(item.Title),
		URL:     strings.TrimSpace(item.Link),
		Snippet: strings.TrimSpace(item.Description),
		Source:  PlatformRSS,
	}

	if item.Author != nil {
		c.Author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		c.Author = item.Authors[0].Name
	}

	if item.PublishedParsed != nil {
		c.PublishedAt = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		c.PublishedAt = item.UpdatedParsed
	}

	metadata := make(map[string]string)
	if feed.Title != "" {
		metadata["feed"] = strings.TrimSpace(feed.Title)
	}
	if item.GUID != "" {
		metadata["guid"] = item.GUID
	}
	if len(item.Categories) > 0 {
		metadata["categories"] = strings.Join(item.Categories, ",")
	}
	if len(metadata) > 0 {
		c.Metadata = metadata
	}

	return c
}

func lowerKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// matchesAnyKeyword is true when there are no keywords to filter on
func matchesAnyKeyword(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
