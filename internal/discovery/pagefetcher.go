package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PageFetcher loads the readable text of a candidate page. Texts are cached
// per URL for PageCacheTTL.
type PageFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int
	cache     *expirable.LRU[string, string]
	logger    *slog.Logger
}

func NewPageFetcher(config Config, logger *slog.Logger) *PageFetcher {
	return NewPageFetcherWithClient(&http.Client{Timeout: config.QueryTimeout}, config, logger)
}

func NewPageFetcherWithClient(client *http.Client, config Config, logger *slog.Logger) *PageFetcher {
	return &PageFetcher{
		client:    client,
		userAgent: config.UserAgent,
		maxBytes:  config.MaxPageBytes,
		cache:     expirable.NewLRU[string, string](config.PageCacheSize, nil, config.PageCacheTTL),
		logger:    logger,
	}
}

// PageText returns the page's visible text, truncated to max_page_bytes
func (p *PageFetcher) PageText(ctx context.Context, pageURL string) (string, error) {
	if text, ok := p.cache.Get(pageURL); ok {
		return text, nil
	}

	body, err := get(ctx, p.client, pageURL, p.userAgent, "text/html")
	if err != nil {
		return "", err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer").Remove()

	text := collapseSpace(doc.Find("body").Text())
	if text == "" {
		text = collapseSpace(doc.Text())
	}
	text = truncateUTF8(text, p.maxBytes)

	p.cache.Add(pageURL, text)
	p.logger.Debug("fetched page text", "url", pageURL, "bytes", len(text))
	return text, nil
}

// CacheLen returns the number of cached pages
func (p *PageFetcher) CacheLen() int {
	return p.cache.Len()
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	for !utf8.ValidString(s) && len(s) > 0 {
		s = s[:len(s)-1]
	}
	return s
}
