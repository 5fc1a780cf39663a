package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"github.com/livinlefevreloca/scout/internal/scout"
)

// Source searches one platform
type Source interface {
	Search(ctx context.Context, query scout.DiscoveryQuery, platformConfig json.RawMessage) ([]scout.Candidate, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context, query scout.DiscoveryQuery, platformConfig json.RawMessage) ([]scout.Candidate, error)

func (f SourceFunc) Search(ctx context.Context, query scout.DiscoveryQuery, platformConfig json.RawMessage) ([]scout.Candidate, error) {
	return f(ctx, query, platformConfig)
}

// Registry maps platform ids to sources
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// NewDefaultRegistry registers the built-in rss and web platforms
func NewDefaultRegistry(config Config) *Registry {
	client := &http.Client{Timeout: config.QueryTimeout}

	r := NewRegistry()
	r.Register(PlatformRSS, NewRSSSource(client, config.UserAgent))
	r.Register(PlatformWeb, NewWebSource(client, config.UserAgent))
	return r
}

// Register adds or replaces the source for platform
func (r *Registry) Register(platform string, source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[platform] = source
}

// Lookup returns the source registered for platform
func (r *Registry) Lookup(platform string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	source, ok := r.sources[platform]
	return source, ok
}

// Has reports whether platform is registered
func (r *Registry) Has(platform string) bool {
	_, ok := r.Lookup(platform)
	return ok
}

// Platforms returns the registered platform ids, sorted
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	platforms := make([]string, 0, len(r.sources))
	for p := range r.sources {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	return platforms
}

// StatusError is a non-2xx response from a provider
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: http %d", e.URL, e.Code)
}

// RateLimited reports whether the provider throttled the request
func (e *StatusError) RateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}

func isRateLimited(err error) bool {
	var status *StatusError
	return errors.As(err, &status) && status.RateLimited()
}

// get performs a GET and returns the body of a 2xx response. The caller
// closes the body.
func get(ctx context.Context, client *http.Client, url, userAgent, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	return resp.Body, nil
}
