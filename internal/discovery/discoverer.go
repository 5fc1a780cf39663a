package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/livinlefevreloca/scout/internal/scout"
)

// Result is the merged output of a plan
type Result struct {
	Candidates []scout.Candidate
	// Failures holds one *scout.DiscoveryError per failed query
	Failures []error
	Queries  int
}

// Discoverer runs discovery queries against the registered sources
type Discoverer struct {
	registry *Registry
	config   Config
	logger   *slog.Logger
}

func NewDiscoverer(registry *Registry, config Config, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		registry: registry,
		config:   config,
		logger:   logger,
	}
}

// Registry returns the source registry
func (d *Discoverer) Registry() *Registry {
	return d.registry
}

// Discover runs one query under the per-query timeout. Every failure is
// returned as *scout.DiscoveryError.
func (d *Discoverer) Discover(ctx context.Context, sc *scout.Scout, query scout.DiscoveryQuery) ([]scout.Candidate, error) {
	source, ok := d.registry.Lookup(query.Platform)
	if !ok {
		return nil, &scout.DiscoveryError{
			Query: query.Target,
			Err:   fmt.Errorf("no source registered for platform %q", query.Platform),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.QueryTimeout)
	defer cancel()

	candidates, err := source.Search(ctx, query, sc.PlatformConfig)
	if err != nil {
		return nil, &scout.DiscoveryError{
			Query:       query.Target,
			RateLimited: isRateLimited(err),
			Err:         err,
		}
	}

	return candidates, nil
}

// DiscoverAll runs the plan concurrently and merges the results in plan
// order, keeping the first occurrence of each normalized URL and truncating
// to the scout's max_results. Candidates leave with their normalized URL,
// the identity results are stored under. Failed queries are skipped; only when every
// query fails is an error returned.
func (d *Discoverer) DiscoverAll(ctx context.Context, sc *scout.Scout, plan []scout.DiscoveryQuery) (Result, error) {
	result := Result{Queries: len(plan)}
	if len(plan) == 0 {
		return result, nil
	}

	perQuery := make([][]scout.Candidate, len(plan))
	errs := make([]error, len(plan))

	var g errgroup.Group
	g.SetLimit(d.config.MaxConcurrentQueries)
	for i, query := range plan {
		g.Go(func() error {
			perQuery[i], errs[i] = d.Discover(ctx, sc, query)
			return nil
		})
	}
	g.Wait()

	seen := make(map[string]struct{})
	for i, query := range plan {
		if errs[i] != nil {
			d.logger.Warn("discovery query failed",
				"scout_id", sc.ID,
				"platform", query.Platform,
				"query", query.Target,
				"error", errs[i])
			result.Failures = append(result.Failures, errs[i])
			continue
		}

		for _, c := range perQuery[i] {
			key := normalizeURL(c.URL)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			c.URL = key
			result.Candidates = append(result.Candidates, c)
		}
	}

	if len(result.Failures) == len(plan) {
		return result, &scout.DiscoveryError{
			Err: fmt.Errorf("all %d queries failed: %w", len(plan), errors.Join(result.Failures...)),
		}
	}

	if sc.MaxResults > 0 && len(result.Candidates) > sc.MaxResults {
		result.Candidates = result.Candidates[:sc.MaxResults]
	}

	d.logger.Debug("discovery complete",
		"scout_id", sc.ID,
		"queries", len(plan),
		"failed", len(result.Failures),
		"candidates", len(result.Candidates))

	return result, nil
}

// normalizeURL builds the dedup key of a candidate: scheme and host are
// lowercased, the fragment, tracking parameters and a trailing slash are
// dropped. Unparseable URLs fall back to their trimmed text.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if strings.HasPrefix(strings.ToLower(key), "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""

	return u.String()
}
