package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// RobotsTxtAuditor fetches and caches robots.txt per host and answers
// whether a URL may be requested.
type RobotsTxtAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger
	mu      sync.Mutex
	cache   map[string]*robotstxt.RobotsData
	// inflight collapses concurrent fetches of the same host's robots.txt.
	inflight singleflight.Group
}

// NewRobotsTxtAuditor creates a new instance.
func NewRobotsTxtAuditor(fetcher *Fetcher, logger *slog.Logger) *RobotsTxtAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsTxtAuditor{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed determines if targetURL is allowed for userAgent. Hosts whose
// robots.txt cannot be fetched or parsed are treated as allowing everything.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	data := r.rules(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true, nil
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, userAgent), nil
}

// rules returns the cached rules for host, fetching them at most once.
// The cache lock is never held across the network fetch.
func (r *RobotsTxtAuditor) rules(ctx context.Context, host string) *robotstxt.RobotsData {
	if data, ok := r.cached(host); ok {
		return data
	}

	v, _, _ := r.inflight.Do(host, func() (any, error) {
		if data, ok := r.cached(host); ok {
			return data, nil
		}
		data := r.fetch(ctx, host)
		r.mu.Lock()
		r.cache[host] = data
		r.mu.Unlock()
		return data, nil
	})
	data, _ := v.(*robotstxt.RobotsData)
	return data
}

func (r *RobotsTxtAuditor) cached(host string) (*robotstxt.RobotsData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.cache[host]
	return data, ok
}

func (r *RobotsTxtAuditor) fetch(ctx context.Context, host string) *robotstxt.RobotsData {
	res := r.fetcher.Fetch(ctx, host+"/robots.txt")
	switch {
	case res.StatusCode >= 400 && res.StatusCode < 500:
		// No robots.txt: everything allowed.
		return nil
	case res.Err != nil:
		r.logger.Debug("robots.txt fetch failed, defaulting to allow", "host", host, "err", res.Err)
		return nil
	}
	data, err := robotstxt.FromBytes(res.Body)
	if err != nil {
		r.logger.Debug("robots.txt parse failed, defaulting to allow", "host", host, "err", err)
		return nil
	}
	return data
}
