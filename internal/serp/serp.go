// Package serp resolves a free-text query into an ordered list of candidate
// page URLs.
package serp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/FranksOps/contactscout/internal/scraper"
)

// ErrNoProvider is returned by New for an unknown or unconfigured backend.
var ErrNoProvider = errors.New("serp: no search provider")

// Result is one search hit. Order in a result slice is provider rank.
type Result struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Source string `json:"source,omitempty"`
}

// Provider returns at most limit hits for query. lang is a BCP 47 hint
// that backends may ignore.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int, lang string) ([]Result, error)
}

// PageGetter is the slice of *scraper.Fetcher the Google backend needs.
type PageGetter interface {
	Get(ctx context.Context, url string) (*scraper.Page, error)
}

// Config selects and configures a backend.
type Config struct {
	Provider string
	SearxURL string
	SearxKey string
	File     string
	// Pages is used by the google backend.
	Pages PageGetter
}

// New builds the backend named by cfg.Provider.
func New(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "google":
		if cfg.Pages == nil {
			return nil, fmt.Errorf("%w: google needs a page fetcher", ErrNoProvider)
		}
		return &Google{Pages: cfg.Pages}, nil
	case "searxng":
		if cfg.SearxURL == "" {
			return nil, fmt.Errorf("%w: searxng needs search.searx_url", ErrNoProvider)
		}
		return &SearxNG{BaseURL: cfg.SearxURL, APIKey: cfg.SearxKey}, nil
	case "file":
		if cfg.File == "" {
			return nil, fmt.Errorf("%w: file needs search.file", ErrNoProvider)
		}
		return &File{Path: cfg.File}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrNoProvider, cfg.Provider)
	}
}

// collector keeps the first occurrence of each http(s) URL up to limit.
type collector struct {
	limit  int
	source string
	seen   map[string]struct{}
	out    []Result
}

func newCollector(limit int, source string) *collector {
	return &collector{limit: limit, source: source, seen: make(map[string]struct{})}
}

func (c *collector) full() bool { return c.limit > 0 && len(c.out) >= c.limit }

// add reports whether r was kept.
func (c *collector) add(r Result) bool {
	if c.full() {
		return false
	}
	r.URL = strings.TrimSpace(r.URL)
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	if _, dup := c.seen[r.URL]; dup {
		return false
	}
	c.seen[r.URL] = struct{}{}
	r.Title = strings.TrimSpace(r.Title)
	r.Source = c.source
	c.out = append(c.out, r)
	return true
}

// URLs flattens results to their URL strings.
func URLs(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.URL
	}
	return out
}
