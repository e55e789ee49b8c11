// Package pipeline turns a query into per-page contact entries: search,
// then fetch and extract each candidate URL in rank order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/FranksOps/contactscout/internal/contact"
	"github.com/FranksOps/contactscout/internal/extract"
	"github.com/FranksOps/contactscout/internal/metrics"
	"github.com/FranksOps/contactscout/internal/scraper"
	"github.com/FranksOps/contactscout/internal/serp"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxResults caps how many candidate URLs one run considers.
const DefaultMaxResults = 30

// PageSource fetches and parses one URL. *scraper.Fetcher satisfies it.
type PageSource interface {
	Page(ctx context.Context, url string) (*scraper.Page, error)
}

// Config tunes a run.
type Config struct {
	MaxResults int
	Language   string
	// Concurrency > 1 fetches pages in parallel; entries still come back
	// in search-rank order.
	Concurrency int
}

// Stats summarises what happened during Run.
type Stats struct {
	Candidates        int            `json:"candidates"`
	FetchFailures     map[string]int `json:"fetch_failures"`
	PagesWithContacts int            `json:"pages_with_contacts"`
	PagesEmpty        int            `json:"pages_empty"`
	SearchDuration    time.Duration  `json:"search_duration"`
	FetchDuration     time.Duration  `json:"fetch_duration"`
}

// Pipeline wires a search provider to a page source and an extractor.
type Pipeline struct {
	cfg       Config
	provider  serp.Provider
	pages     PageSource
	extractor *extract.Extractor
	logger    *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// New returns a Pipeline. A nil extractor uses the default heuristics and a
// nil logger uses slog.Default().
func New(cfg Config, provider serp.Provider, pages PageSource, extractor *extract.Extractor, logger *slog.Logger) *Pipeline {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if extractor == nil {
		extractor = extract.New(extract.Options{})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		provider:  provider,
		pages:     pages,
		extractor: extractor,
		logger:    logger,
	}
}

// Run searches for query and returns one entry per candidate page that
// yielded at least one contact, in search-rank order. Only a search
// failure is returned as an error; page failures are logged and skipped.
func (p *Pipeline) Run(ctx context.Context, query string) ([]contact.Entry, error) {
	if p.provider == nil {
		return nil, serp.ErrNoProvider
	}
	if p.pages == nil {
		return nil, errors.New("pipeline: nil page source")
	}
	p.resetStats()

	searchStart := time.Now()
	results, err := p.provider.Search(ctx, query, p.cfg.MaxResults, p.cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(results) > p.cfg.MaxResults {
		results = results[:p.cfg.MaxResults]
	}
	urls := serp.URLs(results)

	p.mu.Lock()
	p.stats.Candidates = len(urls)
	p.stats.SearchDuration = time.Since(searchStart)
	p.mu.Unlock()

	p.logger.Info("search complete", "provider", p.provider.Name(), "query", query, "candidates", len(urls))

	fetchStart := time.Now()
	found := make([]*contact.Entry, len(urls))
	if p.cfg.Concurrency == 1 {
		for i, u := range urls {
			if ctx.Err() != nil {
				break
			}
			found[i] = p.visit(ctx, u)
		}
	} else {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.Concurrency)
		for i, u := range urls {
			g.Go(func() error {
				found[i] = p.visit(gCtx, u)
				return nil
			})
		}
		_ = g.Wait()
	}

	p.mu.Lock()
	p.stats.FetchDuration = time.Since(fetchStart)
	p.mu.Unlock()

	entries := make([]contact.Entry, 0, len(found))
	for _, e := range found {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return entries, nil
}

// visit fetches and extracts one URL. It returns nil when the page failed
// or had no contacts.
func (p *Pipeline) visit(ctx context.Context, rawURL string) *contact.Entry {
	page, err := p.pages.Page(ctx, rawURL)
	if err != nil {
		p.recordFailure(rawURL, err)
		return nil
	}

	f := p.extractor.Analyze(page.Doc)
	metrics.RecordExtraction("email", f.EmailTier.String(), f.Emails.Len())
	metrics.RecordExtraction("phone", f.PhoneTier.String(), f.Phones.Len())

	if f.Empty() {
		p.mu.Lock()
		p.stats.PagesEmpty++
		p.mu.Unlock()
		p.logger.Debug("no contacts found", "url", rawURL)
		return nil
	}

	p.mu.Lock()
	p.stats.PagesWithContacts++
	p.mu.Unlock()
	p.logger.Debug("contacts found",
		"url", rawURL,
		"emails", f.Emails.Len(),
		"email_tier", f.EmailTier.String(),
		"phones", f.Phones.Len(),
		"phone_tier", f.PhoneTier.String(),
	)

	return &contact.Entry{
		Domain:   domainOf(rawURL),
		URL:      rawURL,
		Contacts: f.ContactSet,
	}
}

func (p *Pipeline) recordFailure(rawURL string, err error) {
	kind := "other"
	attrs := []any{"url", rawURL, "err", err}
	if fe, ok := scraper.IsFetchError(err); ok {
		kind = string(fe.Kind)
		attrs = append(attrs, "kind", kind)
		if fe.StatusCode != 0 {
			attrs = append(attrs, "status", fe.StatusCode)
		}
		if fe.DetectionSrc != "" {
			attrs = append(attrs, "detection", fe.DetectionSrc)
		}
	}
	p.logger.Warn("fetch failed", attrs...)

	p.mu.Lock()
	p.stats.FetchFailures[kind]++
	p.mu.Unlock()
}

func (p *Pipeline) resetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = Stats{FetchFailures: make(map[string]int)}
}

// Stats returns a copy of the counters from the latest Run.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.FetchFailures = make(map[string]int, len(p.stats.FetchFailures))
	for k, v := range p.stats.FetchFailures {
		s.FetchFailures[k] = v
	}
	return s
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
