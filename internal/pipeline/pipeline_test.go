package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/contactscout/internal/dedup"
	"github.com/FranksOps/contactscout/internal/extract"
	"github.com/FranksOps/contactscout/internal/fingerprint"
	"github.com/FranksOps/contactscout/internal/scraper"
	"github.com/FranksOps/contactscout/internal/serp"
	"github.com/PuerkitoBio/goquery"
)

// staticProvider returns a fixed URL list.
type staticProvider struct {
	urls      []string
	err       error
	gotLimit  int
	gotLang   string
	callCount int
}

func (s *staticProvider) Name() string { return "static" }

func (s *staticProvider) Search(_ context.Context, _ string, limit int, lang string) ([]serp.Result, error) {
	s.callCount++
	s.gotLimit, s.gotLang = limit, lang
	if s.err != nil {
		return nil, s.err
	}
	out := make([]serp.Result, len(s.urls))
	for i, u := range s.urls {
		out[i] = serp.Result{URL: u}
	}
	return out, nil
}

const pageA = `<html><body>
<a href="mailto:a@x.com">Write us</a>
<p>Call 2024 or visit us on 12/05/2024</p>
<div class="contact-phone">+34 600 123 456</div>
</body></html>`

const pageB = `<html><body>
<a href="mailto:a@x.com">Mail</a>
<a href="tel:612345678">Call</a>
</body></html>`

func scenarioServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, pageA) })
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, pageB) })
	mux.HandleFunc("/c", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "<p>nothing here</p>") })
	return httptest.NewServer(mux)
}

func newFetcher(t *testing.T) *scraper.Fetcher {
	t.Helper()
	f, err := scraper.NewFetcher(scraper.FetchConfig{Timeout: 2 * time.Second, Fingerprint: fingerprint.ProfileGo})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	t.Cleanup(f.Close)
	return f
}

func TestPipeline_Scenario(t *testing.T) {
	ts := scenarioServer()
	defer ts.Close()

	provider := &staticProvider{urls: []string{ts.URL + "/a", ts.URL + "/b", ts.URL + "/c"}}
	p := New(Config{Language: "es"}, provider, newFetcher(t), extract.New(extract.Options{}), nil)

	entries, err := p.Run(context.Background(), "example business")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.gotLimit != DefaultMaxResults || provider.gotLang != "es" {
		t.Errorf("expected search with limit %d lang es, got %d %q", DefaultMaxResults, provider.gotLimit, provider.gotLang)
	}
	if len(entries) != 2 {
		t.Fatalf("expected entries for A and B, got %d", len(entries))
	}

	a := entries[0]
	if a.URL != ts.URL+"/a" || a.Domain != "127.0.0.1" {
		t.Errorf("unexpected entry A source: %+v", a)
	}
	if fmt.Sprint(a.Contacts.Emails.Values()) != "[a@x.com]" || fmt.Sprint(a.Contacts.Phones.Values()) != "[+34 600 123 456]" {
		t.Errorf("unexpected entry A contacts: %v %v", a.Contacts.Emails.Values(), a.Contacts.Phones.Values())
	}

	survivors := dedup.Aggregate(entries, dedup.NewState())
	if len(survivors) != 2 {
		t.Fatalf("expected both entries to survive dedup, got %d", len(survivors))
	}
	b := survivors[1]
	if !b.Contacts.Emails.Empty() || fmt.Sprint(b.Contacts.Phones.Values()) != "[612345678]" {
		t.Errorf("expected B to keep only its new phone, got %v %v", b.Contacts.Emails.Values(), b.Contacts.Phones.Values())
	}

	st := p.Stats()
	if st.Candidates != 3 || st.PagesWithContacts != 2 || st.FetchFailures["status"] != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestPipeline_SearchFailureIsFatal(t *testing.T) {
	provider := &staticProvider{err: errors.New("captcha")}
	p := New(Config{}, provider, newFetcher(t), nil, nil)

	_, err := p.Run(context.Background(), "q")
	if err == nil || !strings.HasPrefix(err.Error(), "search failed") {
		t.Fatalf("expected search failure, got %v", err)
	}
}

func TestPipeline_NoProvider(t *testing.T) {
	p := New(Config{}, nil, newFetcher(t), nil, nil)
	if _, err := p.Run(context.Background(), "q"); !errors.Is(err, serp.ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestPipeline_EmptyPagesAndFailuresYieldNothing(t *testing.T) {
	ts := scenarioServer()
	defer ts.Close()

	provider := &staticProvider{urls: []string{ts.URL + "/c", ts.URL + "/empty", "http://127.0.0.1:1/closed"}}
	p := New(Config{}, provider, newFetcher(t), nil, nil)

	entries, err := p.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %+v", entries)
	}
	st := p.Stats()
	if st.PagesEmpty != 1 || st.FetchFailures["status"] != 1 || st.FetchFailures["network"] != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestPipeline_CapsCandidates(t *testing.T) {
	ts := scenarioServer()
	defer ts.Close()

	provider := &staticProvider{urls: []string{ts.URL + "/a", ts.URL + "/b"}}
	p := New(Config{MaxResults: 1}, provider, newFetcher(t), nil, nil)

	entries, err := p.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || p.Stats().Candidates != 1 {
		t.Errorf("expected provider output capped to 1, got %d entries", len(entries))
	}
}

// delayedPages answers from memory, delaying earlier URLs longer so that
// parallel completion order is the reverse of rank order.
type delayedPages struct {
	html map[string]string
}

func (d *delayedPages) Page(ctx context.Context, u string) (*scraper.Page, error) {
	n := len(d.html) - strings.Count(u, "x")
	select {
	case <-time.After(time.Duration(n) * 15 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.html[u]))
	if err != nil {
		return nil, err
	}
	return &scraper.Page{URL: u, Doc: doc}, nil
}

func TestPipeline_ConcurrentKeepsRankOrder(t *testing.T) {
	urls := []string{"https://x.example/", "https://xx.example/", "https://xxx.example/", "https://xxxx.example/"}
	pages := &delayedPages{html: map[string]string{}}
	for i, u := range urls {
		pages.html[u] = fmt.Sprintf(`<a href="mailto:shared@x.com">m</a><a href="mailto:own%d@x.com">m</a>`, i)
	}

	p := New(Config{Concurrency: 4}, &staticProvider{urls: urls}, pages, nil, nil)
	entries, err := p.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != len(urls) {
		t.Fatalf("expected %d entries, got %d", len(urls), len(entries))
	}
	for i, e := range entries {
		if e.URL != urls[i] {
			t.Errorf("entry %d: expected %s, got %s", i, urls[i], e.URL)
		}
	}

	survivors := dedup.Aggregate(entries, dedup.NewState())
	if !survivors[0].Contacts.Emails.Has("shared@x.com") {
		t.Errorf("the top-ranked entry must own the shared email")
	}
	for _, s := range survivors[1:] {
		if s.Contacts.Emails.Has("shared@x.com") {
			t.Errorf("%s repeats the shared email", s.URL)
		}
	}
}
