package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/contactscout/internal/bypass"
	"github.com/FranksOps/contactscout/internal/fingerprint"
	"github.com/FranksOps/contactscout/internal/metrics"
	"github.com/FranksOps/contactscout/pkg/httpclient"
	"github.com/FranksOps/contactscout/pkg/proxy"
	"github.com/FranksOps/contactscout/pkg/ratelimit"
	"github.com/FranksOps/contactscout/pkg/useragent"
	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRedirects = 10
	DefaultMaxBodyBytes = 5 << 20
)

// FetchConfig configures how pages are requested.
type FetchConfig struct {
	Timeout time.Duration
	// MaxRedirects caps redirect hops; 0 selects the default, negative disables following.
	MaxRedirects int
	MaxBodyBytes int64
	UseCookieJar bool
	// Language is the BCP 47 tag advertised in Accept-Language.
	Language  string
	ProxyPool *proxy.Pool
	UAPool    *useragent.Pool
	// RandomUA picks agents at random instead of round-robin.
	RandomUA    bool
	Fingerprint fingerprint.Profile
	Limiter     *ratelimit.Limiter
	// RespectRobots makes Page consult robots.txt before fetching.
	RespectRobots bool
	// RobotsAgent is the product token matched against robots.txt groups.
	RobotsAgent string
	Logger      *slog.Logger
}

// Result is the raw outcome of one GET. Err is nil only for 2xx responses
// whose body was read in full.
type Result struct {
	ID           string
	URL          string
	StatusCode   int
	Header       http.Header
	Body         []byte
	Duration     time.Duration
	DetectedBot  bool
	DetectionSrc string
	CreatedAt    time.Time
	Err          *FetchError
}

// OK reports whether the fetch produced a usable page body.
func (r *Result) OK() bool { return r != nil && r.Err == nil }

// Page is a successfully fetched and parsed document.
type Page struct {
	URL    string
	Doc    *goquery.Document
	Result *Result
}

// Fetcher performs single URL fetches with browser-like headers.
// A single client is held across requests so connections and cookies are reused.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	robots *RobotsTxtAuditor
}

// NewFetcher initializes a new Fetcher with the given configuration.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.RobotsAgent == "" {
		cfg.RobotsAgent = "contactscout"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// Per-request proxy rotation: the chosen proxy travels in the request context.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		if ip := net.ParseIP(req.URL.Hostname()); ip != nil && ip.IsLoopback() {
			return nil, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	f := &Fetcher{config: cfg, client: client}
	if cfg.RespectRobots {
		f.robots = NewRobotsTxtAuditor(f, cfg.Logger)
	}
	return f, nil
}

// Close releases idle connections held by the fetcher.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

// Fetch issues a single GET for targetURL. It never returns a nil Result;
// every failure is recorded in Result.Err.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) *Result {
	start := time.Now()
	result := &Result{
		ID:        uuid.New().String(),
		URL:       targetURL,
		CreatedAt: start.UTC(),
	}
	defer func() {
		result.Duration = time.Since(start)
		recordFetch(result)
	}()

	u, err := url.Parse(targetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("unsupported url %q", targetURL)
		}
		result.Err = &FetchError{URL: targetURL, Kind: KindInvalidURL, Err: err}
		return result
	}

	if f.config.Limiter != nil {
		if err := f.config.Limiter.Wait(ctx); err != nil {
			result.Err = &FetchError{URL: targetURL, Kind: classifyTransport(err), Err: err}
			return result
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		result.Err = &FetchError{URL: targetURL, Kind: KindInvalidURL, Err: err}
		return result
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		if activeProxy = f.config.ProxyPool.Next(); activeProxy != nil {
			req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
		}
	}

	ua := f.config.UAPool.GetSequential
	if f.config.RandomUA {
		ua = f.config.UAPool.GetRandom
	}
	req.Header.Set("User-Agent", ua())
	for k, v := range useragent.BrowserHeaders(f.config.Language) {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.String()).Inc()
		}
		result.Err = &FetchError{URL: targetURL, Kind: classifyTransport(err), Err: err}
		return result
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	result.StatusCode = resp.StatusCode
	result.Header = resp.Header

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	result.Body = body
	if err != nil {
		result.Err = &FetchError{URL: targetURL, Kind: classifyRead(err), StatusCode: resp.StatusCode, Err: err}
		return result
	}

	result.DetectedBot, result.DetectionSrc = bypass.Analyze(bypass.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, bypass.DefaultDetectors())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Err = &FetchError{
			URL:          targetURL,
			Kind:         KindStatus,
			StatusCode:   resp.StatusCode,
			DetectionSrc: result.DetectionSrc,
		}
	}
	return result
}

// Page checks robots.txt when enabled, then fetches and parses targetURL.
// A non-nil error is always a *FetchError.
func (f *Fetcher) Page(ctx context.Context, targetURL string) (*Page, error) {
	if f.robots != nil {
		allowed, err := f.robots.IsAllowed(ctx, targetURL, f.config.RobotsAgent)
		if err != nil {
			return nil, &FetchError{URL: targetURL, Kind: KindInvalidURL, Err: err}
		}
		if !allowed {
			return nil, &FetchError{URL: targetURL, Kind: KindBlockedByRobots}
		}
	}

	return f.Get(ctx, targetURL)
}

// Get fetches and parses targetURL without consulting robots.txt. Search
// backends use it for result pages.
func (f *Fetcher) Get(ctx context.Context, targetURL string) (*Page, error) {
	res := f.Fetch(ctx, targetURL)
	if res.Err != nil {
		return nil, res.Err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, &FetchError{URL: targetURL, Kind: KindParse, StatusCode: res.StatusCode, Err: err}
	}
	return &Page{URL: targetURL, Doc: doc, Result: res}, nil
}

func classifyRead(err error) FailureKind {
	if classifyTransport(err) == KindTimeout {
		return KindTimeout
	}
	return KindRead
}

func recordFetch(res *Result) {
	domain := ""
	if u, err := url.Parse(res.URL); err == nil {
		domain = u.Hostname()
	}
	outcome := fmt.Sprint(res.StatusCode)
	if res.Err != nil && res.Err.Kind != KindStatus {
		outcome = string(res.Err.Kind)
	}
	metrics.RecordFetch(domain, outcome, res.DetectionSrc, res.Duration, len(res.Body))
}
