package serp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	googleBaseURL  = "https://www.google.com/search"
	googlePageSize = 10
)

// Google scrapes Google result pages through the shared fetcher, so the
// fetcher's fingerprint, rate limit and proxies apply.
type Google struct {
	Pages PageGetter
	// BaseURL overrides the search endpoint.
	BaseURL string
}

func (g *Google) Name() string { return "google" }

// Search walks result pages until limit unique URLs are collected or a page
// contributes nothing new.
func (g *Google) Search(ctx context.Context, query string, limit int, lang string) ([]Result, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive: %d", limit)
	}
	base := g.BaseURL
	if base == "" {
		base = googleBaseURL
	}

	c := newCollector(limit, g.Name())
	for start := 0; !c.full(); start += googlePageSize {
		pageURL, err := googleURL(base, query, lang, start)
		if err != nil {
			return nil, err
		}
		page, err := g.Pages.Get(ctx, pageURL)
		if err != nil {
			if start > 0 && len(c.out) > 0 {
				break
			}
			return nil, fmt.Errorf("google page %d: %w", start/googlePageSize, err)
		}

		added := 0
		for _, r := range parseGoogle(page.Doc) {
			if c.add(r) {
				added++
			}
		}
		if added == 0 {
			break
		}
	}
	return c.out, nil
}

func googleURL(base, query, lang string, start int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse google base url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("num", strconv.Itoa(googlePageSize+2))
	if lang != "" {
		q.Set("hl", lang)
	}
	if start > 0 {
		q.Set("start", strconv.Itoa(start))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseGoogle pulls organic result links from a result page. Links come
// either wrapped as /url?q=<target> or as direct hrefs.
func parseGoogle(doc *goquery.Document) []Result {
	if doc == nil {
		return nil
	}
	var out []Result
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		target := resultTarget(href)
		if target == "" {
			return
		}
		title := strings.TrimSpace(a.Find("h3").First().Text())
		out = append(out, Result{URL: target, Title: title})
	})
	return out
}

func resultTarget(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		href = u.Query().Get("q")
		if href == "" {
			href = u.Query().Get("url")
		}
	}
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || isGoogleHost(u.Hostname()) {
		return ""
	}
	return href
}

func isGoogleHost(host string) bool {
	host = strings.ToLower(host)
	for _, marker := range []string{"google.", "googleusercontent.com", "gstatic.com", "youtube.com", "blogger.com"} {
		if strings.Contains(host, marker) {
			return true
		}
	}
	return false
}
