package extract

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

const (
	mailScheme = "mailto:"
	telScheme  = "tel:"
)

var (
	emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[\d\s\-()]{8,18}`)
	spaceRun     = regexp.MustCompile(`\s+`)
)

// StripScheme removes a case-insensitive scheme prefix such as "mailto:" from
// href and trims the remainder. ok is false when href does not carry the scheme.
func StripScheme(href, scheme string) (value string, ok bool) {
	href = strings.TrimSpace(href)
	if len(href) < len(scheme) || !strings.EqualFold(href[:len(scheme)], scheme) {
		return "", false
	}
	return strings.TrimSpace(href[len(scheme):]), true
}

// MailtoAddresses returns the addresses declared by a mailto: href. Header
// fields after '?' are dropped and comma-separated recipients are split.
func MailtoAddresses(href string) []string {
	v, ok := StripScheme(href, mailScheme)
	if !ok {
		return nil
	}
	if i := strings.IndexByte(v, '?'); i >= 0 {
		v = v[:i]
	}
	if unescaped, err := url.PathUnescape(v); err == nil {
		v = unescaped
	}
	var out []string
	for _, addr := range strings.Split(v, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// TelNumber returns the number declared by a tel: href.
func TelNumber(href string) (string, bool) {
	v, ok := StripScheme(href, telScheme)
	if !ok || v == "" {
		return "", false
	}
	if unescaped, err := url.PathUnescape(v); err == nil {
		v = unescaped
	}
	return strings.TrimSpace(v), true
}

// EmailsFromText runs the email pattern over free text. Matches ending in one
// of ignoreSuffixes (image names like logo@2x.png) are dropped.
func EmailsFromText(text string, ignoreSuffixes []string) []string {
	var out []string
	for _, m := range emailPattern.FindAllString(text, -1) {
		if hasSuffixFold(m, ignoreSuffixes) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func hasSuffixFold(s string, suffixes []string) bool {
	lower := strings.ToLower(s)
	for _, suf := range suffixes {
		if suf != "" && strings.HasSuffix(lower, strings.ToLower(suf)) {
			return true
		}
	}
	return false
}

// PhoneCandidates returns the digit clusters in text that look like phone
// numbers, lightly cleaned. No digit-count filtering happens here.
func PhoneCandidates(text string) []string {
	var out []string
	for _, m := range phonePattern.FindAllString(text, -1) {
		if c := CleanPhone(m); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// CleanPhone trims surrounding whitespace and dangling hyphens and collapses
// internal whitespace runs to a single space.
func CleanPhone(s string) string {
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.Trim(s, " -")
}

// DigitCount returns the number of decimal digits in s.
func DigitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// KeepPhone reports whether candidate has at least minDigits digits.
func KeepPhone(candidate string, minDigits int) bool {
	return DigitCount(candidate) >= minDigits
}

// HasKeywordAttribute reports whether the element's class or id value, or the
// name of any of its attributes, contains one of keywords. Matching is
// case-insensitive.
func HasKeywordAttribute(n *html.Node, keywords []string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		val := ""
		if key == "class" || key == "id" {
			val = strings.ToLower(attr.Val)
		}
		for _, kw := range keywords {
			kw = strings.ToLower(kw)
			if kw == "" {
				continue
			}
			if strings.Contains(key, kw) || (val != "" && strings.Contains(val, kw)) {
				return true
			}
		}
	}
	return false
}

// RenderedText returns the visible text under the given nodes. Text nodes are
// joined with a space so adjacent elements do not fuse into one token, and
// script/style content is skipped.
func RenderedText(nodes ...*html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			t := strings.TrimFunc(n.Data, unicode.IsSpace)
			if t == "" {
				return
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(t)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		if n != nil {
			walk(n)
		}
	}
	return b.String()
}
