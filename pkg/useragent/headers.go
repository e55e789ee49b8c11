package useragent

import (
	"strings"

	"golang.org/x/text/language"
)

const fallbackAcceptLanguage = "en-US,en;q=0.9"

// AcceptLanguage builds an Accept-Language value preferring lang, e.g.
// "es" becomes "es-ES,es;q=0.9,en;q=0.8". Unparseable tags yield English.
func AcceptLanguage(lang string) string {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil || tag == language.Und {
		return fallbackAcceptLanguage
	}
	base, _ := tag.Base()
	primary := base.String()
	if region, conf := tag.Region(); conf != language.No {
		primary += "-" + region.String()
	}

	parts := []string{primary, base.String() + ";q=0.9"}
	if base.String() != "en" {
		parts = append(parts, "en;q=0.8")
	}
	return strings.Join(parts, ",")
}

// BrowserHeaders returns the navigation headers a desktop browser sends
// alongside its User-Agent.
func BrowserHeaders(lang string) map[string]string {
	return map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language":           AcceptLanguage(lang),
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
	}
}
