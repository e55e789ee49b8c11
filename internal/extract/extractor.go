package extract

import (
	"strings"

	"github.com/FranksOps/contactscout/internal/contact"
	"github.com/PuerkitoBio/goquery"
	"github.com/nyaruka/phonenumbers"
)

// Tier identifies which extraction pass produced a set of contacts.
type Tier int

const (
	TierNone     Tier = iota // nothing found
	TierScheme               // mailto:/tel: links
	TierFallback             // free-text or keyword-scoped regex
)

func (t Tier) String() string {
	switch t {
	case TierScheme:
		return "scheme"
	case TierFallback:
		return "fallback"
	default:
		return "none"
	}
}

// DefaultPhoneKeywords scope the phone fallback to markup hinting at a number.
var DefaultPhoneKeywords = []string{"phone", "number", "telefono", "numero"}

// DefaultEmailIgnoreSuffixes filter asset names that match the email pattern.
var DefaultEmailIgnoreSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js"}

// Options tunes the extraction heuristics.
type Options struct {
	// PhoneMinDigits is the digit floor for fallback phone matches.
	PhoneMinDigits int
	// PhoneKeywords select the elements searched by the phone fallback.
	PhoneKeywords []string
	// PhoneRegion, when set, renders valid numbers in E.164 using that
	// region as the default country code.
	PhoneRegion string
	// EmailIgnoreSuffixes drop free-text email matches with these endings.
	EmailIgnoreSuffixes []string
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		PhoneMinDigits:      10,
		PhoneKeywords:       DefaultPhoneKeywords,
		EmailIgnoreSuffixes: DefaultEmailIgnoreSuffixes,
	}
}

// Findings is a ContactSet annotated with the tier that produced each half.
type Findings struct {
	contact.ContactSet
	EmailTier Tier
	PhoneTier Tier
}

// Extractor pulls contact data out of parsed pages. It holds no mutable state
// and is safe for concurrent use.
type Extractor struct {
	opts Options
}

// New creates an Extractor. Zero-valued options fall back to the defaults.
func New(opts Options) *Extractor {
	def := DefaultOptions()
	if opts.PhoneMinDigits <= 0 {
		opts.PhoneMinDigits = def.PhoneMinDigits
	}
	if len(opts.PhoneKeywords) == 0 {
		opts.PhoneKeywords = def.PhoneKeywords
	}
	if opts.EmailIgnoreSuffixes == nil {
		opts.EmailIgnoreSuffixes = def.EmailIgnoreSuffixes
	}
	opts.PhoneRegion = strings.ToUpper(strings.TrimSpace(opts.PhoneRegion))
	return &Extractor{opts: opts}
}

// Extract returns the emails and phone numbers found in doc.
func (e *Extractor) Extract(doc *goquery.Document) contact.ContactSet {
	return e.Analyze(doc).ContactSet
}

// Analyze is Extract plus the tier each result came from.
func (e *Extractor) Analyze(doc *goquery.Document) Findings {
	var f Findings
	if doc == nil {
		return f
	}

	f.Emails = e.schemeEmails(doc)
	if !f.Emails.Empty() {
		f.EmailTier = TierScheme
	} else if f.Emails = e.textEmails(doc); !f.Emails.Empty() {
		f.EmailTier = TierFallback
	}

	f.Phones = e.schemePhones(doc)
	if !f.Phones.Empty() {
		f.PhoneTier = TierScheme
	} else if f.Phones = e.scopedPhones(doc); !f.Phones.Empty() {
		f.PhoneTier = TierFallback
	}

	return f
}

func (e *Extractor) schemeEmails(doc *goquery.Document) contact.Set {
	var set contact.Set
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		for _, addr := range MailtoAddresses(href) {
			set.Add(addr)
		}
	})
	return set
}

func (e *Extractor) textEmails(doc *goquery.Document) contact.Set {
	text := RenderedText(doc.Nodes...)
	return contact.NewSet(EmailsFromText(text, e.opts.EmailIgnoreSuffixes)...)
}

func (e *Extractor) schemePhones(doc *goquery.Document) contact.Set {
	var set contact.Set
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if num, ok := TelNumber(href); ok {
			set.Add(e.normalizePhone(num))
		}
	})
	return set
}

func (e *Extractor) scopedPhones(doc *goquery.Document) contact.Set {
	keywords := e.opts.PhoneKeywords
	scoped := doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return HasKeywordAttribute(s.Get(0), keywords)
	})
	scoped = scoped.AddSelection(doc.Find("header, footer"))

	var set contact.Set
	scoped.Each(func(_ int, s *goquery.Selection) {
		for _, candidate := range PhoneCandidates(RenderedText(s.Nodes...)) {
			if !KeepPhone(candidate, e.opts.PhoneMinDigits) {
				continue
			}
			set.Add(e.normalizePhone(candidate))
		}
	})
	return set
}

// normalizePhone renders raw as E.164 when a region is configured and the
// number validates; otherwise raw is returned unchanged.
func (e *Extractor) normalizePhone(raw string) string {
	if e.opts.PhoneRegion == "" {
		return raw
	}
	num, err := phonenumbers.Parse(raw, e.opts.PhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
