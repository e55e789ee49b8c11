package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureKind classifies why a page could not be used.
type FailureKind string

const (
	KindInvalidURL      FailureKind = "invalid_url"
	KindNetwork         FailureKind = "network"
	KindTimeout         FailureKind = "timeout"
	KindStatus          FailureKind = "status"
	KindRead            FailureKind = "read"
	KindParse           FailureKind = "parse"
	KindBlockedByRobots FailureKind = "blocked_by_robots"
)

// FetchError is the typed failure for a single URL. Callers treat it as
// "no contacts found" and move on.
type FetchError struct {
	URL        string
	Kind       FailureKind
	StatusCode int
	// DetectionSrc names the bot protection that challenged the request, if any.
	DetectionSrc string
	Err          error
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == KindStatus && e.DetectionSrc != "":
		return fmt.Sprintf("%s: status %d (challenged by %s)", e.URL, e.StatusCode, e.DetectionSrc)
	case e.Kind == KindStatus:
		return fmt.Sprintf("%s: status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.URL, e.Kind)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err carries a *FetchError and returns it.
func IsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// classifyTransport maps a client error to network or timeout.
func classifyTransport(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}
