package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactscout_fetch_requests_total",
			Help: "Total number of page fetches by outcome",
		},
		[]string{"domain", "outcome", "detection_src"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contactscout_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"domain"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactscout_fetch_bytes_total",
			Help: "Total bytes downloaded across all fetches",
		},
		[]string{"domain"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactscout_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)

	ContactsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactscout_contacts_extracted_total",
			Help: "Contacts extracted from pages, by kind and extraction tier",
		},
		[]string{"kind", "tier"},
	)

	EntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactscout_entries_total",
			Help: "Entries seen by the deduplicator, by decision",
		},
		[]string{"decision"},
	)

	DuplicatesSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contactscout_duplicates_suppressed_total",
			Help: "Contacts dropped because an earlier entry already reported them",
		},
		[]string{"kind"},
	)
)

// RecordFetch updates the fetch metrics. outcome is the status code or a
// failure kind.
func RecordFetch(domain, outcome, detectionSrc string, d time.Duration, bytes int) {
	FetchRequestsTotal.WithLabelValues(domain, outcome, detectionSrc).Inc()
	FetchDuration.WithLabelValues(domain).Observe(d.Seconds())
	FetchBytesTotal.WithLabelValues(domain).Add(float64(bytes))
}

// RecordExtraction counts n contacts of kind ("email", "phone") found by tier.
func RecordExtraction(kind, tier string, n int) {
	if n <= 0 {
		return
	}
	ContactsExtractedTotal.WithLabelValues(kind, tier).Add(float64(n))
}

// RecordDedup counts one deduplicator decision and the contacts it suppressed.
func RecordDedup(accepted bool, emailsSuppressed, phonesSuppressed int) {
	decision := "dropped"
	if accepted {
		decision = "accepted"
	}
	EntriesTotal.WithLabelValues(decision).Inc()
	DuplicatesSuppressedTotal.WithLabelValues("email").Add(float64(emailsSuppressed))
	DuplicatesSuppressedTotal.WithLabelValues("phone").Add(float64(phonesSuppressed))
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv  *http.Server
	addr string
}

// Start listens on port (0 picks a free one) and serves /metrics in the background.
func Start(port int, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return &Server{srv: srv, addr: ln.Addr().String()}, nil
}

// Addr returns the listening address.
func (s *Server) Addr() string { return s.addr }

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
