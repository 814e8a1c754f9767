// Package metrics
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PagesProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quoteminer_pages_processed_total",
			Help: "Total number of dump pages that went through full processing.",
		},
	)
	PagesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoteminer_pages_skipped_total",
			Help: "Total number of dump pages skipped, labeled by reason.",
		},
		[]string{"reason"},
	)
	GeminiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoteminer_gemini_requests_total",
			Help: "Total number of Gemini API calls, labeled by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	RetryWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoteminer_retry_waits_total",
			Help: "Total number of backoff waits performed, labeled by operation.",
		},
		[]string{"op"},
	)
	QuotesAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quoteminer_quotes_accepted_total",
			Help: "Total number of quote candidates accepted and persisted.",
		},
	)
	QuotesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoteminer_quotes_rejected_total",
			Help: "Total number of quote candidates rejected, labeled by reason.",
		},
		[]string{"reason"},
	)
	LanguageMismatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quoteminer_quote_language_mismatches_total",
			Help: "Accepted quotes whose detected language differs from the dump language.",
		},
	)
	AuthorCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoteminer_author_cache_requests_total",
			Help: "Author classification cache lookups, labeled hit or miss.",
		},
		[]string{"result"},
	)
	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_name"},
	)
)

func init() {
	prometheus.MustRegister(PagesProcessed)
	prometheus.MustRegister(PagesSkipped)
	prometheus.MustRegister(GeminiRequests)
	prometheus.MustRegister(RetryWaits)
	prometheus.MustRegister(QuotesAccepted)
	prometheus.MustRegister(QuotesRejected)
	prometheus.MustRegister(LanguageMismatches)
	prometheus.MustRegister(AuthorCacheHits)
	prometheus.MustRegister(DBQueryDuration)
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Exposing Prometheus metrics", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
