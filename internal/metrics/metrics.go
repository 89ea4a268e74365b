// Package metrics exposes Prometheus instrumentation for API traffic and search progress.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wikichain_api_requests_total",
		Help: "MediaWiki API requests by action and outcome.",
	}, []string{"action", "outcome"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wikichain_api_request_seconds",
		Help:    "Latency of MediaWiki API requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wikichain_title_cache_lookups_total",
		Help: "Canonical title cache lookups by result (hit or miss).",
	}, []string{"result"})

	NodesExpandedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wikichain_nodes_expanded_total",
		Help: "Frontier nodes expanded by direction.",
	}, []string{"direction"})

	RateLimitWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wikichain_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting for a rate limit token.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	EdgesBlacklistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wikichain_edges_blacklisted_total",
		Help: "Edges excluded after failed verification.",
	})

	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wikichain_search_seconds",
		Help:    "Duration of whole chain searches by outcome.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"outcome"})
)

// ObserveAPI records one API request.
func ObserveAPI(action string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	APIRequestsTotal.WithLabelValues(action, outcome).Inc()
	APIRequestDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until the server fails. It returns nil on a
// clean shutdown.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
