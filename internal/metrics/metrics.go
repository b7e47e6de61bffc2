package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "castdex_requests_total",
		Help: "Total logical indexer requests per endpoint",
	}, []string{"endpoint"})
	CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "castdex_cache_hits_total",
		Help: "Total responses served from the TTL cache",
	})
	Retries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "castdex_retries_total",
		Help: "Total transient-failure retry attempts per endpoint",
	}, []string{"endpoint"})
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "castdex_request_duration_seconds",
		Help:    "Upstream request attempt duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)

func init() {
	prometheus.MustRegister(Requests, CacheHits, Retries, RequestDuration)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, nil) }()
}

// IncRequest counts one logical request against an endpoint.
func IncRequest(endpoint string) { Requests.WithLabelValues(endpoint).Inc() }

// IncCacheHit counts one cache-served response.
func IncCacheHit() { CacheHits.Inc() }

// IncRetry increments the retry counter for an endpoint.
func IncRetry(endpoint string) { Retries.WithLabelValues(endpoint).Inc() }

// ObserveRequest records one upstream attempt duration.
func ObserveRequest(endpoint string, d time.Duration) {
	RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}
