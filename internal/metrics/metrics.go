// Package metrics holds the Prometheus collectors of the gallery service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RemoteFailures counts remote backend calls whose error was swallowed.
	RemoteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_remote_failures_total",
		Help: "Remote backend calls that failed and were degraded to an empty result.",
	}, []string{"op"})

	// CachedProfiles counts profiles inserted into the local cache from the
	// remote backend.
	CachedProfiles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gallery_cached_profiles_total",
		Help: "Remote profiles inserted into the local user cache.",
	})

	// BackendLatency observes requests to the hosted backend API.
	BackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gallery_backend_request_duration_seconds",
		Help:    "Latency of hosted backend API requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
