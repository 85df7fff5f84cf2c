package translation

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_translation_requests_total",
			Help: "Translation gateway calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_translation_request_duration_seconds",
			Help:    "Duration of provider calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"provider", "outcome"},
	)
)

func recordGatewayCall(provider string, started time.Time, err error) {
	outcome := outcomeLabel(err)
	gatewayRequestsTotal.WithLabelValues(provider, outcome).Inc()
	gatewayRequestDuration.WithLabelValues(provider, outcome).Observe(time.Since(started).Seconds())
}

func recordCacheHit(provider string) {
	gatewayRequestsTotal.WithLabelValues(provider, "cache_hit").Inc()
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrProviderUnavailable):
		return "unavailable"
	case errors.Is(err, ErrUnsupportedLanguage), errors.Is(err, ErrEmptyText):
		return "invalid"
	case errors.Is(err, ErrProviderRejected):
		return "rejected"
	default:
		return "error"
	}
}
