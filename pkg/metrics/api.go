package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// APIMetrics provides observability for the directory HTTP API.
type APIMetrics interface {
	// RecordRequest records a completed HTTP request.
	//
	// Parameters:
	//   - route: route pattern (e.g. "/api/contacts")
	//   - status: HTTP status code
	//   - duration: time taken to serve the request
	RecordRequest(route string, status int, duration time.Duration)
}

type apiMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewAPIMetrics creates a new Prometheus-backed APIMetrics instance, or a
// no-op implementation when metrics are disabled.
func NewAPIMetrics() APIMetrics {
	if !IsEnabled() {
		return &noopAPIMetrics{}
	}

	reg := GetRegistry()

	return &apiMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "squawk_api_requests_total",
				Help: "Total number of HTTP API requests by route and status",
			},
			[]string{"route", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "squawk_api_request_duration_seconds",
				Help: "Duration of HTTP API requests in seconds",
				Buckets: []float64{
					0.001, 0.005, 0.01, 0.025, 0.05,
					0.1, 0.25, 0.5, 1.0, 2.5, 5.0,
				},
			},
			[]string{"route"},
		),
	}
}

func (m *apiMetrics) RecordRequest(route string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(route, statusLabel(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

type noopAPIMetrics struct{}

func (*noopAPIMetrics) RecordRequest(string, int, time.Duration) {}
