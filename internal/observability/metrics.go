package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus counters for the HTTP surface and the integration layer.
// All methods are safe on a nil receiver.
type Metrics struct {
	requestCount    *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	errorCount      *prometheus.CounterVec
	classifications *prometheus.CounterVec
	tokenRefreshes  *prometheus.CounterVec
	gatewayRequests *prometheus.CounterVec
	forwards        *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_intake_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticket_intake_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_intake_http_errors_total",
			Help: "HTTP errors by route, method and error code.",
		}, []string{"path", "method", "code"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_intake_classifications_total",
			Help: "Ticket classifications by source (remote or fallback).",
		}, []string{"source"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_intake_token_refreshes_total",
			Help: "CRM access token refresh attempts by outcome.",
		}, []string{"outcome"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_intake_gateway_requests_total",
			Help: "Physical requests sent to the CRM by response status.",
		}, []string{"status"}),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_intake_forwards_total",
			Help: "Background ticket forwards to the CRM by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.requestCount,
		m.requestLatency,
		m.errorCount,
		m.classifications,
		m.tokenRefreshes,
		m.gatewayRequests,
		m.forwards,
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// RecordClassification counts one analyze call by the source that produced its result.
func (m *Metrics) RecordClassification(source string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(source).Inc()
}

// RecordTokenRefresh counts a refresh attempt; outcome is "success", "failure" or "unconfigured".
func (m *Metrics) RecordTokenRefresh(outcome string) {
	if m == nil {
		return
	}
	m.tokenRefreshes.WithLabelValues(outcome).Inc()
}

// RecordGatewayRequest counts a physical CRM request. Status 0 means a transport error.
func (m *Metrics) RecordGatewayRequest(status int) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordForward counts a background forward; outcome is "success", "failure" or "skipped".
func (m *Metrics) RecordForward(outcome string) {
	if m == nil {
		return
	}
	m.forwards.WithLabelValues(outcome).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
