package gateway

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "sparqlgate"

// Metrics records gateway request counts and latencies.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	notAuthorized prometheus.Counter
}

// NewMetrics creates the gateway collectors and registers them with reg.
// A nil reg leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Requests sent to the triple store, by operation and HTTP status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Time until the triple store answered, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		notAuthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "not_authorized_total",
			Help:      "Responses rejected with HTTP 401 or 403.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.notAuthorized)
	}
	return m
}

// observe records one exchange. status 0 means no response was received.
func (m *Metrics) observe(op string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(op, label).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	if isAuthStatus(status) {
		m.notAuthorized.Inc()
	}
}
