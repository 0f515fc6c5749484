package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	eventsTotal     *prometheus.CounterVec
	apiRequests     *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	upsertsTotal    *prometheus.CounterVec
	deadlinesTotal  prometheus.Counter
	lastSuccessTime prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	m.eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boardsync",
		Name:      "events_total",
		Help:      "Inbound events by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
	m.apiRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boardsync",
		Name:      "api_requests_total",
		Help:      "Outbound API calls by operation and result",
	}, []string{"operation", "result"})
	m.apiDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "boardsync",
		Name:      "api_request_duration_seconds",
		Help:      "Outbound API call latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	m.upsertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "boardsync",
		Name:      "target_upserts_total",
		Help:      "Target items written, by action (created|updated)",
	}, []string{"action"})
	m.deadlinesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "boardsync",
		Name:      "deadlines_written_total",
		Help:      "Deadline dates written",
	})
	m.lastSuccessTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "boardsync",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successfully processed event",
	})

	reg.MustRegister(
		m.eventsTotal,
		m.apiRequests,
		m.apiDuration,
		m.upsertsTotal,
		m.deadlinesTotal,
		m.lastSuccessTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveEvent counts an inbound event. Successful outcomes also stamp the
// last-success gauge.
func (m *Metrics) ObserveEvent(endpoint, outcome string) {
	m.eventsTotal.WithLabelValues(endpoint, outcome).Inc()
	if outcome == "processed" {
		m.lastSuccessTime.Set(float64(time.Now().Unix()))
	}
}

// ObserveRequest records an outbound API call.
func (m *Metrics) ObserveRequest(op string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.apiRequests.WithLabelValues(op, result).Inc()
	m.apiDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveUpsert counts a target write.
func (m *Metrics) ObserveUpsert(action string) {
	m.upsertsTotal.WithLabelValues(action).Inc()
}

// ObserveDeadline counts a written deadline.
func (m *Metrics) ObserveDeadline() {
	m.deadlinesTotal.Inc()
}
