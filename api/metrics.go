package api

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linesmerrill/resolveit-api/lifecycle"
)

const metricPrefix = "resolveit_"

// Metrics holds the request and case lifecycle collectors
type Metrics struct {
	gatherer prometheus.Gatherer

	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	statusChanges   *prometheus.CounterVec
	consentReplies  *prometheus.CounterVec
	publishFailures prometheus.Counter
}

// NewMetrics registers the collectors with reg. The same registry serves /metrics.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		statusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "case_status_changes_total",
			Help: "Total number of case status changes by target status",
		}, []string{"to"}),
		consentReplies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "consent_responses_total",
			Help: "Total number of opposite party consent responses",
		}, []string{"response"}),
		publishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "event_publish_failures_total",
			Help: "Total number of lifecycle events the live channel failed to deliver",
		}),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(method, route string, code int, seconds float64) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(method, route).Observe(seconds)
}

// Publisher counts lifecycle events on their way to next
func (m *Metrics) Publisher(next lifecycle.Publisher) lifecycle.Publisher {
	return &countingPublisher{next: next, m: m}
}

type countingPublisher struct {
	next lifecycle.Publisher
	m    *Metrics
}

func (p *countingPublisher) Publish(event string, payload interface{}) error {
	switch v := payload.(type) {
	case lifecycle.StatusChange:
		p.m.statusChanges.WithLabelValues(string(v.To)).Inc()
	case lifecycle.ConsentResponse:
		p.m.consentReplies.WithLabelValues(v.Response).Inc()
	}
	if p.next == nil {
		return nil
	}
	err := p.next.Publish(event, payload)
	if err != nil {
		p.m.publishFailures.Inc()
	}
	return err
}
