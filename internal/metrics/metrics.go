package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records service-level counters.
type Metrics interface {
	// RecordValidation counts one validation call by verdict outcome
	// (valid, invalid_key, key_inactive, quota_exceeded, rate_limited, error).
	RecordValidation(outcome string)

	// RecordDelivery counts one webhook delivery attempt by event and
	// outcome (success, failure).
	RecordDelivery(event, outcome string)

	// Handler exposes the scrape endpoint.
	Handler() http.Handler
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (m *NoopMetrics) RecordValidation(outcome string) {}

func (m *NoopMetrics) RecordDelivery(event, outcome string) {}

func (m *NoopMetrics) Handler() http.Handler {
	return http.NotFoundHandler()
}

// PrometheusMetrics implements Metrics on a dedicated registry.
type PrometheusMetrics struct {
	registry    *prometheus.Registry
	validations *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
}

// NewPrometheusMetrics creates and registers the service's collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "throttl",
		Name:      "validations_total",
		Help:      "Validation calls by verdict outcome.",
	}, []string{"outcome"})

	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "throttl",
		Name:      "webhook_deliveries_total",
		Help:      "Webhook delivery attempts by event and outcome.",
	}, []string{"event", "outcome"})

	registry.MustRegister(validations, deliveries)

	return &PrometheusMetrics{
		registry:    registry,
		validations: validations,
		deliveries:  deliveries,
	}
}

func (m *PrometheusMetrics) RecordValidation(outcome string) {
	m.validations.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) RecordDelivery(event, outcome string) {
	m.deliveries.WithLabelValues(event, outcome).Inc()
}

func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
