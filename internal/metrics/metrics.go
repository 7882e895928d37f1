// Package metrics exposes order lifecycle counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "harvestlink"

// PIN verification outcomes.
const (
	PinValid     = "valid"
	PinInvalid   = "invalid"
	PinThrottled = "throttled"
)

// Metrics holds the service's collectors in a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	ordersCreated    prometheus.Counter
	statusChanges    *prometheus.CounterVec
	pinVerifications *prometheus.CounterVec
	ratings          prometheus.Counter
}

// New registers the order counters plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders placed by customers.",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_changes_total",
			Help:      "Order status writes, by new status.",
		}, []string{"status"}),
		pinVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pin_verifications_total",
			Help:      "Delivery PIN checks, by outcome.",
		}, []string{"result"}),
		ratings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_ratings_total",
			Help:      "Ratings submitted for delivered orders.",
		}),
	}
	m.registry.MustRegister(
		m.ordersCreated,
		m.statusChanges,
		m.pinVerifications,
		m.ratings,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// OrderCreated counts a new order.
func (m *Metrics) OrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// StatusChanged counts a status write.
func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// PinVerified counts a PIN check with one of PinValid, PinInvalid, PinThrottled.
func (m *Metrics) PinVerified(result string) {
	if m == nil {
		return
	}
	m.pinVerifications.WithLabelValues(result).Inc()
}

// OrderRated counts a rating submission.
func (m *Metrics) OrderRated() {
	if m == nil {
		return
	}
	m.ratings.Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
