// Package metrics provides Prometheus metrics for the pharmacy backend.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	registry *prometheus.Registry

	OrdersCreated       prometheus.Counter
	OrdersCompleted     prometheus.Counter
	ShipmentsDispatched prometheus.Counter
	ShipmentsDelivered  prometheus.Counter
	StockDebited        *prometheus.CounterVec
	EventLogEntries     *prometheus.CounterVec
	EventsPublished     *prometheus.CounterVec
	BreakerCalls        *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
}

// New creates the metrics on a dedicated registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pharmacy_orders_created_total",
			Help: "Total prescription orders created",
		}),
		OrdersCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pharmacy_orders_completed_total",
			Help: "Total orders transitioned to COMPLETED",
		}),
		ShipmentsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pharmacy_shipments_dispatched_total",
			Help: "Total shipments dispatched from distribution centers",
		}),
		ShipmentsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pharmacy_shipments_delivered_total",
			Help: "Total shipments transitioned to DELIVERED",
		}),
		StockDebited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmacy_stock_debited_units_total",
			Help: "Stock units debited, by location kind (store or dc)",
		}, []string{"location_kind"}),
		EventLogEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmacy_event_log_entries_total",
			Help: "Entries received per auxiliary event log",
		}, []string{"log"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmacy_events_published_total",
			Help: "Lifecycle events handed to Redpanda, by result",
		}, []string{"result"}),
		BreakerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pharmacy_breaker_calls_total",
			Help: "Produce calls through a per-topic circuit breaker, by outcome",
		}, []string{"topic", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OrdersCreated,
		m.OrdersCompleted,
		m.ShipmentsDispatched,
		m.ShipmentsDelivered,
		m.StockDebited,
		m.EventLogEntries,
		m.EventsPublished,
		m.BreakerCalls,
		m.RequestDuration,
	)

	return m
}

// Registry returns the registry holding the metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
