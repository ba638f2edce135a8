// Package events delivers pharmacy lifecycle events to their consumers:
// Prometheus counters and, when configured, Redpanda topics.
package events

import (
	"context"

	"github.com/drfirst/go-pharmasim/internal/domain/pharmacy"
	"github.com/drfirst/go-pharmasim/internal/observability/metrics"
)

// MetricsSink turns lifecycle events into Prometheus counter increments.
type MetricsSink struct {
	m *metrics.Metrics
}

// NewMetricsSink creates a sink backed by m
func NewMetricsSink(m *metrics.Metrics) *MetricsSink {
	return &MetricsSink{m: m}
}

// Emit implements pharmacy.EventSink
func (s *MetricsSink) Emit(_ context.Context, ev pharmacy.LifecycleEvent) {
	switch ev.Type {
	case pharmacy.EventOrderCreated:
		s.m.OrdersCreated.Inc()
	case pharmacy.EventOrderCompleted:
		s.m.OrdersCompleted.Inc()
		s.m.StockDebited.WithLabelValues("store").Add(float64(ev.StockDebited))
	case pharmacy.EventShipmentDispatched:
		s.m.ShipmentsDispatched.Inc()
		s.m.StockDebited.WithLabelValues("dc").Add(float64(ev.StockDebited))
	case pharmacy.EventShipmentDelivered:
		s.m.ShipmentsDelivered.Inc()
	case pharmacy.EventLogAppended:
		s.m.EventLogEntries.WithLabelValues(ev.Log).Inc()
	}
}
