package pharmacy

import (
	"context"

	"github.com/google/uuid"
)

// EventType represents the type of lifecycle event
type EventType string

const (
	EventOrderCreated       EventType = "OrderCreated"
	EventOrderCompleted     EventType = "OrderCompleted"
	EventShipmentDispatched EventType = "ShipmentDispatched"
	EventShipmentDelivered  EventType = "ShipmentDelivered"
	EventLogAppended        EventType = "LogAppended"
)

// Event log names
const (
	LogCompliance      = "compliance"
	LogTaxReports      = "tax-reports"
	LogProcessorEvents = "processor-events"
	LogTechAlerts      = "tech-alerts"
)

// LifecycleEvent describes a committed state change. Events are emitted
// after the engine releases its lock, so sinks may block without stalling
// other requests.
type LifecycleEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	OrderID       string    `json:"orderId,omitempty"`
	ShipmentID    string    `json:"shipmentId,omitempty"`
	StoreID       string    `json:"storeId,omitempty"`
	DCID          string    `json:"dcId,omitempty"`
	SKU           string    `json:"sku,omitempty"`
	Quantity      int       `json:"quantity,omitempty"`
	StockDebited  int       `json:"stockDebited,omitempty"`
	ColdChain     bool      `json:"coldChain"`
	Status        string    `json:"status,omitempty"`
	Log           string    `json:"log,omitempty"`
	Entry         LogEntry  `json:"entry,omitempty"`
	OccurredAt    Timestamp `json:"occurredAt"`
	CorrelationID string    `json:"correlationId,omitempty"`
}

// EventSink receives lifecycle events.
type EventSink interface {
	Emit(ctx context.Context, ev LifecycleEvent)
}

// MultiSink fans an event out to every sink in order.
type MultiSink []EventSink

// Emit implements EventSink
func (m MultiSink) Emit(ctx context.Context, ev LifecycleEvent) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

type nopSink struct{}

func (nopSink) Emit(context.Context, LifecycleEvent) {}

func newEvent(t EventType, at Timestamp) LifecycleEvent {
	return LifecycleEvent{
		ID:         uuid.New().String(),
		Type:       t,
		OccurredAt: at,
	}
}

func orderEvent(t EventType, o *Order, at Timestamp) LifecycleEvent {
	ev := newEvent(t, at)
	ev.OrderID = o.OrderID
	ev.StoreID = o.StoreID
	ev.SKU = o.SKU
	ev.Quantity = o.Quantity
	ev.ColdChain = o.ColdChain
	ev.Status = string(o.Status)
	return ev
}

func shipmentEvent(t EventType, s *Shipment, o *Order, at Timestamp) LifecycleEvent {
	ev := newEvent(t, at)
	ev.OrderID = s.OrderID
	ev.ShipmentID = s.ShipmentID
	ev.StoreID = s.StoreID
	ev.DCID = s.DCID
	ev.ColdChain = s.ColdChain
	ev.Status = string(s.Status)
	if o != nil {
		ev.SKU = o.SKU
		ev.Quantity = o.Quantity
	}
	return ev
}
