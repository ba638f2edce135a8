// Package pharmacy implements the retail pharmacy simulation: patient and
// inventory directories, the order and shipment lifecycle, and the auxiliary
// event logs that share the same in-memory state.
package pharmacy

import (
	"encoding/json"
	"fmt"
	"time"
)

// OrderStatus represents order status
type OrderStatus string

const (
	OrderPendingFulfillment OrderStatus = "PENDING_FULFILLMENT"
	// OrderInProgress only appears in seeded history; the engine never produces it.
	OrderInProgress OrderStatus = "IN_PROGRESS"
	OrderCompleted  OrderStatus = "COMPLETED"
)

// ShipmentStatus represents shipment status
type ShipmentStatus string

const (
	ShipmentInTransit ShipmentStatus = "IN_TRANSIT"
	ShipmentDelivered ShipmentStatus = "DELIVERED"
)

const (
	// SLAHours is stamped on every new order.
	SLAHours = 24
	// ETAHours is stamped on every new shipment.
	ETAHours = 12
	// TransitionThreshold is the age (0.1 hour) past which a pending order
	// completes, or an in-transit shipment is delivered, when next observed.
	TransitionThreshold = 6 * time.Minute
	// InternalReplenishmentPatientID bypasses the patient directory check.
	InternalReplenishmentPatientID = "PAT-INTERNAL-REPLENISHMENT"
	// ListLimit caps every list endpoint.
	ListLimit = 50

	coldChainFallbackSKU = "MED-INSULINA"
)

// StockRecord is the stock of one SKU at a store or distribution center.
// QuantityOnHand never goes below zero.
type StockRecord struct {
	SKU            string `json:"sku"`
	Name           string `json:"name,omitempty"`
	QuantityOnHand int    `json:"quantityOnHand"`
	ReorderPoint   *int   `json:"reorderPoint,omitempty"`
	ColdChain      bool   `json:"coldChain"`
}

// debit removes up to qty units, clamped at zero, and returns the units removed.
func (s *StockRecord) debit(qty int) int {
	if qty <= 0 {
		return 0
	}
	if qty > s.QuantityOnHand {
		qty = s.QuantityOnHand
	}
	s.QuantityOnHand -= qty
	return qty
}

func (s *StockRecord) clone() *StockRecord {
	c := *s
	if s.ReorderPoint != nil {
		rp := *s.ReorderPoint
		c.ReorderPoint = &rp
	}
	return &c
}

// Store is a retail location and its stock, keyed by SKU.
type Store struct {
	StoreID string                  `json:"storeId"`
	Name    string                  `json:"name"`
	Region  string                  `json:"region"`
	Items   map[string]*StockRecord `json:"items"`
}

// DistributionCenter is an upstream location supplying shipments.
type DistributionCenter struct {
	DCID   string                  `json:"dcId"`
	Name   string                  `json:"name"`
	Region string                  `json:"region"`
	Items  map[string]*StockRecord `json:"items"`
}

func cloneItems(items map[string]*StockRecord) map[string]*StockRecord {
	out := make(map[string]*StockRecord, len(items))
	for sku, rec := range items {
		out[sku] = rec.clone()
	}
	return out
}

// Prescription is reference data attached to a patient.
type Prescription struct {
	PrescriptionID   string    `json:"prescriptionId"`
	SKU              string    `json:"sku"`
	Name             string    `json:"name"`
	Dosage           string    `json:"dosage"`
	DaysOfSupply     int       `json:"daysOfSupply"`
	Refillable       bool      `json:"refillable"`
	RefillsRemaining int       `json:"refillsRemaining"`
	LastDispensedAt  Timestamp `json:"lastDispensedAt"`
}

// RefillEligible reports whether the prescription can be refilled now.
func (p Prescription) RefillEligible() bool {
	return p.Refillable && p.RefillsRemaining > 0
}

// Patient is a patient directory entry.
type Patient struct {
	PatientID         string         `json:"patientId"`
	CPF               string         `json:"cpf"`
	Name              string         `json:"name"`
	ChronicConditions []string       `json:"chronicConditions"`
	PreferredStoreID  string         `json:"preferredStoreId"`
	Prescriptions     []Prescription `json:"prescriptions"`
}

// Order is a prescription order placed against a store.
// Only Status and LastUpdatedAt change after creation.
type Order struct {
	OrderID       string      `json:"orderId"`
	PatientID     string      `json:"patientId"`
	StoreID       string      `json:"storeId"`
	SKU           string      `json:"sku"`
	Quantity      int         `json:"quantity"`
	Channel       string      `json:"channel"`
	Status        OrderStatus `json:"status"`
	SLAHours      int         `json:"slaHours"`
	ColdChain     bool        `json:"coldChain"`
	CreatedAt     Timestamp   `json:"createdAt"`
	LastUpdatedAt Timestamp   `json:"lastUpdatedAt"`

	// seq orders records created within the same millisecond.
	seq uint64
}

// Shipment moves an order's quantity from a distribution center to the
// order's store. Only Status and LastUpdatedAt change after creation.
type Shipment struct {
	ShipmentID    string         `json:"shipmentId"`
	OrderID       string         `json:"orderId"`
	DCID          string         `json:"dcId"`
	StoreID       string         `json:"storeId"`
	Status        ShipmentStatus `json:"status"`
	ColdChain     bool           `json:"coldChain"`
	ETAHours      int            `json:"etaHours"`
	CreatedAt     Timestamp      `json:"createdAt"`
	LastUpdatedAt Timestamp      `json:"lastUpdatedAt"`

	seq uint64
}

const isoLayout = "2006-01-02T15:04:05.000Z"

// Timestamp is a UTC instant with millisecond precision, encoded as ISO-8601.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to the millisecond in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

// ParseTimestamp parses an ISO-8601 instant.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return NewTimestamp(t), nil
}

func mustTimestamp(s string) Timestamp {
	ts, err := ParseTimestamp(s)
	if err != nil {
		panic(err)
	}
	return ts
}

func (t Timestamp) String() string {
	return t.UTC().Format(isoLayout)
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = ts
	return nil
}
