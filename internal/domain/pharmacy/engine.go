package pharmacy

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/go-pharmasim/pkg/correlation"
)

// Engine owns the shared State and runs the order and shipment lifecycle.
// A single mutex covers every read-modify-write sequence, so creating an
// order, dispatching a shipment or observing a transition is atomic with
// respect to other requests.
type Engine struct {
	mu    sync.Mutex
	state *State
	ids   idClock
	seq   uint64

	seed   func() *State
	now    func() time.Time
	sink   EventSink
	logger *zap.Logger
	tracer trace.Tracer
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces the wall clock, letting tests simulate elapsed time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSeed replaces the dataset loaded at start and on Reset.
func WithSeed(seed func() *State) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithEventSink sets the receiver of lifecycle events.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an engine loaded with the seed dataset.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		seed:   Seed,
		now:    time.Now,
		sink:   nopSink{},
		logger: zap.NewNop(),
		tracer: otel.Tracer("pharmacy-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.sink == nil {
		e.sink = nopSink{}
	}
	e.state = e.seed()
	return e
}

// OrderRequest is the input of CreateOrder.
type OrderRequest struct {
	PatientID string
	StoreID   string
	SKU       string
	Quantity  int
	Channel   string
}

// Validate checks required fields and quantity.
func (r OrderRequest) Validate() error {
	if err := requireStrings(
		"patientId", r.PatientID,
		"storeId", r.StoreID,
		"sku", r.SKU,
		"channel", r.Channel,
	); err != nil {
		return err
	}
	if r.Quantity <= 0 {
		return NewValidationError("quantity must be a number greater than 0", map[string]any{"quantity": r.Quantity})
	}
	return nil
}

// DispatchRequest is the input of DispatchShipment.
type DispatchRequest struct {
	OrderID string
	DCID    string
}

// Validate checks required fields.
func (r DispatchRequest) Validate() error {
	return requireStrings("orderId", r.OrderID, "dcId", r.DCID)
}

// CreateOrder validates req against the patient and inventory directories
// and stores a new PENDING_FULFILLMENT order. Store stock is untouched
// until the order completes.
func (e *Engine) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	ctx, span := e.tracer.Start(ctx, "create_order",
		trace.WithAttributes(
			attribute.String("store_id", req.StoreID),
			attribute.String("sku", req.SKU),
			attribute.Int("quantity", req.Quantity),
		))
	defer span.End()

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.mu.Lock()
	if req.PatientID != InternalReplenishmentPatientID {
		if _, ok := e.state.Patients[req.PatientID]; !ok {
			e.mu.Unlock()
			return nil, notFoundf("patient %s not found", req.PatientID)
		}
	}
	store, ok := e.state.Stores[req.StoreID]
	if !ok {
		e.mu.Unlock()
		return nil, notFoundf("store %s not found", req.StoreID)
	}

	now := e.now()
	createdAt := NewTimestamp(now)
	o := &Order{
		OrderID:       orderID(req.StoreID, req.SKU, e.ids.token(now)),
		PatientID:     req.PatientID,
		StoreID:       req.StoreID,
		SKU:           req.SKU,
		Quantity:      req.Quantity,
		Channel:       req.Channel,
		Status:        OrderPendingFulfillment,
		SLAHours:      SLAHours,
		ColdChain:     resolveColdChain(store, req.SKU),
		CreatedAt:     createdAt,
		LastUpdatedAt: createdAt,
		seq:           e.nextSeq(),
	}
	e.state.Orders[o.OrderID] = o
	out := *o
	e.mu.Unlock()

	span.SetAttributes(attribute.String("order_id", out.OrderID))
	e.emit(ctx, orderEvent(EventOrderCreated, &out, createdAt))
	return &out, nil
}

// resolveColdChain prefers the store's stock record and falls back to the
// static insulin rule when the store does not carry the SKU.
// TODO: drop the SKU fallback once every SKU has a catalog-level record.
func resolveColdChain(store *Store, sku string) bool {
	if rec, ok := store.Items[sku]; ok {
		return rec.ColdChain
	}
	return sku == coldChainFallbackSKU
}

// GetOrder returns the order, first completing it (and debiting store stock)
// if it has been pending for longer than TransitionThreshold.
func (e *Engine) GetOrder(ctx context.Context, id string) (*Order, error) {
	ctx, span := e.tracer.Start(ctx, "get_order",
		trace.WithAttributes(attribute.String("order_id", id)))
	defer span.End()

	e.mu.Lock()
	o, ok := e.state.Orders[id]
	if !ok {
		e.mu.Unlock()
		return nil, notFoundf("order %s not found", id)
	}
	debited, transitioned := e.advanceOrder(o, e.now())
	out := *o
	e.mu.Unlock()

	if transitioned {
		span.SetAttributes(attribute.Bool("transitioned", true))
		e.logger.Info("order completed",
			zap.String("order_id", out.OrderID),
			zap.String("store_id", out.StoreID),
			zap.String("sku", out.SKU),
			zap.Int("stock_debited", debited),
			zap.String("correlation_id", correlation.FromContext(ctx)),
		)
		ev := orderEvent(EventOrderCompleted, &out, out.LastUpdatedAt)
		ev.StockDebited = debited
		e.emit(ctx, ev)
	}
	return &out, nil
}

// nextSeq numbers a new record. The caller must hold e.mu.
func (e *Engine) nextSeq() uint64 {
	e.seq++
	return e.seq
}

// advanceOrder applies the lazy PENDING_FULFILLMENT -> COMPLETED transition.
// The caller must hold e.mu.
func (e *Engine) advanceOrder(o *Order, now time.Time) (debited int, transitioned bool) {
	if o.Status != OrderPendingFulfillment || now.Sub(o.CreatedAt.Time) <= TransitionThreshold {
		return 0, false
	}
	o.Status = OrderCompleted
	o.LastUpdatedAt = NewTimestamp(now)
	if store, ok := e.state.Stores[o.StoreID]; ok {
		if rec, ok := store.Items[o.SKU]; ok {
			debited = rec.debit(o.Quantity)
		}
	}
	return debited, true
}

// ListOrders returns up to ListLimit orders, newest first. Listing does not
// trigger transitions.
func (e *Engine) ListOrders(ctx context.Context) []Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Order, 0, len(e.state.Orders))
	for _, o := range e.state.Orders {
		out = append(out, *o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt.Time) {
			return out[i].seq > out[j].seq
		}
		return out[i].CreatedAt.After(out[j].CreatedAt.Time)
	})
	if len(out) > ListLimit {
		out = out[:ListLimit]
	}
	return out
}

// DispatchShipment debits the distribution center immediately and stores a
// new IN_TRANSIT shipment for the order. Every precondition is checked
// before any mutation.
func (e *Engine) DispatchShipment(ctx context.Context, req DispatchRequest) (*Shipment, error) {
	ctx, span := e.tracer.Start(ctx, "dispatch_shipment",
		trace.WithAttributes(
			attribute.String("order_id", req.OrderID),
			attribute.String("dc_id", req.DCID),
		))
	defer span.End()

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.mu.Lock()
	o, ok := e.state.Orders[req.OrderID]
	if !ok {
		e.mu.Unlock()
		return nil, notFoundf("order %s not found", req.OrderID)
	}
	dc, ok := e.state.DCs[req.DCID]
	if !ok {
		e.mu.Unlock()
		return nil, notFoundf("distribution center %s not found", req.DCID)
	}
	rec, ok := dc.Items[o.SKU]
	if !ok {
		e.mu.Unlock()
		return nil, notFoundf("sku %s not found in distribution center %s", o.SKU, req.DCID)
	}
	if rec.QuantityOnHand < o.Quantity {
		available := rec.QuantityOnHand
		e.mu.Unlock()
		err := NewValidationError("insufficient distribution center stock for shipment", map[string]any{
			"sku":       o.SKU,
			"available": available,
			"requested": o.Quantity,
		})
		span.RecordError(err)
		return nil, err
	}

	debited := rec.debit(o.Quantity)
	now := e.now()
	createdAt := NewTimestamp(now)
	s := &Shipment{
		ShipmentID:    shipmentID(o.OrderID, e.ids.token(now)),
		OrderID:       o.OrderID,
		DCID:          req.DCID,
		StoreID:       o.StoreID,
		Status:        ShipmentInTransit,
		ColdChain:     o.ColdChain,
		ETAHours:      ETAHours,
		CreatedAt:     createdAt,
		LastUpdatedAt: createdAt,
		seq:           e.nextSeq(),
	}
	e.state.Shipments[s.ShipmentID] = s
	out := *s
	order := *o
	e.mu.Unlock()

	span.SetAttributes(attribute.String("shipment_id", out.ShipmentID))
	ev := shipmentEvent(EventShipmentDispatched, &out, &order, createdAt)
	ev.StockDebited = debited
	e.emit(ctx, ev)
	return &out, nil
}

// GetShipment returns the shipment, first marking it DELIVERED if it has
// been in transit for longer than TransitionThreshold. Delivery has no
// stock effect; the distribution center was debited at dispatch.
func (e *Engine) GetShipment(ctx context.Context, id string) (*Shipment, error) {
	ctx, span := e.tracer.Start(ctx, "get_shipment",
		trace.WithAttributes(attribute.String("shipment_id", id)))
	defer span.End()

	e.mu.Lock()
	s, ok := e.state.Shipments[id]
	if !ok {
		e.mu.Unlock()
		return nil, notFoundf("shipment %s not found", id)
	}
	now := e.now()
	transitioned := false
	if s.Status == ShipmentInTransit && now.Sub(s.CreatedAt.Time) > TransitionThreshold {
		s.Status = ShipmentDelivered
		s.LastUpdatedAt = NewTimestamp(now)
		transitioned = true
	}
	out := *s
	var order *Order
	if o, ok := e.state.Orders[s.OrderID]; ok {
		cp := *o
		order = &cp
	}
	e.mu.Unlock()

	if transitioned {
		span.SetAttributes(attribute.Bool("transitioned", true))
		e.logger.Info("shipment delivered",
			zap.String("shipment_id", out.ShipmentID),
			zap.String("dc_id", out.DCID),
			zap.String("store_id", out.StoreID),
			zap.String("correlation_id", correlation.FromContext(ctx)),
		)
		e.emit(ctx, shipmentEvent(EventShipmentDelivered, &out, order, out.LastUpdatedAt))
	}
	return &out, nil
}

// ListShipments returns up to ListLimit shipments, newest first.
func (e *Engine) ListShipments(ctx context.Context) []Shipment {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Shipment, 0, len(e.state.Shipments))
	for _, s := range e.state.Shipments {
		out = append(out, *s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt.Time) {
			return out[i].seq > out[j].seq
		}
		return out[i].CreatedAt.After(out[j].CreatedAt.Time)
	})
	if len(out) > ListLimit {
		out = out[:ListLimit]
	}
	return out
}

// Reset replaces the whole state with a fresh copy of the seed.
func (e *Engine) Reset(ctx context.Context) Summary {
	fresh := e.seed()

	e.mu.Lock()
	e.state = fresh
	summary := e.state.Summarize()
	e.mu.Unlock()

	e.logger.Info("state reset",
		zap.Int("orders", summary.Orders),
		zap.String("correlation_id", correlation.FromContext(ctx)),
	)
	return summary
}

// Snapshot returns the record counts of the current state.
func (e *Engine) Snapshot(ctx context.Context) Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Summarize()
}

// Export returns a deep copy of the current state.
func (e *Engine) Export(ctx context.Context) *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

func (e *Engine) emit(ctx context.Context, ev LifecycleEvent) {
	if ev.CorrelationID == "" {
		ev.CorrelationID = correlation.FromContext(ctx)
	}
	e.sink.Emit(ctx, ev)
}
