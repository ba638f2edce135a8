package handlers

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drfirst/go-pharmasim/internal/domain/pharmacy"
	"github.com/drfirst/go-pharmasim/pkg/correlation"
)

// OrderHandler handles prescription order endpoints
type OrderHandler struct {
	engine *pharmacy.Engine
	logger *zap.Logger
}

// NewOrderHandler creates a new handler
func NewOrderHandler(engine *pharmacy.Engine, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{engine: engine, logger: logger}
}

// Routes returns the handler routes
func (h *OrderHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/prescriptions", h.Create)
	r.Get("/", h.List)
	r.Get("/{orderId}", h.Get)
	return r
}

// Create handles POST /orders/prescriptions
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req, err := parseOrderRequest(body)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	order, err := h.engine.CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("order created",
		zap.String("order_id", order.OrderID),
		zap.String("store_id", order.StoreID),
		zap.String("sku", order.SKU),
		zap.Bool("cold_chain", order.ColdChain),
		zap.String("correlation_id", correlation.FromContext(r.Context())),
	)
	writeJSON(w, http.StatusCreated, order)
}

// parseOrderRequest checks presence first, then types: quantity must be a
// positive integer JSON number and the other fields JSON strings.
func parseOrderRequest(body map[string]any) (pharmacy.OrderRequest, error) {
	if err := requireFields(body, "patientId", "storeId", "sku", "quantity", "channel"); err != nil {
		return pharmacy.OrderRequest{}, err
	}

	var req pharmacy.OrderRequest
	var err error
	if req.PatientID, err = stringField(body, "patientId"); err != nil {
		return req, err
	}
	if req.StoreID, err = stringField(body, "storeId"); err != nil {
		return req, err
	}
	if req.SKU, err = stringField(body, "sku"); err != nil {
		return req, err
	}
	if req.Channel, err = stringField(body, "channel"); err != nil {
		return req, err
	}

	invalidQty := pharmacy.NewValidationError("quantity must be a number greater than 0",
		map[string]any{"quantity": body["quantity"]})
	n, ok := body["quantity"].(json.Number)
	if !ok {
		return req, invalidQty
	}
	// Any whole number is accepted, including forms like 2.0 or 1e1.
	qty, err := n.Float64()
	if err != nil || qty <= 0 || qty > math.MaxInt32 || math.Trunc(qty) != qty {
		return req, invalidQty
	}
	req.Quantity = int(qty)
	return req, nil
}

// Get handles GET /orders/{orderId}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.engine.GetOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// List handles GET /orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ListOrders(r.Context()))
}
