package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drfirst/go-pharmasim/internal/domain/pharmacy"
	"github.com/drfirst/go-pharmasim/pkg/correlation"
)

// ShipmentHandler handles distribution center shipment endpoints
type ShipmentHandler struct {
	engine *pharmacy.Engine
	logger *zap.Logger
}

// NewShipmentHandler creates a new handler
func NewShipmentHandler(engine *pharmacy.Engine, logger *zap.Logger) *ShipmentHandler {
	return &ShipmentHandler{engine: engine, logger: logger}
}

// Routes returns the handler routes
func (h *ShipmentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/dispatch", h.Dispatch)
	r.Get("/", h.List)
	r.Get("/{shipmentId}", h.Get)
	return r
}

// Dispatch handles POST /shipments/dispatch
func (h *ShipmentHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := requireFields(body, "orderId", "dcId"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req pharmacy.DispatchRequest
	if req.OrderID, err = stringField(body, "orderId"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.DCID, err = stringField(body, "dcId"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	shipment, err := h.engine.DispatchShipment(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("shipment dispatched",
		zap.String("shipment_id", shipment.ShipmentID),
		zap.String("order_id", shipment.OrderID),
		zap.String("dc_id", shipment.DCID),
		zap.String("correlation_id", correlation.FromContext(r.Context())),
	)
	writeJSON(w, http.StatusCreated, shipment)
}

// Get handles GET /shipments/{shipmentId}
func (h *ShipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	shipment, err := h.engine.GetShipment(r.Context(), chi.URLParam(r, "shipmentId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, shipment)
}

// List handles GET /shipments
func (h *ShipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ListShipments(r.Context()))
}
