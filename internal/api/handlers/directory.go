package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drfirst/go-pharmasim/internal/domain/pharmacy"
)

// DirectoryHandler serves the read-only patient and inventory lookups
type DirectoryHandler struct {
	engine *pharmacy.Engine
	logger *zap.Logger
}

// NewDirectoryHandler creates a new handler
func NewDirectoryHandler(engine *pharmacy.Engine, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{engine: engine, logger: logger}
}

// PatientRoutes returns the /patients routes
func (h *DirectoryHandler) PatientRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/profile/{patientId}", h.PatientProfile)
	return r
}

// StoreRoutes returns the /stores routes
func (h *DirectoryHandler) StoreRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{storeId}/inventory", h.StoreInventory)
	return r
}

// DCRoutes returns the /dcs routes
func (h *DirectoryHandler) DCRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{dcId}/inventory", h.DCInventory)
	return r
}

type patientFound struct {
	Exists bool `json:"exists"`
	*pharmacy.PatientProfile
}

type patientMissing struct {
	Exists    bool   `json:"exists"`
	PatientID string `json:"patientId"`
	Message   string `json:"message"`
}

// PatientProfile handles GET /patients/profile/{patientId}. Unknown patients
// are a 200 with exists=false, which callers rely on.
func (h *DirectoryHandler) PatientProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "patientId")
	profile, ok := h.engine.PatientProfile(r.Context(), id)
	if !ok {
		writeJSON(w, http.StatusOK, patientMissing{
			PatientID: id,
			Message:   "Patient not found in the demo database",
		})
		return
	}
	writeJSON(w, http.StatusOK, patientFound{Exists: true, PatientProfile: profile})
}

type storeInventoryView struct {
	StoreID string                          `json:"storeId"`
	Items   map[string]pharmacy.StockRecord `json:"items"`
}

type storeItemView struct {
	StoreID string `json:"storeId"`
	pharmacy.StockRecord
}

// StoreInventory handles GET /stores/{storeId}/inventory[?sku=]
func (h *DirectoryHandler) StoreInventory(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeId")
	if sku := r.URL.Query().Get("sku"); sku != "" {
		rec, err := h.engine.StoreItem(r.Context(), storeID, sku)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, storeItemView{StoreID: storeID, StockRecord: *rec})
		return
	}

	inv, err := h.engine.StoreInventory(r.Context(), storeID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, storeInventoryView{StoreID: inv.LocationID, Items: inv.Items})
}

type dcInventoryView struct {
	DCID  string                          `json:"dcId"`
	Items map[string]pharmacy.StockRecord `json:"items"`
}

type dcItemView struct {
	DCID string `json:"dcId"`
	pharmacy.StockRecord
}

// DCInventory handles GET /dcs/{dcId}/inventory[?sku=]
func (h *DirectoryHandler) DCInventory(w http.ResponseWriter, r *http.Request) {
	dcID := chi.URLParam(r, "dcId")
	if sku := r.URL.Query().Get("sku"); sku != "" {
		rec, err := h.engine.DCItem(r.Context(), dcID, sku)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, dcItemView{DCID: dcID, StockRecord: *rec})
		return
	}

	inv, err := h.engine.DCInventory(r.Context(), dcID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dcInventoryView{DCID: inv.LocationID, Items: inv.Items})
}
