package handlers

import (
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drfirst/go-pharmasim/internal/domain/pharmacy"
	"github.com/drfirst/go-pharmasim/pkg/correlation"
)

// AdminHandler exposes the demo reset and snapshot utilities
type AdminHandler struct {
	engine *pharmacy.Engine
	logger *zap.Logger
}

// NewAdminHandler creates a new handler
func NewAdminHandler(engine *pharmacy.Engine, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{engine: engine, logger: logger}
}

// Routes returns the handler routes
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/reset", h.Reset)
	r.Get("/snapshot", h.Snapshot)
	return r
}

type resetResponse struct {
	Status   string           `json:"status"`
	Snapshot pharmacy.Summary `json:"snapshot"`
}

type snapshotResponse struct {
	Snapshot pharmacy.Summary `json:"snapshot"`
}

// Reset handles POST /admin/reset
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	summary := h.engine.Reset(r.Context())
	writeJSON(w, http.StatusOK, resetResponse{Status: "RESET", Snapshot: summary})
}

// Snapshot handles GET /admin/snapshot
func (h *AdminHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshotResponse{Snapshot: h.engine.Snapshot(r.Context())})
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	draining atomic.Bool
}

// NewHealthHandler creates a new handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Drain makes readiness fail so load balancers stop routing traffic
// while the server shuts down.
func (h *HealthHandler) Drain() {
	h.draining.Store(true)
}

type healthResponse struct {
	Status        string `json:"status"`
	Component     string `json:"component"`
	CorrelationID string `json:"correlationId"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "UP",
		Component:     "Pharma-Backend-BR",
		CorrelationID: correlation.FromContext(r.Context()),
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
