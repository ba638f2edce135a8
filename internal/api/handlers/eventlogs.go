package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/drfirst/go-pharmasim/internal/domain/pharmacy"
	"github.com/drfirst/go-pharmasim/pkg/correlation"
)

// EventLogHandler handles the compliance, finance, ops and tech logs that
// the orchestration caller writes to during a workflow.
type EventLogHandler struct {
	engine *pharmacy.Engine
	logger *zap.Logger
}

// NewEventLogHandler creates a new handler
func NewEventLogHandler(engine *pharmacy.Engine, logger *zap.Logger) *EventLogHandler {
	return &EventLogHandler{engine: engine, logger: logger}
}

// ComplianceRoutes returns the /compliance routes
func (h *EventLogHandler) ComplianceRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/audit", h.AppendCompliance)
	r.Get("/audit", h.ListCompliance)
	return r
}

// FinanceRoutes returns the /finance routes
func (h *EventLogHandler) FinanceRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/tax-report", h.AppendTaxReport)
	r.Get("/tax-report", h.ListTaxReports)
	return r
}

// OpsRoutes returns the /ops routes
func (h *EventLogHandler) OpsRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/processor-events", h.AppendProcessorEvent)
	r.Get("/processor-events", h.ListProcessorEvents)
	return r
}

// TechRoutes returns the /tech routes
func (h *EventLogHandler) TechRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/alerts", h.TechAlert)
	return r
}

func (h *EventLogHandler) entry(w http.ResponseWriter, r *http.Request) (pharmacy.LogEntry, bool) {
	body, err := decodeObject(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	return pharmacy.LogEntry(body), true
}

// AppendCompliance handles POST /compliance/audit
func (h *EventLogHandler) AppendCompliance(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, h.engine.AppendCompliance(r.Context(), entry))
}

// ListCompliance handles GET /compliance/audit
func (h *EventLogHandler) ListCompliance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ListCompliance(r.Context()))
}

// AppendTaxReport handles POST /finance/tax-report
func (h *EventLogHandler) AppendTaxReport(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, h.engine.AppendTaxReport(r.Context(), entry))
}

// ListTaxReports handles GET /finance/tax-report
func (h *EventLogHandler) ListTaxReports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ListTaxReports(r.Context()))
}

type receivedCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// AppendProcessorEvent handles POST /ops/processor-events
func (h *EventLogHandler) AppendProcessorEvent(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	stored, count := h.engine.AppendProcessorEvent(r.Context(), entry)
	h.logger.Info("processor event received",
		zap.Any("event", stored),
		zap.Int("count", count),
		zap.String("correlation_id", correlation.FromContext(r.Context())),
	)
	writeJSON(w, http.StatusAccepted, receivedCount{Status: "RECEIVED", Count: count})
}

// ListProcessorEvents handles GET /ops/processor-events
func (h *EventLogHandler) ListProcessorEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ListProcessorEvents(r.Context()))
}

type receivedAt struct {
	Status string             `json:"status"`
	At     pharmacy.Timestamp `json:"at"`
}

// TechAlert handles POST /tech/alerts. Alerts are logged and forwarded but
// not stored.
func (h *EventLogHandler) TechAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.entry(w, r)
	if !ok {
		return
	}
	at := h.engine.RecordTechAlert(r.Context(), alert)
	h.logger.Warn("tech alert received",
		zap.Any("alert", alert),
		zap.String("correlation_id", correlation.FromContext(r.Context())),
	)
	writeJSON(w, http.StatusAccepted, receivedAt{Status: "RECEIVED", At: at})
}
