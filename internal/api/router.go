// Package api assembles the pharmacy HTTP surface.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/drfirst/go-pharmasim/internal/api/handlers"
	"github.com/drfirst/go-pharmasim/internal/api/middleware"
	"github.com/drfirst/go-pharmasim/internal/domain/pharmacy"
	"github.com/drfirst/go-pharmasim/internal/observability/metrics"
)

// MaxBodyBytes caps request bodies
const MaxBodyBytes = 1 << 20

// Deps are the collaborators the router needs
type Deps struct {
	Engine      *pharmacy.Engine
	Metrics     *metrics.Metrics
	Health      *handlers.HealthHandler
	Logger      *zap.Logger
	ServiceName string
}

// NewRouter builds the chi router with the global middleware chain and
// every resource mounted.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Health == nil {
		d.Health = handlers.NewHealthHandler()
	}
	if d.ServiceName == "" {
		d.ServiceName = "pharma-api"
	}

	orders := handlers.NewOrderHandler(d.Engine, d.Logger)
	shipments := handlers.NewShipmentHandler(d.Engine, d.Logger)
	directory := handlers.NewDirectoryHandler(d.Engine, d.Logger)
	logs := handlers.NewEventLogHandler(d.Engine, d.Logger)
	admin := handlers.NewAdminHandler(d.Engine, d.Logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.CORS)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(middleware.Recover(d.Logger))
	r.Use(middleware.Tracing(d.ServiceName))
	r.Use(chimw.RequestSize(MaxBodyBytes))

	r.Get("/health", d.Health.Health)
	r.Get("/ready", d.Health.Ready)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Mount("/patients", directory.PatientRoutes())
	r.Mount("/stores", directory.StoreRoutes())
	r.Mount("/dcs", directory.DCRoutes())
	r.Mount("/orders", orders.Routes())
	r.Mount("/shipments", shipments.Routes())
	r.Mount("/compliance", logs.ComplianceRoutes())
	r.Mount("/finance", logs.FinanceRoutes())
	r.Mount("/ops", logs.OpsRoutes())
	r.Mount("/tech", logs.TechRoutes())
	r.Mount("/admin", admin.Routes())

	r.NotFound(handlers.NotFound)
	return r
}
