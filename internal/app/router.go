package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sistemas-pedidos/pedidos-api/internal/observability"
	"github.com/sistemas-pedidos/pedidos-api/internal/rbac"
	"github.com/sistemas-pedidos/pedidos-api/internal/receiving"
	"github.com/sistemas-pedidos/pedidos-api/internal/requests"
	"github.com/sistemas-pedidos/pedidos-api/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	RBACMiddleware   rbac.Middleware
	RequestsHandler  *requests.Handler
	ReceivingHandler *receiving.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(params.RBACMiddleware.Authenticate)
		if params.RequestsHandler != nil {
			params.RequestsHandler.MountRoutes(r)
		}
		if params.ReceivingHandler != nil {
			params.ReceivingHandler.MountRoutes(r)
		}
	})

	return r
}
