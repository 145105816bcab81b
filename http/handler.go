package http

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/volaas/volauth"
	"github.com/volaas/volauth/task"
)

// Handler is the daemon's root HTTP handler: the management API under
// /api/v1, plus health and metrics endpoints.
type Handler struct {
	chi.Router
}

// NewHandler assembles the root handler. reg serves /metrics; it may be
// nil to disable the endpoint.
func NewHandler(log *zap.Logger, tasks *task.Service, engine volauth.AuthorizationService, ledger volauth.UsageLedger, reg *prometheus.Registry) *Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/tenants", NewTenantHandler(log.With(zap.String("handler", "tenant")), tasks, ledger))
		r.Mount("/tasks", NewTaskHandler(log.With(zap.String("handler", "task")), tasks.Coordinator()))
		r.Mount("/authorize", NewAuthorizeHandler(log.With(zap.String("handler", "authorize")), engine))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"pass"}`))
	})

	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	return &Handler{Router: r}
}
