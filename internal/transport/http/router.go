// Package httptransport assembles the public HTTP surface: shared middleware,
// the versioned API routes, and the operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	platformmetrics "smartid/internal/platform/metrics"
	"smartid/pkg/platform/middleware/admin"
	"smartid/pkg/platform/middleware/caller"
	"smartid/pkg/platform/middleware/requestid"
	"smartid/pkg/platform/middleware/requesttime"
)

// Routes is implemented by every module handler.
type Routes interface {
	Register(r chi.Router)
}

type Deps struct {
	Logger     *slog.Logger
	Verifier   caller.Verifier
	Metrics    *platformmetrics.Metrics
	Ledger     *LedgerHandler
	Health     *HealthHandler
	AdminToken string
	Modules    []Routes
}

// NewRouter wires middleware and routes. Module routes live under /v1.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	if d.Metrics != nil {
		r.Use(instrument(d.Metrics))
	}

	if d.Health != nil {
		r.Get("/healthz", d.Health.ServeHTTP)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(caller.Authenticate(d.Verifier, d.Logger))
		for _, m := range d.Modules {
			m.Register(r)
		}
		if d.Ledger != nil {
			r.Get("/ledger/height", d.Ledger.handleHeight)
			r.With(admin.RequireAdminToken(d.AdminToken, d.Logger)).Post("/ledger/mine", d.Ledger.handleMine)
		}
	})
	return r
}
