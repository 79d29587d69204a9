package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kiranshivaraju/eoex/internal/api/handler"
	mw "github.com/kiranshivaraju/eoex/internal/api/middleware"
	"github.com/kiranshivaraju/eoex/internal/api/response"
	"github.com/kiranshivaraju/eoex/internal/observability"
	"github.com/kiranshivaraju/eoex/internal/records"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resource binds a record kind to its URL prefix.
type Resource struct {
	Path string
	Kind *records.Kind
}

// Resources lists the mounted record kinds.
var Resources = []Resource{
	{Path: "/api/v1/crm/contacts", Kind: records.Contacts},
	{Path: "/api/v1/erp/products", Kind: records.Products},
	{Path: "/api/v1/erp/orders", Kind: records.Orders},
	{Path: "/api/v1/studio/campaigns", Kind: records.Campaigns},
	{Path: "/api/v1/support/tickets", Kind: records.Tickets},
}

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth        *mw.Auth
	RateLimit   *mw.RateLimit
	CORSOrigins []string

	HealthHandler   http.HandlerFunc
	LoginHandler    http.HandlerFunc
	RegisterHandler http.HandlerFunc
	MeHandler       http.HandlerFunc
	OverviewHandler http.HandlerFunc

	// Records backs every resource in Resources. Nil mounts 501 placeholders.
	Records handler.RecordService
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(observability.MetricsMiddleware)
	r.Use(mw.CORS(deps.CORSOrigins))

	// Public health check
	r.Get("/api/health", orNotImplemented(deps.HealthHandler))
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public auth routes, limited per client address
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.Limit("auth", mw.ByClientIP))

		r.Post("/api/v1/auth/login", orNotImplemented(deps.LoginHandler))
		r.Post("/api/v1/auth/register", orNotImplemented(deps.RegisterHandler))
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit("user", mw.ByUser))

		r.Get("/api/v1/auth/me", orNotImplemented(deps.MeHandler))
		r.Get("/api/v1/metrics/overview", orNotImplemented(deps.OverviewHandler))

		for _, res := range Resources {
			if deps.Records == nil {
				r.Handle(res.Path, orNotImplemented(nil))
				r.Handle(res.Path+"/*", orNotImplemented(nil))
				continue
			}
			r.Route(res.Path, handler.NewRecordsHandler(deps.Records, res.Kind).Routes)
		}
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
