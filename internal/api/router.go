package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/errdesk/internal/api/middleware"
	"github.com/kiranshivaraju/errdesk/internal/api/response"
	"github.com/kiranshivaraju/errdesk/pkg/models"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit
	// Capturer records recovered panics as error logs. Optional.
	Capturer mw.Capturer

	HealthHandler http.HandlerFunc

	SubmitError     http.HandlerFunc
	ListErrors      http.HandlerFunc
	ErrorStats      http.HandlerFunc
	GetError        http.HandlerFunc
	SetStatus       http.HandlerFunc
	ResolveError    http.HandlerFunc
	ListResolutions http.HandlerFunc
	AssignError     http.HandlerFunc
	DeleteError     http.HandlerFunc
	ListCategories  http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery(deps.Capturer))

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.With(deps.Auth.RequireScope(models.ScopeIngest)).
			Post("/api/v1/errors", orNotImplemented(deps.SubmitError))

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeRead))

			r.Get("/api/v1/errors", orNotImplemented(deps.ListErrors))
			r.Get("/api/v1/errors/stats", orNotImplemented(deps.ErrorStats))
			r.Get("/api/v1/errors/{errorID}", orNotImplemented(deps.GetError))
			r.Get("/api/v1/errors/{errorID}/resolutions", orNotImplemented(deps.ListResolutions))
			r.Patch("/api/v1/errors/{errorID}/status", orNotImplemented(deps.SetStatus))
			r.Post("/api/v1/errors/{errorID}/resolve", orNotImplemented(deps.ResolveError))
			r.Patch("/api/v1/errors/{errorID}/assignee", orNotImplemented(deps.AssignError))

			r.Get("/api/v1/categories", orNotImplemented(deps.ListCategories))
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeAdmin))

			r.Delete("/api/v1/errors/{errorID}", orNotImplemented(deps.DeleteError))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
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
