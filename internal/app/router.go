package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/akademika-id/akademika/internal/auth"
	"github.com/akademika-id/akademika/internal/groups"
	"github.com/akademika-id/akademika/internal/observability"
	"github.com/akademika-id/akademika/internal/rbac"
	"github.com/akademika-id/akademika/internal/roles"
	"github.com/akademika-id/akademika/internal/shared"
	"github.com/akademika-id/akademika/internal/users"
	"github.com/akademika-id/akademika/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	RolesHandler       *roles.Handler
	GroupsHandler      *groups.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobsHandler        *jobs.Handler
	Gate               rbac.Middleware
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Akademika defaults. Login, refresh
// and register stay public; everything else passes the authorization gate.
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

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(params.Gate.Authenticate)
			params.AuthHandler.MountProtectedRoutes(r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(params.Gate.Authenticate)

		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.GroupsHandler != nil {
			r.Route("/groups", params.GroupsHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", func(r chi.Router) {
				r.Use(params.Gate.Require(shared.PermPermissionsView))
				params.PermissionsHandler.MountRoutes(r)
			})
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.Gate.Require(shared.PermSessionsManage))
				params.JobsHandler.MountRoutes(r)
			})
		}
	})

	return r
}
