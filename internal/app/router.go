package app

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stellarsoft-tech/idaraos/internal/assignments"
	"github.com/stellarsoft-tech/idaraos/internal/auth"
	"github.com/stellarsoft-tech/idaraos/internal/catalog"
	"github.com/stellarsoft-tech/idaraos/internal/directory"
	"github.com/stellarsoft-tech/idaraos/internal/observability"
	"github.com/stellarsoft-tech/idaraos/internal/roles"
	"github.com/stellarsoft-tech/idaraos/internal/shared"
	"github.com/stellarsoft-tech/idaraos/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	AuthHandler        *auth.Handler
	CatalogHandler     *catalog.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	AssignmentsHandler *assignments.Handler
	DirectoryHandler   *directory.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with IdaraOS defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/catalog", params.CatalogHandler.MountRoutes)
		r.Route("/roles", params.RolesHandler.MountRoutes)
		r.Route("/users", func(r chi.Router) {
			params.UsersHandler.MountRoutes(r)
			params.AssignmentsHandler.MountRoutes(r)
		})
		r.Route("/directory", params.DirectoryHandler.MountRoutes)
	})

	return r
}
