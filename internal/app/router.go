package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/armature-app/armature/internal/authn"
	"github.com/armature-app/armature/internal/masterdata"
	"github.com/armature-app/armature/internal/observability"
	"github.com/armature-app/armature/internal/projects"
	"github.com/armature-app/armature/internal/scopeitems"
	"github.com/armature-app/armature/internal/tasks"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Validator         *authn.Validator
	ProjectsHandler   *projects.Handler
	ScopeItemsHandler *scopeitems.Handler
	TasksHandler      *tasks.Handler
	MasterDataHandler *masterdata.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router. Everything under /api/v1
// requires a valid bearer credential; health and metrics do not.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:    params.Logger,
		Config:    params.Config,
		Validator: params.Validator,
		Metrics:   params.Metrics,
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

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(params.Validator, params.Logger))
		if params.ProjectsHandler != nil {
			r.Route("/projects", params.ProjectsHandler.MountRoutes)
		}
		if params.ScopeItemsHandler != nil {
			r.Route("/scope-items", params.ScopeItemsHandler.MountRoutes)
		}
		if params.TasksHandler != nil {
			r.Route("/tasks", params.TasksHandler.MountRoutes)
		}
		if params.MasterDataHandler != nil {
			r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
		}
	})

	return r
}
