// Package scopeitems serves the scope item listing. Scope items are
// read-only through the API; they are maintained by the estimating
// pipeline upstream.
package scopeitems

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/armature-app/armature/internal/authn"
	"github.com/armature-app/armature/internal/platform/httpx"
	"github.com/armature-app/armature/internal/query"
	"github.com/armature-app/armature/internal/visibility"
)

type Handler struct {
	logger *slog.Logger
	facade *query.Facade
}

func NewHandler(logger *slog.Logger, facade *query.Facade) *Handler {
	return &Handler{logger: logger, facade: facade}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Show)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal := authn.PrincipalFromContext(r.Context())
	params := query.ParamsFromValues(r.URL.Query())

	result, err := h.facade.Fetch(r.Context(), principal, visibility.ClassScopeItem, params)
	if err != nil {
		h.logger.Warn("list scope items", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "scope item id must be a UUID")
		return
	}
	principal := authn.PrincipalFromContext(r.Context())
	record, err := h.facade.FetchOne(r.Context(), principal, visibility.ClassScopeItem, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}
