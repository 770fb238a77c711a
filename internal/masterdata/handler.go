// Package masterdata serves the client and supplier registries. Master
// data is read-only through this API; records are maintained by the
// back-office import jobs.
package masterdata

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
	r.Get("/clients", h.list(visibility.ClassClient))
	r.Get("/clients/{id}", h.show(visibility.ClassClient))
	r.Get("/suppliers", h.list(visibility.ClassSupplier))
	r.Get("/suppliers/{id}", h.show(visibility.ClassSupplier))
}

func (h *Handler) list(class visibility.Class) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := authn.PrincipalFromContext(r.Context())
		params := query.ParamsFromValues(r.URL.Query())

		result, err := h.facade.Fetch(r.Context(), principal, class, params)
		if err != nil {
			h.logger.Warn("list master data", slog.String("class", string(class)), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, result)
	}
}

func (h *Handler) show(class visibility.Class) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a UUID")
			return
		}
		principal := authn.PrincipalFromContext(r.Context())
		record, err := h.facade.FetchOne(r.Context(), principal, class, id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, record)
	}
}
