package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/akademika-id/akademika/internal/platform/httpx"
	"github.com/akademika-id/akademika/internal/rbac"
	"github.com/akademika-id/akademika/internal/shared"
)

// Handler manages role management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.PermRolesView))
		r.Get("/", h.listRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.PermRolesEdit))
		r.Put("/{id}/parent", h.setParent)
	})
}

type roleView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    *int64 `json:"parent_id,omitempty"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles failed", slog.Any("error", err))
		httpx.RespondError(w, r, err)
		return
	}
	views := make([]roleView, 0, len(roles))
	for _, role := range roles {
		views = append(views, roleView{
			ID:          role.ID,
			Name:        role.Name,
			Description: role.Description,
			ParentID:    role.ParentID,
		})
	}
	httpx.JSON(w, http.StatusOK, views)
}

type setParentRequest struct {
	ParentID *int64 `json:"parent_id"`
}

func (h *Handler) setParent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, r, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	var req setParentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, r, http.StatusBadRequest, "Bad Request", "malformed json body")
		return
	}
	if err := h.service.SetParent(r.Context(), id, req.ParentID); err != nil {
		if errors.Is(err, ErrParentCycle) {
			httpx.Problem(w, r, http.StatusUnprocessableEntity, "Invalid Parent", err.Error())
			return
		}
		h.logger.Error("set role parent failed", slog.Int64("role_id", id), slog.Any("error", err))
		httpx.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
