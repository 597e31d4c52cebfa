package groups

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/akademika-id/akademika/internal/platform/httpx"
	"github.com/akademika-id/akademika/internal/rbac"
	"github.com/akademika-id/akademika/internal/shared"
)

// Handler manages group administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers group routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.PermGroupsView))
		r.Get("/", h.listGroups)
		r.Get("/{groupID}/members", h.listMembers)
		r.Get("/{groupID}/permissions", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(shared.PermGroupsEdit))
		r.Post("/", h.createGroup)
		r.Delete("/{groupID}", h.deleteGroup)
		r.Post("/{groupID}/members", h.addMember)
		r.Delete("/{groupID}/members/{memberID}", h.removeMember)
		r.Post("/{groupID}/permissions", h.attachPermission)
		r.Delete("/{groupID}/permissions/{permissionID}", h.detachPermission)
	})
}

type groupView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGroups(r.Context())
	if err != nil {
		h.logger.Error("list groups failed", slog.Any("error", err))
		httpx.RespondError(w, r, err)
		return
	}
	views := make([]groupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, groupView{ID: g.ID, Name: g.Name, Kind: g.Kind})
	}
	httpx.JSON(w, http.StatusOK, views)
}

type createGroupRequest struct {
	Name string `json:"name" validate:"required"`
	Kind string `json:"kind" validate:"required,oneof=user role"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, r, http.StatusBadRequest, "Bad Request", "malformed json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, r, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	group, err := h.service.CreateGroup(r.Context(), req.Name, req.Kind)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, groupView{ID: group.ID, Name: group.Name, Kind: group.Kind})
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "groupID")
	if !ok {
		httpx.Problem(w, r, http.StatusBadRequest, "Bad Request", "invalid group id")
		return
	}
	if err := h.service.DeleteGroup(r.Context(), id); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "groupID")
	if !ok {
		httpx.Problem(w, r, http.StatusBadRequest, "Bad Request", "invalid group id")
		return
	}
	members, err := h.service.Members(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": members})
}

type memberRequest struct {
	MemberID int64 `json:"member_id" validate:"required,gt=0"`
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "groupID")
	if !ok {
		httpx.Problem(w, r, http.StatusBadRequest, "Bad Request", "invalid group id")
		return
	}
	var req memberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, r, http.StatusBadRequest, "Bad Request", "malformed json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, r, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.AddMember(r.Context(), id, req.MemberID); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r, "groupID")
	if !ok {
		httpx.Problem(w, r, http.StatusBadRequest, "Bad Request", "invalid group id")
		return
	}
	memberID, ok := pathID(r, "memberID")
	if !ok {
		httpx.Problem(w, r, http.StatusBadRequest, "Bad Request", "invalid member id")
		return
	}
	if err := h.service.RemoveMember(r.Context(), groupID, memberID); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "groupID")
	if !ok {
		httpx.Problem(w, r, http.StatusBadRequest, "Bad Request", "invalid group id")
		return
	}
	perms, err := h.service.Permissions(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

type permissionRequest struct {
	PermissionID int64 `json:"permission_id" validate:"required,gt=0"`
}

func (h *Handler) attachPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "groupID")
	if !ok {
		httpx.Problem(w, r, http.StatusBadRequest, "Bad Request", "invalid group id")
		return
	}
	var req permissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, r, http.StatusBadRequest, "Bad Request", "malformed json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, r, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.AttachPermission(r.Context(), id, req.PermissionID); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) detachPermission(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathID(r, "groupID")
	if !ok {
		httpx.Problem(w, r, http.StatusBadRequest, "Bad Request", "invalid group id")
		return
	}
	permissionID, ok := pathID(r, "permissionID")
	if !ok {
		httpx.Problem(w, r, http.StatusBadRequest, "Bad Request", "invalid permission id")
		return
	}
	if err := h.service.DetachPermission(r.Context(), groupID, permissionID); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
