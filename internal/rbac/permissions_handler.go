package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/akademika-id/akademika/internal/platform/httpx"
)

// PermissionsHandler exposes the permission catalog for administrative display.
type PermissionsHandler struct {
	service *Service
	logger  *slog.Logger
}

// NewPermissionsHandler constructs the handler.
func NewPermissionsHandler(service *Service, logger *slog.Logger) *PermissionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionsHandler{service: service, logger: logger}
}

// MountRoutes attaches permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

type permissionView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity,omitempty"`
}

func (h *PermissionsHandler) list(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, r, err)
		return
	}
	views := make([]permissionView, 0, len(perms))
	for _, p := range perms {
		views = append(views, permissionView{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Severity:    p.Severity,
		})
	}
	httpx.JSON(w, http.StatusOK, views)
}
