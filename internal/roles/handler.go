package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/steward-admin/steward/internal/platform/httpx"
	"github.com/steward-admin/steward/internal/rbac"
	"github.com/steward-admin/steward/internal/shared"
)

// Handler manages role management endpoints. Every route is restricted to
// the protected admin role.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbacSvc *rbac.Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacSvc *rbac.Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbacSvc: rbacSvc, rbac: mw}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.RequireRole(shared.RoleSuperAdmin)))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/new", h.createFormData)
		r.Get("/{id}", h.show)
		r.Get("/{id}/edit", h.editFormData)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

type roleRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if roles == nil {
		roles = []Role{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) createFormData(w http.ResponseWriter, r *http.Request) {
	perms, err := h.rbacSvc.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("load permission catalog", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Permissions must be an array.")
		return
	}

	role, err := h.service.Create(r.Context(), Input{Name: req.Name, Permissions: req.Permissions})
	if err != nil {
		h.respondMutationError(w, "create role", 0, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"role":    role,
		"message": "Role created successfully.",
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": role})
}

func (h *Handler) editFormData(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perms, err := h.rbacSvc.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("load permission catalog", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":        role,
		"permissions": perms,
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Permissions must be an array.")
		return
	}

	role, err := h.service.Update(r.Context(), id, Input{Name: req.Name, Permissions: req.Permissions})
	if err != nil {
		h.respondMutationError(w, "update role", id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":    role,
		"message": "Role updated successfully.",
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, shared.ErrForbidden) {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "Cannot delete the admin role.")
			return
		}
		h.respondMutationError(w, "delete role", id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "Role deleted successfully."})
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.ErrNotFound)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondMutationError(w http.ResponseWriter, op string, id int64, err error) {
	var verr *shared.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.FieldErrors(w, verr.Fields)
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, err)
	default:
		h.logger.Error(op+" failed", slog.Int64("role_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
