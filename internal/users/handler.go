package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/steward-admin/steward/internal/platform/httpx"
	"github.com/steward-admin/steward/internal/rbac"
	"github.com/steward-admin/steward/internal/shared"
)

// Handler manages user management endpoints. Routes are permission-gated
// individually; listing and detail accept any user-management permission.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: mw}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	anyManage := rbac.RequireAnyOf(
		shared.PermUsersView,
		shared.PermUsersCreate,
		shared.PermUsersEdit,
		shared.PermUsersDelete,
	)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(anyManage))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.RequirePermission(shared.PermUsersCreate)))
		r.Get("/new", h.createFormData)
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.RequirePermission(shared.PermUsersEdit)))
		r.Get("/{id}/edit", h.editFormData)
		r.Put("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.RequirePermission(shared.PermUsersDelete)))
		r.Delete("/{id}", h.delete)
	})
}

type createRequest struct {
	Name                 string   `json:"name"`
	Email                string   `json:"email"`
	Username             string   `json:"username"`
	Phone                string   `json:"phone"`
	Password             string   `json:"password"`
	PasswordConfirmation string   `json:"password_confirmation"`
	Roles                []string `json:"roles"`
}

type updateRequest struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	Phone    string    `json:"phone"`
	Roles    *[]string `json:"roles"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if users == nil {
		users = []ListItem{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) createFormData(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.AssignableRoles(r.Context())
	if err != nil {
		h.logger.Error("load assignable roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if roles == nil {
		roles = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Request body must be valid JSON.")
		return
	}

	user, err := h.service.Create(r.Context(), CreateInput{
		Name:                 req.Name,
		Email:                req.Email,
		Username:             req.Username,
		Phone:                req.Phone,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
		Roles:                req.Roles,
	})
	if err != nil {
		var verr *shared.ValidationError
		if errors.As(err, &verr) {
			httpx.FieldErrors(w, verr.Fields)
			return
		}
		h.logger.Error("create user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"user":    user,
		"message": "User created successfully.",
	})
}

// editFormData returns the profile under edit together with the assignable
// role list, fetched concurrently.
func (h *Handler) editFormData(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	var (
		user  User
		roles []string
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		user, err = h.service.Get(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = h.service.AssignableRoles(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("load user edit data", slog.Int64("user_id", id), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	if roles == nil {
		roles = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":  user,
		"roles": roles,
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Request body must be valid JSON.")
		return
	}

	user, err := h.service.Update(r.Context(), id, UpdateInput{
		Name:     req.Name,
		Email:    req.Email,
		Username: req.Username,
		Phone:    req.Phone,
		Roles:    req.Roles,
	})
	if err != nil {
		var verr *shared.ValidationError
		switch {
		case errors.As(err, &verr):
			httpx.FieldErrors(w, verr.Fields)
		case errors.Is(err, shared.ErrNotFound):
			httpx.RespondError(w, err)
		default:
			h.logger.Error("user update failed", slog.Int64("user_id", id), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "Failed to update user. Please try again.")
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"message": "User updated successfully.",
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			httpx.RespondError(w, err)
		case errors.Is(err, shared.ErrForbidden):
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "You cannot delete your own account.")
		default:
			h.logger.Error("user deletion failed", slog.Int64("user_id", id), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "Failed to delete user. Please try again.")
		}
		return
	}
	h.logger.Info("user deleted", slog.Int64("user_id", id))
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "User deleted successfully."})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.ErrNotFound)
		return 0, false
	}
	return id, true
}
