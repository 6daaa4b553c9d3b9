package roles

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steward-admin/steward/internal/rbac"
	"github.com/steward-admin/steward/internal/shared"
	_ "github.com/steward-admin/steward/testing"
)

type stubRBACRepo struct {
	roles []string
}

func (s *stubRBACRepo) UserRoleNames(ctx context.Context, userID int64) ([]string, error) {
	return s.roles, nil
}

func (s *stubRBACRepo) UserPermissionNames(ctx context.Context, userID int64) ([]string, error) {
	return nil, nil
}

func (s *stubRBACRepo) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	return []rbac.Permission{{ID: 1, Name: "users.view", Description: "View users"}}, nil
}

func newTestRouter(repo *stubRoleRepo, actorRoles []string) chi.Router {
	logger := slog.New(slog.DiscardHandler)
	rbacSvc := rbac.NewService(&stubRBACRepo{roles: actorRoles})
	mw := rbac.Middleware{Service: rbacSvc, Logger: logger}
	handler := NewHandler(logger, NewService(repo), rbacSvc, mw)

	r := chi.NewRouter()
	r.Route("/roles", handler.MountRoutes)
	return r
}

func doRequest(t *testing.T, router chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	sess := &shared.Session{ID: "test-session"}
	sess.SetUser("1")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestRolesRequireAdminRole(t *testing.T) {
	router := newTestRouter(newStubRoleRepo(), []string{"editor"})

	res := doRequest(t, router, http.MethodGet, "/roles", "")
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestListRolesEndpoint(t *testing.T) {
	repo := newStubRoleRepo()
	repo.seed("Editor", rbac.Permission{ID: 1, Name: "users.view"})
	router := newTestRouter(repo, []string{shared.RoleSuperAdmin})

	res := doRequest(t, router, http.MethodGet, "/roles", "")
	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		Roles []Role `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.Len(t, payload.Roles, 1)
	assert.Equal(t, "Editor", payload.Roles[0].Name)
}

func TestCreateRoleEndpoint(t *testing.T) {
	repo := newStubRoleRepo()
	router := newTestRouter(repo, []string{shared.RoleSuperAdmin})

	res := doRequest(t, router, http.MethodPost, "/roles", `{"name":"Editor","permissions":["users.view"]}`)
	require.Equal(t, http.StatusCreated, res.Code)

	var payload struct {
		Role    Role   `json:"role"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.Equal(t, "Role created successfully.", payload.Message)
	assert.Equal(t, "Editor", payload.Role.Name)
}

func TestCreateRoleEndpointValidation(t *testing.T) {
	router := newTestRouter(newStubRoleRepo(), []string{shared.RoleSuperAdmin})

	res := doRequest(t, router, http.MethodPost, "/roles", `{"name":"","permissions":[]}`)
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)

	var payload struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.Equal(t, "Role name is required.", payload.Errors["name"])
	assert.Equal(t, "Permissions are required.", payload.Errors["permissions"])
}

func TestCreateRoleEndpointRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(newStubRoleRepo(), []string{shared.RoleSuperAdmin})

	res := doRequest(t, router, http.MethodPost, "/roles", `{"name":"Editor","permissions":"users.view"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Permissions must be an array.")
}

func TestUpdateRoleEndpoint(t *testing.T) {
	repo := newStubRoleRepo()
	role := repo.seed("Editor")
	router := newTestRouter(repo, []string{shared.RoleSuperAdmin})

	res := doRequest(t, router, http.MethodPut, "/roles/1", `{"name":"Reviewer","permissions":["users.view"]}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Role updated successfully.")
	assert.Equal(t, "Reviewer", repo.roles[role.ID].Name)
}

func TestDeleteRoleEndpoint(t *testing.T) {
	repo := newStubRoleRepo()
	repo.seed("Editor")
	router := newTestRouter(repo, []string{shared.RoleSuperAdmin})

	res := doRequest(t, router, http.MethodDelete, "/roles/1", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Role deleted successfully.")
}

func TestDeleteProtectedRoleEndpoint(t *testing.T) {
	repo := newStubRoleRepo()
	repo.seed(shared.RoleSuperAdmin)
	router := newTestRouter(repo, []string{shared.RoleSuperAdmin})

	res := doRequest(t, router, http.MethodDelete, "/roles/1", "")
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), "Cannot delete the admin role.")
}

func TestShowRoleEndpointNotFound(t *testing.T) {
	router := newTestRouter(newStubRoleRepo(), []string{shared.RoleSuperAdmin})

	res := doRequest(t, router, http.MethodGet, "/roles/99", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestNewRoleFormData(t *testing.T) {
	router := newTestRouter(newStubRoleRepo(), []string{shared.RoleSuperAdmin})

	res := doRequest(t, router, http.MethodGet, "/roles/new", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "users.view")
}
