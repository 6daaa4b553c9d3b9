package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steward-admin/steward/internal/rbac"
	"github.com/steward-admin/steward/internal/shared"
)

type stubRoleRepo struct {
	roles     map[int64]Role
	catalog   []rbac.Permission
	nextID    int64
	createErr error
	updateErr error

	created []string
	updated []int64
	deleted []int64
}

func newStubRoleRepo() *stubRoleRepo {
	return &stubRoleRepo{
		roles:  make(map[int64]Role),
		nextID: 1,
		catalog: []rbac.Permission{
			{ID: 1, Name: "users.view"},
			{ID: 2, Name: "users.create"},
			{ID: 3, Name: "users.edit"},
			{ID: 4, Name: "users.delete"},
		},
	}
}

func (s *stubRoleRepo) seed(name string, perms ...rbac.Permission) Role {
	role := Role{ID: s.nextID, Name: name, Permissions: perms, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.roles[role.ID] = role
	s.nextID++
	return role
}

func (s *stubRoleRepo) List(ctx context.Context) ([]Role, error) {
	var out []Role
	for _, r := range s.roles {
		if r.Name != shared.RoleSuperAdmin {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRoleRepo) Get(ctx context.Context, id int64) (Role, error) {
	role, ok := s.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (s *stubRoleRepo) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	for _, r := range s.roles {
		if r.Name == name && r.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRoleRepo) PermissionsByName(ctx context.Context, names []string) ([]rbac.Permission, error) {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	var out []rbac.Permission
	for _, p := range s.catalog {
		if _, ok := want[strings.ToLower(p.Name)]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubRoleRepo) Create(ctx context.Context, name string, permissionIDs []int64) (Role, error) {
	if s.createErr != nil {
		return Role{}, s.createErr
	}
	s.created = append(s.created, name)
	role := Role{ID: s.nextID, Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	for _, pid := range permissionIDs {
		for _, p := range s.catalog {
			if p.ID == pid {
				role.Permissions = append(role.Permissions, p)
			}
		}
	}
	s.roles[role.ID] = role
	s.nextID++
	return role, nil
}

func (s *stubRoleRepo) Update(ctx context.Context, id int64, name string, permissionIDs []int64) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	role, ok := s.roles[id]
	if !ok {
		return shared.ErrNotFound
	}
	s.updated = append(s.updated, id)
	role.Name = name
	role.Permissions = nil
	for _, pid := range permissionIDs {
		for _, p := range s.catalog {
			if p.ID == pid {
				role.Permissions = append(role.Permissions, p)
			}
		}
	}
	s.roles[id] = role
	return nil
}

func (s *stubRoleRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := s.roles[id]; !ok {
		return shared.ErrNotFound
	}
	s.deleted = append(s.deleted, id)
	delete(s.roles, id)
	return nil
}

func TestCreateRole(t *testing.T) {
	repo := newStubRoleRepo()
	svc := NewService(repo)

	role, err := svc.Create(context.Background(), Input{
		Name:        " Editor ",
		Permissions: []string{"users.view", "USERS.EDIT", "users.view"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Editor", role.Name)
	require.Len(t, role.Permissions, 2)
	assert.Equal(t, []string{"Editor"}, repo.created)
}

func TestCreateRoleCollectsFieldErrors(t *testing.T) {
	repo := newStubRoleRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), Input{Name: "  "})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Role name is required.", verr.Fields["name"])
	assert.Equal(t, "Permissions are required.", verr.Fields["permissions"])
}

func TestCreateRoleRejectsTakenName(t *testing.T) {
	repo := newStubRoleRepo()
	repo.seed("Editor")
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), Input{Name: "Editor", Permissions: []string{"users.view"}})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Role name has already been taken.", verr.Fields["name"])
}

func TestCreateRoleRejectsUnknownPermission(t *testing.T) {
	repo := newStubRoleRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), Input{Name: "Editor", Permissions: []string{"users.view", "reports.export"}})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Permission 'reports.export' does not exist.", verr.Fields["permissions"])
	assert.Empty(t, repo.created)
}

func TestCreateRoleConflictBackstop(t *testing.T) {
	repo := newStubRoleRepo()
	repo.createErr = fmt.Errorf("role %q: %w", "Editor", shared.ErrConflict)
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), Input{Name: "Editor", Permissions: []string{"users.view"}})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Role name has already been taken.", verr.Fields["name"])
}

func TestUpdateRoleReplacesPermissions(t *testing.T) {
	repo := newStubRoleRepo()
	role := repo.seed("Editor", rbac.Permission{ID: 1, Name: "users.view"})
	svc := NewService(repo)

	updated, err := svc.Update(context.Background(), role.ID, Input{
		Name:        "Editor",
		Permissions: []string{"users.edit", "users.delete"},
	})
	require.NoError(t, err)
	require.Len(t, updated.Permissions, 2)
	assert.Equal(t, []int64{role.ID}, repo.updated)
}

func TestUpdateRoleIsIdempotent(t *testing.T) {
	repo := newStubRoleRepo()
	role := repo.seed("Editor")
	svc := NewService(repo)

	in := Input{Name: "Editor", Permissions: []string{"users.view"}}
	first, err := svc.Update(context.Background(), role.ID, in)
	require.NoError(t, err)
	second, err := svc.Update(context.Background(), role.ID, in)
	require.NoError(t, err)
	assert.Equal(t, first.Permissions, second.Permissions)
}

func TestUpdateRoleAllowsOwnName(t *testing.T) {
	repo := newStubRoleRepo()
	role := repo.seed("Editor")
	svc := NewService(repo)

	_, err := svc.Update(context.Background(), role.ID, Input{Name: "Editor", Permissions: []string{"users.view"}})
	require.NoError(t, err)
}

func TestUpdateRoleNotFound(t *testing.T) {
	repo := newStubRoleRepo()
	svc := NewService(repo)

	_, err := svc.Update(context.Background(), 99, Input{Name: "Editor", Permissions: []string{"users.view"}})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteRole(t *testing.T) {
	repo := newStubRoleRepo()
	role := repo.seed("Editor")
	svc := NewService(repo)

	require.NoError(t, svc.Delete(context.Background(), role.ID))
	assert.Equal(t, []int64{role.ID}, repo.deleted)
}

func TestDeleteRoleRefusesProtectedAdmin(t *testing.T) {
	repo := newStubRoleRepo()
	role := repo.seed(shared.RoleSuperAdmin)
	svc := NewService(repo)

	err := svc.Delete(context.Background(), role.ID)
	assert.True(t, errors.Is(err, shared.ErrForbidden))
	assert.Empty(t, repo.deleted)
}
