package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/steward-admin/steward/internal/rbac"
	"github.com/steward-admin/steward/internal/shared"
)

// Validation messages surfaced to the operator.
const (
	msgNameRequired       = "Role name is required."
	msgNameTaken          = "Role name has already been taken."
	msgPermissionsMissing = "Permissions are required."
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	List(ctx context.Context) ([]Role, error)
	Get(ctx context.Context, id int64) (Role, error)
	NameTaken(ctx context.Context, name string, excludeID int64) (bool, error)
	PermissionsByName(ctx context.Context, names []string) ([]rbac.Permission, error)
	Create(ctx context.Context, name string, permissionIDs []int64) (Role, error)
	Update(ctx context.Context, id int64, name string, permissionIDs []int64) error
	Delete(ctx context.Context, id int64) error
}

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns all roles with their permissions, newest first. The protected
// admin role is excluded.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// Get fetches one role with its permissions.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.Get(ctx, id)
}

// Create validates the input and persists a new role whose permission set is
// exactly the resolved list.
func (s *Service) Create(ctx context.Context, in Input) (Role, error) {
	permissionIDs, err := s.validate(ctx, in, 0)
	if err != nil {
		return Role{}, err
	}

	role, err := s.repo.Create(ctx, strings.TrimSpace(in.Name), permissionIDs)
	if err != nil {
		// The unique constraint is authoritative under concurrent creates.
		if errors.Is(err, shared.ErrConflict) {
			verr := shared.NewValidationError()
			verr.Add("name", msgNameTaken)
			return Role{}, verr
		}
		return Role{}, fmt.Errorf("roles: create %q: %w", in.Name, err)
	}
	return role, nil
}

// Update renames the role and replaces its permission set wholesale.
// Applying the same permission list twice yields the same final set.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Role, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Role{}, err
	}

	permissionIDs, err := s.validate(ctx, in, id)
	if err != nil {
		return Role{}, err
	}

	if err := s.repo.Update(ctx, id, strings.TrimSpace(in.Name), permissionIDs); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			verr := shared.NewValidationError()
			verr.Add("name", msgNameTaken)
			return Role{}, verr
		}
		return Role{}, fmt.Errorf("roles: update %d: %w", id, err)
	}
	return s.repo.Get(ctx, id)
}

// Delete removes the role and detaches it from every user. The protected
// admin role is refused regardless of who asks.
func (s *Service) Delete(ctx context.Context, id int64) error {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if role.Name == shared.RoleSuperAdmin {
		return shared.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("roles: delete %d: %w", id, err)
	}
	return nil
}

// validate collects every violated field and resolves permission names to
// catalog IDs. excludeID exempts the role itself from the name uniqueness
// check on update.
func (s *Service) validate(ctx context.Context, in Input, excludeID int64) ([]int64, error) {
	verr := shared.NewValidationError()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		verr.Add("name", msgNameRequired)
	} else {
		taken, err := s.repo.NameTaken(ctx, name, excludeID)
		if err != nil {
			return nil, fmt.Errorf("roles: check name: %w", err)
		}
		if taken {
			verr.Add("name", msgNameTaken)
		}
	}

	var permissionIDs []int64
	if len(in.Permissions) == 0 {
		verr.Add("permissions", msgPermissionsMissing)
	} else {
		resolved, err := s.repo.PermissionsByName(ctx, in.Permissions)
		if err != nil {
			return nil, fmt.Errorf("roles: resolve permissions: %w", err)
		}
		byName := make(map[string]int64, len(resolved))
		for _, p := range resolved {
			byName[strings.ToLower(p.Name)] = p.ID
		}
		seen := make(map[int64]struct{}, len(in.Permissions))
		for _, n := range in.Permissions {
			id, ok := byName[strings.ToLower(strings.TrimSpace(n))]
			if !ok {
				verr.Add("permissions", fmt.Sprintf("Permission '%s' does not exist.", strings.TrimSpace(n)))
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			permissionIDs = append(permissionIDs, id)
		}
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}
	return permissionIDs, nil
}
