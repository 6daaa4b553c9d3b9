package rbac

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// RepositoryPort defines the reads the service needs.
type RepositoryPort interface {
	UserRoleNames(ctx context.Context, userID int64) ([]string, error)
	UserPermissionNames(ctx context.Context, userID int64) ([]string, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// Service resolves actors and exposes the permission catalog.
type Service struct {
	repo  RepositoryPort
	group singleflight.Group
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ActorFor loads the actor's role names and effective permission set.
// Concurrent lookups for the same user collapse into one query pair.
// The returned Actor is shared across callers and must not be mutated.
func (s *Service) ActorFor(ctx context.Context, userID int64) (*Actor, error) {
	v, err, _ := s.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		roles, err := s.repo.UserRoleNames(ctx, userID)
		if err != nil {
			return nil, err
		}
		perms, err := s.repo.UserPermissionNames(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &Actor{ID: userID, Roles: roles, Permissions: perms}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Actor), nil
}

// ListPermissions returns the full permission catalog ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}
