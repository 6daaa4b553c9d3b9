package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/steward-admin/steward/internal/platform/db"
	"github.com/steward-admin/steward/internal/rbac"
	"github.com/steward-admin/steward/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns every role except the protected admin role, newest first,
// each with its permission set.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM roles
		WHERE name != $1
		ORDER BY created_at DESC, id DESC`, shared.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Role
	ids := make([]int64, 0, 8)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.Permissions = []rbac.Permission{}
		result = append(result, role)
		ids = append(ids, role.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}

	perms, err := r.permissionsForRoles(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		if p, ok := perms[result[i].ID]; ok {
			result[i].Permissions = p
		}
	}
	return result, nil
}

// Get fetches one role with its permission set.
func (r *Repository) Get(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	perms, err := r.permissionsForRoles(ctx, []int64{role.ID})
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms[role.ID]
	if role.Permissions == nil {
		role.Permissions = []rbac.Permission{}
	}
	return role, nil
}

// NameTaken reports whether another role already uses the name.
func (r *Repository) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1 AND id != $2)`, name, excludeID).
		Scan(&exists)
	return exists, err
}

// PermissionsByName resolves catalog permissions matching the given names.
// Unknown names are simply absent from the result.
func (r *Repository) PermissionsByName(ctx context.Context, names []string) ([]rbac.Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description FROM permissions WHERE LOWER(name) = ANY($1)`, lowered(names))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []rbac.Permission
	for rows.Next() {
		var p rbac.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// Create inserts the role and attaches the given permissions in one
// transaction.
func (r *Repository) Create(ctx context.Context, name string, permissionIDs []int64) (Role, error) {
	var role Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO roles (name) VALUES ($1) RETURNING id, name, created_at, updated_at`, name).
			Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
		if err != nil {
			return err
		}
		for _, pid := range permissionIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, role.ID, pid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "uq_roles_name") {
			return Role{}, fmt.Errorf("role %q: %w", name, shared.ErrConflict)
		}
		return Role{}, err
	}
	return role, nil
}

// Update renames the role and syncs its permission set: rows not listed are
// deleted, newly listed rows are inserted. Runs in one transaction.
func (r *Repository) Update(ctx context.Context, id int64, name string, permissionIDs []int64) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE roles SET name = $1, updated_at = NOW() WHERE id = $2`, name, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}

		keep := make(map[int64]struct{}, len(permissionIDs))
		for _, pid := range permissionIDs {
			keep[pid] = struct{}{}
		}

		rows, err := tx.Query(ctx,
			`SELECT permission_id FROM role_permissions WHERE role_id = $1`, id)
		if err != nil {
			return err
		}
		existing := make(map[int64]struct{})
		for rows.Next() {
			var pid int64
			if err := rows.Scan(&pid); err != nil {
				rows.Close()
				return err
			}
			existing[pid] = struct{}{}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for pid := range existing {
			if _, ok := keep[pid]; !ok {
				if _, err := tx.Exec(ctx,
					`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, id, pid); err != nil {
					return err
				}
			}
		}
		for _, pid := range permissionIDs {
			if _, ok := existing[pid]; !ok {
				if _, err := tx.Exec(ctx,
					`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, id, pid); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "uq_roles_name") {
			return fmt.Errorf("role %q: %w", name, shared.ErrConflict)
		}
		return err
	}
	return nil
}

// Delete removes the role. Association rows cascade; users keep their other
// roles.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) permissionsForRoles(ctx context.Context, roleIDs []int64) (map[int64][]rbac.Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rp.role_id, p.id, p.name, p.description
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1)
		ORDER BY p.name`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64][]rbac.Permission)
	for rows.Next() {
		var roleID int64
		var p rbac.Permission
		if err := rows.Scan(&roleID, &p.ID, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		result[roleID] = append(result[roleID], p)
	}
	return result, rows.Err()
}

func lowered(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToLower(strings.TrimSpace(n))
	}
	return out
}

var _ RepositoryPort = (*Repository)(nil)
