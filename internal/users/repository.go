package users

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/steward-admin/steward/internal/platform/db"
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

// List returns every account except excludeID, newest first.
func (r *Repository) List(ctx context.Context, excludeID int64) ([]ListItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, created_at
		FROM users
		WHERE id != $1
		ORDER BY created_at DESC, id DESC`, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ListItem
	for rows.Next() {
		var item ListItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Email, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// Get fetches one account with its role names.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, username, phone, created_at, updated_at
		FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Name, &user.Email, &user.Username, &user.Phone, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.name`, id)
	if err != nil {
		return User{}, err
	}
	defer rows.Close()

	user.Roles = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return User{}, err
		}
		user.Roles = append(user.Roles, name)
	}
	return user, rows.Err()
}

// EmailTaken reports whether another account already uses the email.
func (r *Repository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	return r.taken(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id != $2)`, email, excludeID)
}

// UsernameTaken reports whether another account already uses the username.
func (r *Repository) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	return r.taken(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id != $2)`, username, excludeID)
}

// PhoneTaken reports whether another account already uses the phone number.
func (r *Repository) PhoneTaken(ctx context.Context, phone string, excludeID int64) (bool, error) {
	return r.taken(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE phone = $1 AND id != $2)`, phone, excludeID)
}

func (r *Repository) taken(ctx context.Context, query, value string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, query, value, excludeID).Scan(&exists)
	return exists, err
}

// RolesByName resolves role names to ids. Unknown names are simply absent
// from the result.
func (r *Repository) RolesByName(ctx context.Context, names []string) ([]RoleRef, error) {
	lowered := make([]string, len(names))
	for i, n := range names {
		lowered[i] = strings.ToLower(strings.TrimSpace(n))
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, name FROM roles WHERE LOWER(name) = ANY($1)`, lowered)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []RoleRef
	for rows.Next() {
		var ref RoleRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// RoleNames lists assignable role names, the protected admin role excluded.
func (r *Repository) RoleNames(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name FROM roles WHERE name != $1 ORDER BY name`, shared.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Create inserts the account and its role memberships in one transaction.
func (r *Repository) Create(ctx context.Context, in NewUser) (User, error) {
	var user User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (name, email, username, phone, password_hash)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, name, email, username, phone, created_at, updated_at`,
			in.Name, in.Email, in.Username, in.Phone, in.PasswordHash).
			Scan(&user.ID, &user.Name, &user.Email, &user.Username, &user.Phone, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return err
		}
		for _, rid := range in.RoleIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, user.ID, rid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return User{}, mapUniqueViolation(err)
	}
	user.Roles = []string{}
	return user, nil
}

// Update applies the profile change and, when RoleIDs is non-nil, replaces
// the role membership wholesale. Runs in one transaction.
func (r *Repository) Update(ctx context.Context, id int64, in UserUpdate) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET name = $1, email = $2, username = $3, phone = $4, updated_at = NOW()
			WHERE id = $5`,
			in.Name, in.Email, in.Username, in.Phone, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		if in.RoleIDs == nil {
			return nil
		}
		return syncUserRoles(ctx, tx, id, *in.RoleIDs)
	})
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

// Delete writes the audit entry and removes the account atomically. Role
// memberships cascade.
func (r *Repository) Delete(ctx context.Context, id int64, entry shared.AuditLog) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := shared.RecordAudit(ctx, tx, entry); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// syncUserRoles makes the membership rows match roleIDs exactly: rows not
// listed are deleted, newly listed ones inserted.
func syncUserRoles(ctx context.Context, tx pgx.Tx, userID int64, roleIDs []int64) error {
	keep := make(map[int64]struct{}, len(roleIDs))
	for _, rid := range roleIDs {
		keep[rid] = struct{}{}
	}

	rows, err := tx.Query(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	existing := make(map[int64]struct{})
	for rows.Next() {
		var rid int64
		if err := rows.Scan(&rid); err != nil {
			rows.Close()
			return err
		}
		existing[rid] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for rid := range existing {
		if _, ok := keep[rid]; !ok {
			if _, err := tx.Exec(ctx,
				`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, rid); err != nil {
				return err
			}
		}
	}
	for _, rid := range roleIDs {
		if _, ok := existing[rid]; !ok {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, rid); err != nil {
				return err
			}
		}
	}
	return nil
}

// mapUniqueViolation folds constraint hits into the field errors the
// pre-checks would have produced. The constraint is authoritative under
// concurrent writes.
func mapUniqueViolation(err error) error {
	for constraint, field := range map[string]struct{ name, msg string }{
		"uq_users_email":    {"email", msgEmailTaken},
		"uq_users_username": {"username", msgUsernameTaken},
		"uq_users_phone":    {"phone", msgPhoneTaken},
	} {
		if db.IsUniqueViolation(err, constraint) {
			verr := shared.NewValidationError()
			verr.Add(field.name, field.msg)
			return verr
		}
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
