// Package roles implements role management: named permission sets with
// wholesale permission sync and a protected admin role.
package roles

import (
	"time"

	"github.com/steward-admin/steward/internal/rbac"
)

// Role is a named permission set assignable to users.
type Role struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Permissions []rbac.Permission `json:"permissions"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Input carries the fields accepted by create and update.
type Input struct {
	Name        string
	Permissions []string
}
