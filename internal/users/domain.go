// Package users implements account management: operator CRUD with
// per-field validation, wholesale role sync and an audit trail on deletion.
package users

import "time"

// User is an operator account. The password hash never leaves the package.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Username  *string   `json:"username,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListItem is the trimmed projection returned by the user listing.
type ListItem struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateInput carries the fields accepted by Create.
type CreateInput struct {
	Name                 string
	Email                string
	Username             string
	Phone                string
	Password             string
	PasswordConfirmation string
	Roles                []string
}

// UpdateInput carries the fields accepted by Update. A nil Roles slice leaves
// role membership untouched; an empty one clears it.
type UpdateInput struct {
	Name     string
	Email    string
	Username string
	Phone    string
	Roles    *[]string
}
