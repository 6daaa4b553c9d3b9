// Package auth implements credential checks and login session lifecycle.
package auth

import "time"

// User represents an account loaded for authentication.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
