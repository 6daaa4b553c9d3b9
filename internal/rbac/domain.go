// Package rbac implements the authorization model: the permission catalog,
// the actor's effective permission set, and the gate deciding whether an
// operation is allowed.
package rbac

import "strings"

// Permission represents an atomic capability from the catalog.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Actor is the authenticated principal a request acts as. Permissions holds
// the union of permission names across the actor's roles.
type Actor struct {
	ID          int64
	Roles       []string
	Permissions []string
}

// HasRole reports whether the actor holds a role with exactly this name.
func (a *Actor) HasRole(name string) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// HasPermission reports whether the actor's effective permission set contains
// the given name. Permission names compare case-insensitively.
func (a *Actor) HasPermission(name string) bool {
	if a == nil {
		return false
	}
	name = normalize(name)
	for _, p := range a.Permissions {
		if normalize(p) == name {
			return true
		}
	}
	return false
}

type requirementKind int

const (
	requirePermission requirementKind = iota
	requireAnyPermission
	requireRole
)

// Requirement is a tagged description of what an actor must hold: a single
// permission, any one of a permission list, or an exact role.
type Requirement struct {
	kind  requirementKind
	names []string
}

// RequirePermission requires one specific permission.
func RequirePermission(name string) Requirement {
	return Requirement{kind: requirePermission, names: []string{normalize(name)}}
}

// RequireAnyOf requires at least one of the listed permissions.
func RequireAnyOf(names ...string) Requirement {
	normalized := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = normalize(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}
	return Requirement{kind: requireAnyPermission, names: normalized}
}

// RequireRole requires a role whose name matches exactly.
func RequireRole(name string) Requirement {
	return Requirement{kind: requireRole, names: []string{strings.TrimSpace(name)}}
}

// Kind names the requirement variant, used for metrics labels.
func (r Requirement) Kind() string {
	switch r.kind {
	case requirePermission:
		return "permission"
	case requireAnyPermission:
		return "any_permission"
	case requireRole:
		return "role"
	}
	return "unknown"
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
