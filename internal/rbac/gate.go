package rbac

import "github.com/steward-admin/steward/internal/shared"

// Gate decides whether an actor satisfies a requirement. The decision is a
// pure read of the actor's role and permission sets; it never mutates state.
type Gate struct{}

// Authorize returns nil when the actor satisfies the requirement and
// shared.ErrForbidden otherwise. A nil actor or an empty requirement is
// always denied: the gate fails closed.
func (Gate) Authorize(actor *Actor, req Requirement) error {
	if actor == nil || len(req.names) == 0 {
		return shared.ErrForbidden
	}
	switch req.kind {
	case requirePermission:
		if actor.HasPermission(req.names[0]) {
			return nil
		}
	case requireAnyPermission:
		for _, name := range req.names {
			if actor.HasPermission(name) {
				return nil
			}
		}
	case requireRole:
		if actor.HasRole(req.names[0]) {
			return nil
		}
	}
	return shared.ErrForbidden
}
