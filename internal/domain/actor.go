package domain

import "slices"

// PermissionSystem marks edges that only automated processes may trigger.
const PermissionSystem = "system"

// permissionAll grants every non-system permission.
const permissionAll = "*"

// Actor is the admin user or process requesting a transition.
type Actor struct {
	ID          string
	Permissions []string
	System      bool
}

// SystemActor returns the actor used by automated transitions.
func SystemActor(id string) Actor {
	return Actor{ID: id, System: true}
}

// Can reports whether the actor holds the given permission.
func (a Actor) Can(permission string) bool {
	if permission == PermissionSystem {
		return a.System
	}
	if a.System {
		return true
	}
	return slices.Contains(a.Permissions, permission) || slices.Contains(a.Permissions, permissionAll)
}
