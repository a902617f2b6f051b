package authflow

import (
	"context"
	"sync"
)

// StaticRoleDirectory is an in-memory [RoleDirectory] keyed by identity.
// It backs tests and single-binary deployments; production integrations
// usually implement [RoleDirectory] over their own user store.
type StaticRoleDirectory struct {
	mu    sync.RWMutex
	roles map[string]string
}

// NewStaticRoleDirectory creates a directory from an identity-to-role map.
// The map is copied; later mutations of the argument have no effect.
func NewStaticRoleDirectory(roles map[string]string) *StaticRoleDirectory {
	copied := make(map[string]string, len(roles))
	for identity, role := range roles {
		copied[identity] = role
	}
	return &StaticRoleDirectory{roles: copied}
}

// SetRole describes the setrole operation and its observable behavior.
//
// SetRole may return an error when input validation, dependency calls, or security checks fail.
// SetRole does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *StaticRoleDirectory) SetRole(identity, role string) {
	d.mu.Lock()
	d.roles[identity] = role
	d.mu.Unlock()
}

// RoleOf describes the roleof operation and its observable behavior.
//
// RoleOf may return an error when input validation, dependency calls, or security checks fail.
// RoleOf does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (d *StaticRoleDirectory) RoleOf(_ context.Context, identity string) (RoleRecord, bool, error) {
	d.mu.RLock()
	role, ok := d.roles[identity]
	d.mu.RUnlock()

	if !ok {
		return RoleRecord{}, false, nil
	}
	return RoleRecord{Identity: identity, Role: role}, true, nil
}
