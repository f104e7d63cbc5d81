package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"

	"github.com/terraconstructs/estate/internal/roles"
)

// AuthorizeWithRoles reports whether any of the assigned roles grants act on
// obj. The enforcer is only read; user-to-role links come from the caller.
func AuthorizeWithRoles(enforcer casbin.IEnforcer, assigned []roles.Role, obj, act string) (bool, error) {
	if enforcer == nil {
		return false, fmt.Errorf("casbin enforcer not initialized")
	}
	for _, r := range assigned {
		allowed, err := enforcer.Enforce(RoleSubject(r), obj, act)
		if err != nil {
			return false, fmt.Errorf("enforce %s %s on %s: %w", r, act, obj, err)
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}
