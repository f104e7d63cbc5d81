package auth

import (
	"fmt"
	"strings"

	"github.com/terraconstructs/estate/internal/roles"
)

// Casbin subject prefixes.
const (
	PrefixUser = "user:"
	PrefixRole = "role:"
)

// UserSubject returns the Casbin subject for a user id.
func UserSubject(id string) string {
	return PrefixUser + id
}

// RoleSubject returns the Casbin subject for a role.
func RoleSubject(r roles.Role) string {
	return PrefixRole + string(r)
}

// ParseRoleSubject is the inverse of RoleSubject.
func ParseRoleSubject(subject string) (roles.Role, error) {
	if !strings.HasPrefix(subject, PrefixRole) {
		return "", fmt.Errorf("invalid role subject %q", subject)
	}
	return roles.Parse(strings.TrimPrefix(subject, PrefixRole))
}

// Objects and actions checked by the directory service.
const (
	ObjectRoles         = "roles"
	ObjectProfiles      = "profiles"
	ObjectVerifications = "verifications"

	ActionRead  = "read"
	ActionWrite = "write"
)

// SeedPolicies are the default grants installed by migrations.
var SeedPolicies = [][]string{
	{RoleSubject(roles.Admin), ObjectRoles, "*"},
	{RoleSubject(roles.Admin), ObjectVerifications, "*"},
	{RoleSubject(roles.Admin), ObjectProfiles, ActionRead},
	{RoleSubject(roles.Manager), ObjectRoles, ActionRead},
	{RoleSubject(roles.Manager), ObjectVerifications, ActionRead},
	{RoleSubject(roles.Manager), ObjectProfiles, ActionRead},
}
