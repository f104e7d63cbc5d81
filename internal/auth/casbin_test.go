package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/auth/bunadapter"
	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/roles"
)

func newPolicyDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()
	db, err := bunx.NewDB(ctx, ":memory:", bunx.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.NewCreateTable().Model((*bunadapter.CasbinRule)(nil)).Exec(ctx)
	require.NoError(t, err)
	return db
}

func TestInitEnforcer_RolesAndPersistence(t *testing.T) {
	db := newPolicyDB(t)

	e, err := InitEnforcer(db)
	require.NoError(t, err)
	_, err = e.AddPolicies(SeedPolicies)
	require.NoError(t, err)

	alice := UserSubject("alice")
	_, err = e.AddGroupingPolicy(alice, RoleSubject(roles.Admin))
	require.NoError(t, err)

	ok, err := e.Enforce(alice, ObjectRoles, ActionWrite)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Enforce(UserSubject("bob"), ObjectRoles, ActionWrite)
	require.NoError(t, err)
	assert.False(t, ok)

	// A second enforcer over the same table sees the persisted rules.
	reloaded, err := InitEnforcer(db)
	require.NoError(t, err)
	ok, err = reloaded.Enforce(alice, ObjectVerifications, ActionRead)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = reloaded.RemoveGroupingPolicy(alice, RoleSubject(roles.Admin))
	require.NoError(t, err)
	again, err := InitEnforcer(db)
	require.NoError(t, err)
	ok, err = again.Enforce(alice, ObjectRoles, ActionWrite)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthorizeWithRoles(t *testing.T) {
	e, err := InitEnforcer(newPolicyDB(t))
	require.NoError(t, err)
	_, err = e.AddPolicies(SeedPolicies)
	require.NoError(t, err)

	tests := []struct {
		name     string
		assigned []roles.Role
		obj, act string
		want     bool
	}{
		{"no roles", nil, ObjectRoles, ActionRead, false},
		{"tenant", []roles.Role{roles.Tenant}, ObjectRoles, ActionRead, false},
		{"manager reads", []roles.Role{roles.Tenant, roles.Manager}, ObjectRoles, ActionRead, true},
		{"manager cannot write", []roles.Role{roles.Manager}, ObjectRoles, ActionWrite, false},
		{"admin wildcard", []roles.Role{roles.Admin}, ObjectVerifications, ActionWrite, true},
		{"admin profile write not granted", []roles.Role{roles.Admin}, ObjectProfiles, ActionWrite, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AuthorizeWithRoles(e, tt.assigned, tt.obj, tt.act)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = AuthorizeWithRoles(nil, []roles.Role{roles.Admin}, ObjectRoles, ActionRead)
	assert.Error(t, err)
}

func TestRoleSubject(t *testing.T) {
	assert.Equal(t, "role:landlord", RoleSubject(roles.Landlord))
	r, err := ParseRoleSubject("role:vendor")
	require.NoError(t, err)
	assert.Equal(t, roles.Vendor, r)
	_, err = ParseRoleSubject("user:x")
	assert.Error(t, err)
}
