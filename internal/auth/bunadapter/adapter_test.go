package bunadapter

import (
	"context"
	"testing"

	"github.com/casbin/casbin/v2/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/estate/internal/db/bunx"
)

const testModel = `
[request_definition]
r = sub, obj, act
[policy_definition]
p = sub, obj, act
[role_definition]
g = _, _
[policy_effect]
e = some(where (p.eft == allow))
[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

func TestAdapter_AddRemoveLoad(t *testing.T) {
	ctx := context.Background()
	db, err := bunx.NewDB(ctx, ":memory:", bunx.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.NewCreateTable().Model((*CasbinRule)(nil)).Exec(ctx)
	require.NoError(t, err)

	a := NewAdapter(db)
	require.NoError(t, a.AddPolicies("p", "p", [][]string{
		{"role:admin", "roles", "write"},
		{"role:manager", "roles", "read"},
	}))
	require.NoError(t, a.AddPolicy("g", "g", []string{"user:1", "role:admin"}))
	require.NoError(t, a.AddPolicy("g", "g", []string{"user:1", "role:admin"}), "duplicates are ignored")
	require.NoError(t, a.AddPolicy("g", "g", []string{"user:2", "role:manager"}))

	m, err := model.NewModelFromString(testModel)
	require.NoError(t, err)
	require.NoError(t, a.LoadPolicy(m))
	assert.Len(t, m["p"]["p"].Policy, 2)
	assert.Len(t, m["g"]["g"].Policy, 2)

	require.NoError(t, a.RemoveFilteredPolicy("g", "g", 0, "user:1"))
	require.NoError(t, a.RemovePolicy("p", "p", []string{"role:manager", "roles", "read"}))

	m, err = model.NewModelFromString(testModel)
	require.NoError(t, err)
	require.NoError(t, a.LoadPolicy(m))
	assert.Equal(t, [][]string{{"role:admin", "roles", "write"}}, m["p"]["p"].Policy)
	assert.Equal(t, [][]string{{"user:2", "role:manager"}}, m["g"]["g"].Policy)

	require.NoError(t, a.SavePolicy(m))
	count, err := db.NewSelect().Model((*CasbinRule)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCasbinRule_String(t *testing.T) {
	r := newRule("p", []string{"role:admin", "", "read"})
	assert.Equal(t, "p, role:admin, , read", r.String())
	assert.Equal(t, []string{"role:admin", "", "read"}, r.values())
}
