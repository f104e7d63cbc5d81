package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/estate/internal/roles"
)

func TestParseRoles(t *testing.T) {
	got, err := parseRoles(nil)
	require.NoError(t, err)
	assert.Equal(t, []roles.Role{roles.Tenant}, got)

	got, err = parseRoles([]string{"Admin", "tenant", "admin"})
	require.NoError(t, err)
	assert.Equal(t, []roles.Role{roles.Tenant, roles.Admin}, got)

	_, err = parseRoles([]string{"owner", "landlord"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner")
}
