package authority

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/terraconstructs/estate/internal/roles"
)

func TestSnapshot_State(t *testing.T) {
	sess := &Session{AccessToken: "t", Principal: Principal{ID: "u1"}}

	tests := []struct {
		name    string
		snap    Snapshot
		state   State
		settled bool
	}{
		{"before start", Snapshot{}, StateUnauthenticated, false},
		{"signed out", Snapshot{Initialized: true}, StateUnauthenticated, true},
		{"signing in", Snapshot{Initialized: true, Authenticating: true}, StateAuthenticating, false},
		{"unhydrated", Snapshot{Initialized: true, Session: sess, RolesLoaded: true}, StateUnhydrated, false},
		{"hydrated", Snapshot{Initialized: true, Session: sess, RolesLoaded: true, ProfileLoaded: true, KycLoaded: true}, StateHydrated, true},
		{"switching principal", Snapshot{Initialized: true, Authenticating: true, Session: sess, RolesLoaded: true, ProfileLoaded: true, KycLoaded: true}, StateHydrated, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.state, tt.snap.State())
			assert.Equal(t, tt.settled, tt.snap.Settled())
		})
	}
}

func TestSnapshot_Accessors(t *testing.T) {
	s := Snapshot{
		Session: &Session{Principal: Principal{ID: "u1", Email: "a@example.com"}},
		Roles:   []roles.Role{roles.Tenant, roles.Landlord},
	}

	assert.Equal(t, "u1", s.Principal().ID)
	assert.True(t, s.HasRole(roles.Landlord))
	assert.False(t, s.HasRole(roles.Admin))
	assert.Nil(t, Snapshot{}.Principal())

	c := s.clone()
	c.Roles[0] = roles.Admin
	assert.Equal(t, roles.Tenant, s.Roles[0])
}
