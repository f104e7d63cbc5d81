package authority

import (
	"slices"

	"github.com/terraconstructs/estate/internal/roles"
)

// State is the propagation state of the authority.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateUnhydrated
	StateHydrated
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateUnhydrated:
		return "authenticated(unhydrated)"
	case StateHydrated:
		return "authenticated(hydrated)"
	default:
		return "unauthenticated"
	}
}

// Snapshot is an immutable view of the authority. A new value is published
// on every change; fields of a published snapshot are never mutated, so
// callers must not mutate Roles or Profile either.
type Snapshot struct {
	// Generation advances on every principal change.
	Generation uint64

	Session         *Session
	Roles           []roles.Role
	ActiveRole      roles.Role
	Profile         *Profile
	HasCompletedKyc bool

	// ProvisioningIncomplete is set when the sign-up follow-up could not
	// create the profile or the default role, or the profile is missing.
	ProvisioningIncomplete bool

	// Authenticating is set while a sign-in or sign-up is in flight. The
	// other fields still describe the previous state.
	Authenticating bool

	// Initialized is set once the initial session poll has resolved.
	Initialized bool

	RolesLoaded   bool
	ProfileLoaded bool
	KycLoaded     bool
}

func emptySnapshot(gen uint64) *Snapshot {
	return &Snapshot{Generation: gen, ActiveRole: roles.Default}
}

// State derives the propagation state.
func (s Snapshot) State() State {
	switch {
	case s.Session == nil && s.Authenticating:
		return StateAuthenticating
	case s.Session == nil:
		return StateUnauthenticated
	case s.RolesLoaded && s.ProfileLoaded && s.KycLoaded:
		return StateHydrated
	default:
		return StateUnhydrated
	}
}

// Loading is true until the initial poll has resolved and, with a session,
// until every dependent fetch for the current principal has completed.
func (s Snapshot) Loading() bool {
	if !s.Initialized || s.Authenticating {
		return true
	}
	return s.State() == StateUnhydrated
}

// Settled reports a resting state: unauthenticated or hydrated.
func (s Snapshot) Settled() bool {
	if !s.Initialized || s.Authenticating {
		return false
	}
	st := s.State()
	return st == StateUnauthenticated || st == StateHydrated
}

// Principal returns the signed-in principal or nil.
func (s Snapshot) Principal() *Principal {
	if s.Session == nil {
		return nil
	}
	p := s.Session.Principal
	return &p
}

// HasRole reports whether r is assigned to the current principal.
func (s Snapshot) HasRole(r roles.Role) bool {
	return roles.Contains(s.Roles, r)
}

func (s *Snapshot) clone() *Snapshot {
	c := *s
	c.Roles = slices.Clone(s.Roles)
	return &c
}
