package authority

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/estate/internal/prefs"
	"github.com/terraconstructs/estate/internal/roles"
	"github.com/terraconstructs/estate/internal/telemetry"
)

// IsValidRole reports membership in the closed role set.
func IsValidRole(r roles.Role) bool {
	return roles.IsValid(r)
}

// ResolveActiveRole keeps persisted when it is assigned and otherwise
// applies the configured tie-break.
func (a *Authority) ResolveActiveRole(persisted roles.Role, assigned []roles.Role) roles.Role {
	return roles.Resolve(persisted, assigned, a.tieBreak)
}

// SetActiveRole switches the role the user is wearing. An unknown role
// shows tenant and is not persisted. A known role is persisted even when it
// is not currently assigned; the snapshot then shows the resolved role so it
// stays within the assigned set.
func (a *Authority) SetActiveRole(ctx context.Context, role roles.Role) {
	_, span := telemetry.StartSpan(ctx, tracerName, "authority.SetActiveRole",
		attribute.String(telemetry.AttrRole, string(role)))
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()

	if !roles.IsValid(role) {
		a.log.Debug("ignoring invalid active role", "role", string(role))
		a.preferred = roles.Default
		a.mutateLocked(func(s *Snapshot) { s.ActiveRole = roles.Default })
		return
	}
	if err := prefs.Set(a.prefs, prefs.ActiveRole, role); err != nil {
		telemetry.RecordError(span, err)
		a.log.Warn("failed to persist active role", "role", string(role), "error", err)
	}

	a.preferred = role
	a.mutateLocked(func(s *Snapshot) {
		s.ActiveRole = roles.Resolve(role, s.Roles, a.tieBreak)
	})
}

// RefreshRoles refetches the current principal's roles and re-resolves
// the active role if it was revoked.
func (a *Authority) RefreshRoles(ctx context.Context) []roles.Role {
	a.mu.Lock()
	gen := a.gen
	a.mu.Unlock()

	a.refreshRoles(ctx, gen)
	return a.Snapshot().Roles
}

func (a *Authority) refreshRoles(ctx context.Context, gen uint64) {
	a.mu.Lock()
	cur := a.snap.Load()
	if gen != a.gen || cur.Session == nil {
		a.mu.Unlock()
		return
	}
	p := cur.Session.Principal
	seq := a.dispatchLocked(resourceRoles)
	a.mu.Unlock()

	assigned := a.fetchRoles(ctx, p.ID)
	a.commit(gen, resourceRoles, seq, func(s *Snapshot) { a.applyRoles(s, assigned) })
}

func (a *Authority) loadRoles(ctx context.Context, gen, seq uint64, p Principal) {
	defer a.wg.Done()
	assigned := a.fetchRoles(ctx, p.ID)
	a.commit(gen, resourceRoles, seq, func(s *Snapshot) { a.applyRoles(s, assigned) })
}

// fetchRoles fails open: any error yields no roles.
func (a *Authority) fetchRoles(ctx context.Context, principalID string) []roles.Role {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "authority.fetchRoles",
		attribute.String(telemetry.AttrUserID, principalID))
	defer span.End()

	fetched, err := a.roleStore.GetRoles(ctx, principalID)
	if err != nil {
		telemetry.RecordError(span, err)
		if ctx.Err() == nil {
			a.log.Warn("role fetch degraded", "user_id", principalID, "error", err)
			a.metrics.Degraded(ctx, resourceRoles)
		}
		return nil
	}

	assigned := roles.Sanitize(fetched)
	if len(assigned) != len(fetched) {
		a.log.Debug("dropped unknown or duplicate roles", "user_id", principalID,
			"fetched", len(fetched), "kept", len(assigned))
	}
	return assigned
}

// applyRoles runs under a.mu inside a commit. The persisted preference wins
// when assigned; otherwise a still-assigned current role is kept; otherwise
// the resolution algorithm runs again.
func (a *Authority) applyRoles(s *Snapshot, assigned []roles.Role) {
	active := s.ActiveRole
	switch {
	case roles.IsValid(a.preferred) && roles.Contains(assigned, a.preferred):
		active = a.preferred
	case s.RolesLoaded && roles.Contains(assigned, active):
	default:
		active = roles.Resolve(a.preferred, assigned, a.tieBreak)
	}

	s.Roles = assigned
	s.RolesLoaded = true
	s.ActiveRole = active
}
