package authority

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/estate/internal/telemetry"
)

func (a *Authority) loadProfile(ctx context.Context, gen, seq uint64, p Principal) {
	defer a.wg.Done()

	profile, err := a.fetchProfile(ctx, p.ID)
	missing := errors.Is(err, ErrNotFound)

	a.mu.Lock()
	defer a.mu.Unlock()
	outcome := a.commitLocked(gen, resourceProfile, seq, func(s *Snapshot) {
		s.Profile = profile
		s.ProfileLoaded = true
		if missing {
			s.ProvisioningIncomplete = true
		}
		if profile != nil {
			a.confirmed = profile
		}
	})
	if outcome != superseded {
		return
	}

	// An UpdateProfile raced the first load. Its optimistic value stays on
	// screen, but the loaded row becomes the rollback target if nothing has
	// been confirmed yet, and hydration still completes.
	if a.confirmed == nil && profile != nil {
		a.confirmed = profile
	}
	if a.snap.Load().ProfileLoaded {
		return
	}
	a.mutateLocked(func(s *Snapshot) {
		s.ProfileLoaded = true
		if s.Profile == nil {
			s.Profile = profile
		}
		if missing {
			s.ProvisioningIncomplete = true
		}
	})
}

// fetchProfile returns nil with the error on failure; errors degrade to an
// empty profile in the snapshot.
func (a *Authority) fetchProfile(ctx context.Context, principalID string) (*Profile, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "authority.fetchProfile",
		attribute.String(telemetry.AttrUserID, principalID))
	defer span.End()

	p, err := a.profiles.GetProfile(ctx, principalID)
	switch {
	case err == nil && p != nil:
		cp := *p
		return &cp, nil
	case err == nil, errors.Is(err, ErrNotFound):
		a.log.Debug("profile not found", "user_id", principalID)
		return nil, ErrNotFound
	default:
		telemetry.RecordError(span, err)
		if ctx.Err() == nil {
			a.log.Warn("profile fetch degraded", "user_id", principalID, "error", err)
			a.metrics.Degraded(ctx, resourceProfile)
		}
		return nil, err
	}
}

// UpdateProfile merges patch into the cached profile immediately, then
// confirms with the backend. On failure the cache rolls back to the last
// confirmed value. A missing profile row is created from the merged value.
func (a *Authority) UpdateProfile(ctx context.Context, patch ProfilePatch) (*Profile, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "authority.UpdateProfile")
	defer span.End()

	if patch.Empty() {
		return nil, Validation("nothing to update")
	}

	a.mu.Lock()
	cur := a.snap.Load()
	if cur.Session == nil {
		a.mu.Unlock()
		return nil, ErrNotSignedIn
	}
	gen, p := a.gen, cur.Session.Principal
	seq := a.dispatchLocked(resourceProfile)

	base := Profile{ID: p.ID, Email: p.Email}
	if cur.Profile != nil {
		base = *cur.Profile
	}
	merged := patch.Apply(base)
	a.commitLocked(gen, resourceProfile, seq, func(s *Snapshot) { s.Profile = &merged })
	a.mu.Unlock()

	confirmed, err := a.profiles.UpdateProfile(ctx, p.ID, patch)
	if errors.Is(err, ErrNotFound) {
		a.log.Info("profile missing on update, creating", "user_id", p.ID)
		confirmed, err = a.profiles.InsertProfile(ctx, merged)
	}
	if err == nil && confirmed == nil {
		err = Unexpected("profile store returned no profile", nil)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		e := classify(err, "profile update failed")
		telemetry.RecordError(span, e)
		rollback := a.confirmed
		if a.commitLocked(gen, resourceProfile, seq, func(s *Snapshot) { s.Profile = rollback }) == committed {
			a.log.Warn("profile update failed, rolled back", "user_id", p.ID, "error", err)
		}
		return nil, e
	}

	cp := *confirmed
	if gen == a.gen {
		a.confirmed = &cp
	}
	a.commitLocked(gen, resourceProfile, seq, func(s *Snapshot) {
		s.Profile = &cp
		s.ProfileLoaded = true
	})
	span.SetAttributes(attribute.String(telemetry.AttrUserID, p.ID))

	out := cp
	return &out, nil
}
