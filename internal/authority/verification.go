package authority

import (
	"context"
	"errors"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/estate/internal/telemetry"
)

// CheckStatus reports whether principalID has an approved verification
// record. A missing record and a failed query both return false but are
// logged differently; neither is surfaced as an error.
func (a *Authority) CheckStatus(ctx context.Context, principalID string) bool {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "authority.CheckStatus",
		attribute.String(telemetry.AttrUserID, principalID))
	defer span.End()

	v, err := a.verifications.GetVerification(ctx, principalID)
	switch {
	case err == nil && v != nil:
		span.SetAttributes(attribute.String(telemetry.AttrKYCStatus, string(v.Status)))
		return v.Status == VerificationApproved
	case err == nil, errors.Is(err, ErrNotFound):
		a.log.Debug("verification record not found", "user_id", principalID)
		return false
	default:
		telemetry.RecordError(span, err)
		if ctx.Err() == nil {
			a.log.Warn("verification check degraded", "user_id", principalID, "error", err)
			a.metrics.Degraded(ctx, resourceKyc)
		}
		return false
	}
}

// CheckKycStatus re-checks verification for the current principal and
// publishes the result. Concurrent calls share one backend query.
func (a *Authority) CheckKycStatus(ctx context.Context) bool {
	a.mu.Lock()
	cur := a.snap.Load()
	if cur.Session == nil {
		a.mu.Unlock()
		return false
	}
	gen, genCtx, p := a.gen, a.genCtx, cur.Session.Principal
	seq := a.dispatchLocked(resourceKyc)
	a.mu.Unlock()

	key := strconv.FormatUint(gen, 10) + ":" + p.ID
	ch := a.kyc.DoChan(key, func() (any, error) {
		return a.CheckStatus(genCtx, p.ID), nil
	})

	var approved bool
	select {
	case res := <-ch:
		approved = res.Val.(bool)
	case <-ctx.Done():
		return a.Snapshot().HasCompletedKyc
	}

	// A later caller may already have published the same shared answer;
	// only a principal change makes it wrong for this caller.
	if a.commit(gen, resourceKyc, seq, func(s *Snapshot) {
		s.HasCompletedKyc = approved
		s.KycLoaded = true
	}) == stale {
		return false
	}
	return approved
}

func (a *Authority) loadKyc(ctx context.Context, gen, seq uint64, p Principal) {
	defer a.wg.Done()
	approved := a.CheckStatus(ctx, p.ID)
	a.commit(gen, resourceKyc, seq, func(s *Snapshot) {
		s.HasCompletedKyc = approved
		s.KycLoaded = true
	})
}
