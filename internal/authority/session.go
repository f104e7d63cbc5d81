package authority

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/estate/internal/roles"
	"github.com/terraconstructs/estate/internal/telemetry"
)

// MinPasswordLength is the shortest password sign-up accepts.
const MinPasswordLength = 6

// SignUpResult reports which sign-up follow-up steps succeeded. A returned
// result means the account exists; the profile and default role may still
// be missing and are backfilled server-side.
type SignUpResult struct {
	Principal      Principal
	Session        *Session
	ProfileCreated bool
	RoleAssigned   bool
}

// Provisioned reports whether both follow-up steps succeeded.
func (r *SignUpResult) Provisioned() bool {
	return r.ProfileCreated && r.RoleAssigned
}

// SignIn exchanges credentials for a session and installs it.
func (a *Authority) SignIn(ctx context.Context, email, password string) (*Session, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "authority.SignIn")
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		err := Validation("email and password are required")
		telemetry.RecordError(span, err)
		return nil, err
	}

	a.beginAuth()
	defer a.endAuth()

	sess, err := a.gateway.SignInWithPassword(ctx, email, password)
	if err != nil {
		e := classify(err, "sign-in failed")
		telemetry.RecordError(span, e)
		return nil, e
	}
	if sess == nil {
		return nil, Unexpected("gateway returned no session", nil)
	}

	a.install(sess)
	span.SetAttributes(attribute.String(telemetry.AttrUserID, sess.Principal.ID))
	return sess, nil
}

// SignUp creates an account. When the gateway returns a session the
// authority installs it and creates the profile and the default tenant
// role. Either step may fail without failing the sign-up.
func (a *Authority) SignUp(ctx context.Context, email, password, firstName, lastName string) (*SignUpResult, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "authority.SignUp")
	defer span.End()

	email = strings.TrimSpace(email)
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)

	var verr *Error
	switch {
	case email == "":
		verr = Validation("email is required")
	case len(password) < MinPasswordLength:
		verr = Validation("password must be at least 6 characters")
	case firstName == "" || lastName == "":
		verr = Validation("first and last name are required")
	}
	if verr != nil {
		telemetry.RecordError(span, verr)
		return nil, verr
	}

	a.beginAuth()
	defer a.endAuth()

	resp, err := a.gateway.SignUp(ctx, email, password, SignUpMetadata{FirstName: firstName, LastName: lastName})
	if err != nil {
		e := classify(err, "sign-up failed")
		telemetry.RecordError(span, e)
		return nil, e
	}

	result := &SignUpResult{Principal: resp.Principal, Session: resp.Session}
	span.SetAttributes(attribute.String(telemetry.AttrUserID, resp.Principal.ID))

	if resp.Session == nil {
		a.log.Info("sign-up awaiting confirmation, provisioning deferred", "user_id", resp.Principal.ID)
		return result, nil
	}

	gen := a.install(resp.Session)
	a.provision(ctx, gen, result, firstName, lastName)
	if !result.Provisioned() {
		telemetry.AddEvent(span, "provisioning.incomplete",
			attribute.Bool("profile_created", result.ProfileCreated),
			attribute.Bool("role_assigned", result.RoleAssigned),
		)
	}
	return result, nil
}

// provision runs the best-effort sign-up follow-up and folds its outcome
// into the snapshot of generation gen.
// The follow-up stops as soon as the principal changes.
func (a *Authority) provision(ctx context.Context, gen uint64, result *SignUpResult, firstName, lastName string) {
	p := result.Principal

	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		a.log.Debug("sign-up provisioning skipped, principal changed", "user_id", p.ID)
		return
	}
	genCtx := a.genCtx
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(genCtx, cancel)
	defer stop()

	profile, err := a.profiles.InsertProfile(ctx, Profile{
		ID:        p.ID,
		FirstName: firstName,
		LastName:  lastName,
		Email:     p.Email,
	})
	if err != nil {
		a.log.Warn("sign-up provisioning step failed", "step", "profile", "user_id", p.ID, "error", err)
	} else {
		result.ProfileCreated = true
	}

	if !a.current(gen) {
		a.log.Debug("sign-up provisioning stopped, principal changed", "user_id", p.ID)
		return
	}

	if err := a.roleStore.InsertRole(ctx, p.ID, roles.Default); err != nil {
		a.log.Warn("sign-up provisioning step failed", "step", "role", "user_id", p.ID, "error", err)
	} else {
		result.RoleAssigned = true
	}

	a.mu.Lock()
	if profile != nil && gen == a.gen {
		cp := *profile
		a.confirmed = &cp
		a.commitLocked(gen, resourceProfile, a.dispatchLocked(resourceProfile), func(s *Snapshot) {
			s.Profile = &cp
			s.ProfileLoaded = true
		})
	}
	if gen == a.gen {
		a.mutateLocked(func(s *Snapshot) { s.ProvisioningIncomplete = !result.Provisioned() })
	}
	a.mu.Unlock()

	if result.RoleAssigned {
		a.refreshRoles(ctx, gen)
	}
}

// SignOut clears all local state before contacting the gateway. Remote
// failures are logged and never restore the session.
func (a *Authority) SignOut(ctx context.Context) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "authority.SignOut")
	defer span.End()

	a.mu.Lock()
	hadSession := a.snap.Load().Session != nil
	if hadSession {
		a.signedOutToken = a.snap.Load().Session.AccessToken
	}
	a.resetLocked("signed_out")
	a.mu.Unlock()

	if !hadSession {
		return
	}
	if err := a.gateway.SignOut(ctx); err != nil {
		telemetry.RecordError(span, err)
		a.log.Warn("remote sign-out failed", "error", err)
	}
}

// SendPasswordResetEmail asks the gateway to mail a reset link that
// redirects back to this application.
func (a *Authority) SendPasswordResetEmail(ctx context.Context, email string) error {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "authority.SendPasswordResetEmail")
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" {
		return Validation("email is required")
	}
	if err := a.gateway.ResetPasswordForEmail(ctx, email, a.ResetRedirectURL()); err != nil {
		e := classify(err, "password reset failed")
		telemetry.RecordError(span, e)
		return e
	}
	return nil
}

// ResetPassword is an alias of SendPasswordResetEmail.
func (a *Authority) ResetPassword(ctx context.Context, email string) error {
	return a.SendPasswordResetEmail(ctx, email)
}

// ResetRedirectURL is where password-reset links land.
func (a *Authority) ResetRedirectURL() string {
	return strings.TrimRight(a.appOrigin, "/") + "/reset-password"
}

// install applies a session returned directly by the gateway and returns
// the generation it belongs to.
func (a *Authority) install(sess *Session) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.signedOutToken == sess.AccessToken {
		a.signedOutToken = ""
	}
	a.applySessionLocked(sess)
	a.markInitializedLocked()
	return a.gen
}

// handleEvent reconciles push notifications. Every event counts against
// an in-flight initial poll, even when it changes nothing.
func (a *Authority) handleEvent(ev AuthEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.pushSeq++

	switch ev.Type {
	case EventSignedOut:
		a.applySessionLocked(nil)
	case EventInitialSession:
		a.applySessionLocked(ev.Session)
		a.markInitializedLocked()
	default:
		if ev.Session != nil {
			a.applySessionLocked(ev.Session)
		}
	}
}

// applySessionLocked is the single entry point for session transitions.
// Applying the same session twice is a no-op; a new token for the same
// principal updates the session without refetching.
func (a *Authority) applySessionLocked(sess *Session) {
	if a.closed {
		return
	}
	if sess != nil && sess.Expired(a.clock.Now()) {
		a.log.Debug("ignoring expired session", "user_id", sess.Principal.ID)
		sess = nil
	}
	if sess != nil && a.signedOutToken != "" && sess.AccessToken == a.signedOutToken {
		a.log.Debug("ignoring signed-out session", "user_id", sess.Principal.ID)
		return
	}

	cur := a.snap.Load()
	switch {
	case sess == nil && cur.Session == nil:
		return
	case sess == nil:
		a.resetLocked("signed_out")
	case cur.Session != nil && cur.Session.Principal.ID == sess.Principal.ID:
		if sameSession(cur.Session, sess) || sess.ExpiresAt.Before(cur.Session.ExpiresAt) {
			return
		}
		cp := *sess
		a.mutateLocked(func(s *Snapshot) { s.Session = &cp })
		a.armExpiryLocked(&cp)
	default:
		a.beginPrincipalLocked(sess)
	}
}

// beginPrincipalLocked installs a new principal and fans out the dependent
// fetches under a fresh generation.
func (a *Authority) beginPrincipalLocked(sess *Session) {
	cur := a.snap.Load()
	a.nextGenerationLocked()

	cp := *sess
	next := emptySnapshot(a.gen)
	next.Session = &cp
	next.Initialized = cur.Initialized
	next.Authenticating = cur.Authenticating
	a.publishLocked(next)
	a.armExpiryLocked(&cp)

	a.metrics.PrincipalChanged(a.baseCtx, true)
	a.log.Info("principal changed", "user_id", cp.Principal.ID, "generation", a.gen)

	gen, ctx, p := a.gen, a.genCtx, cp.Principal
	rolesSeq := a.dispatchLocked(resourceRoles)
	profileSeq := a.dispatchLocked(resourceProfile)
	kycSeq := a.dispatchLocked(resourceKyc)

	a.wg.Add(3)
	go a.loadRoles(ctx, gen, rolesSeq, p)
	go a.loadProfile(ctx, gen, profileSeq, p)
	go a.loadKyc(ctx, gen, kycSeq, p)
}

func (a *Authority) armExpiryLocked(sess *Session) {
	a.stopExpiryLocked()
	if sess.ExpiresAt.IsZero() {
		return
	}
	gen, token := a.gen, sess.AccessToken
	a.expiry = a.clock.AfterFunc(sess.ExpiresAt.Sub(a.clock.Now()), func() {
		a.expire(gen, token)
	})
}

func (a *Authority) stopExpiryLocked() {
	if a.expiry != nil {
		a.expiry.Stop()
		a.expiry = nil
	}
}

func (a *Authority) expire(gen uint64, token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.snap.Load()
	if a.closed || gen != a.gen || cur.Session == nil || cur.Session.AccessToken != token {
		return
	}
	a.log.Info("session expired", "user_id", cur.Session.Principal.ID)
	a.resetLocked("expired")
}

func sameSession(a, b *Session) bool {
	return a.AccessToken == b.AccessToken && a.Principal == b.Principal && a.ExpiresAt.Equal(b.ExpiresAt)
}
