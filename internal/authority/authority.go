// Package authority owns the signed-in principal and everything derived
// from it: session lifecycle, assigned and active roles, the profile, and
// the identity-verification gate.
//
// All state is published as an immutable Snapshot. Every principal change
// advances a generation counter; asynchronous fetches capture the
// generation at dispatch and their results are dropped if it has moved on.
package authority

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	"github.com/terraconstructs/estate/internal/prefs"
	"github.com/terraconstructs/estate/internal/roles"
	"github.com/terraconstructs/estate/internal/telemetry"
)

const tracerName = "estate/authority"

// Resources tracked per generation.
const (
	resourceRoles   = "roles"
	resourceProfile = "profile"
	resourceKyc     = "kyc"
)

// ErrClosed is returned by blocking calls on a closed authority.
var ErrClosed = errors.New("authority: closed")

// Options wires an Authority to its collaborators.
type Options struct {
	Gateway       Gateway
	Roles         RoleStore
	Profiles      ProfileStore
	Verifications VerificationStore

	// Prefs holds the device-local active role. Defaults to memory.
	Prefs prefs.Store

	// AppOrigin is the application's own origin; password-reset links
	// redirect to AppOrigin + "/reset-password".
	AppOrigin string

	// TieBreak picks the active role when the persisted one is not assigned.
	TieBreak roles.TieBreak

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *telemetry.AuthorityMetrics
}

// Authority is the single source of truth for who is signed in and what
// they may do. Construct one per process and share it by reference.
type Authority struct {
	gateway       Gateway
	roleStore     RoleStore
	profiles      ProfileStore
	verifications VerificationStore
	prefs         prefs.Store
	appOrigin     string
	tieBreak      roles.TieBreak
	clock         clock.Clock
	log           *slog.Logger
	metrics       *telemetry.AuthorityMetrics

	snap atomic.Pointer[Snapshot]

	mu         sync.Mutex
	gen        uint64
	baseCtx    context.Context
	baseCancel context.CancelFunc
	genCtx     context.Context
	genCancel  context.CancelFunc

	// dispatched and applied order writes per resource so an older fetch
	// never overwrites a newer one within a generation.
	dispatched map[string]uint64
	applied    map[string]uint64

	preferred      roles.Role
	confirmed      *Profile // last profile the backend confirmed
	expiry         *clock.Timer
	signedOutToken string
	pushSeq        uint64
	authenticating int

	sub     Subscription
	started bool
	closed  bool
	changed chan struct{}
	subs    map[int]chan Snapshot
	nextSub int

	wg  sync.WaitGroup
	kyc singleflight.Group
}

// New builds an Authority and reads the persisted active role once.
func New(opts Options) (*Authority, error) {
	switch {
	case opts.Gateway == nil:
		return nil, errors.New("authority: gateway is required")
	case opts.Roles == nil:
		return nil, errors.New("authority: role store is required")
	case opts.Profiles == nil:
		return nil, errors.New("authority: profile store is required")
	case opts.Verifications == nil:
		return nil, errors.New("authority: verification store is required")
	case opts.AppOrigin == "":
		return nil, errors.New("authority: app origin is required")
	}

	a := &Authority{
		gateway:       opts.Gateway,
		roleStore:     opts.Roles,
		profiles:      opts.Profiles,
		verifications: opts.Verifications,
		prefs:         opts.Prefs,
		appOrigin:     opts.AppOrigin,
		tieBreak:      opts.TieBreak,
		clock:         opts.Clock,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		dispatched:    make(map[string]uint64),
		applied:       make(map[string]uint64),
		changed:       make(chan struct{}),
		subs:          make(map[int]chan Snapshot),
	}
	if a.prefs == nil {
		a.prefs = prefs.NewMemoryStore()
	}
	if a.clock == nil {
		a.clock = clock.New()
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	a.log = a.log.With("component", "authority")

	a.baseCtx, a.baseCancel = context.WithCancel(context.Background())
	a.genCtx, a.genCancel = context.WithCancel(a.baseCtx)

	preferred, ok, err := prefs.Get(a.prefs, prefs.ActiveRole)
	switch {
	case err != nil:
		a.log.Warn("ignoring stored active role", "error", err)
	case ok:
		a.preferred = preferred
	}

	a.snap.Store(emptySnapshot(0))
	return a, nil
}

// Start subscribes to the gateway's push channel and then polls the current
// session. A push event that lands while the poll is in flight wins over
// the poll result. A failed poll leaves the authority unauthenticated.
func (a *Authority) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.mu.Unlock()

	sub := a.gateway.OnAuthStateChange(a.handleEvent)

	a.mu.Lock()
	a.sub = sub
	seq := a.pushSeq
	a.mu.Unlock()

	sess, err := a.gateway.GetSession(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	var pollErr error
	switch {
	case err != nil:
		pollErr = classify(err, "session poll failed")
		a.log.Warn("initial session poll failed", "error", err)
	case a.pushSeq != seq:
		a.log.Debug("initial poll superseded by push event")
	default:
		a.applySessionLocked(sess)
	}
	a.markInitializedLocked()
	return pollErr
}

// Close unsubscribes from the gateway, cancels in-flight fetches and stops
// the expiry timer. It waits for background fetches to return.
func (a *Authority) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	sub := a.sub
	a.genCancel()
	a.baseCancel()
	a.stopExpiryLocked()
	for id, ch := range a.subs {
		close(ch)
		delete(a.subs, id)
	}
	close(a.changed)
	a.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	a.wg.Wait()
}

// Snapshot returns the latest published state without blocking.
func (a *Authority) Snapshot() Snapshot {
	return *a.snap.Load()
}

// Subscribe delivers the current snapshot and then every change. Slow
// readers only see the latest value. The channel is closed by cancel or
// Close.
func (a *Authority) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		close(ch)
		return ch, func() {}
	}
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	ch <- *a.snap.Load()

	return ch, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if c, ok := a.subs[id]; ok {
			close(c)
			delete(a.subs, id)
		}
	}
}

// WaitHydrated blocks until the authority is settled: initialized, not
// authenticating, and either unauthenticated or fully hydrated.
func (a *Authority) WaitHydrated(ctx context.Context) (Snapshot, error) {
	for {
		a.mu.Lock()
		snap := *a.snap.Load()
		changed := a.changed
		closed := a.closed
		a.mu.Unlock()

		if snap.Settled() {
			return snap, nil
		}
		if closed {
			return snap, ErrClosed
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

func (a *Authority) publishLocked(next *Snapshot) {
	a.snap.Store(next)
	if a.closed {
		return
	}
	close(a.changed)
	a.changed = make(chan struct{})
	for _, ch := range a.subs {
		select {
		case <-ch:
		default:
		}
		ch <- *next
	}
}

// mutateLocked publishes a modified copy of the current snapshot.
func (a *Authority) mutateLocked(fn func(*Snapshot)) {
	next := a.snap.Load().clone()
	fn(next)
	a.publishLocked(next)
}

func (a *Authority) dispatchLocked(resource string) uint64 {
	a.dispatched[resource]++
	return a.dispatched[resource]
}

// commitOutcome says what happened to a fetched or written result.
type commitOutcome int

const (
	committed commitOutcome = iota
	// superseded: same principal, but a later write of the resource was
	// already applied. The result is still true for this principal.
	superseded
	// stale: the principal changed or the authority closed.
	stale
)

// commit applies fn if the result still belongs to the current generation
// and no later write of the same resource has been applied.
func (a *Authority) commit(gen uint64, resource string, seq uint64, fn func(*Snapshot)) commitOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.commitLocked(gen, resource, seq, fn)
}

func (a *Authority) commitLocked(gen uint64, resource string, seq uint64, fn func(*Snapshot)) commitOutcome {
	if a.closed || gen != a.gen {
		a.log.Debug("discarding stale result",
			"resource", resource, "generation", gen, "current_generation", a.gen)
		a.metrics.Stale(a.baseCtx, resource)
		return stale
	}
	if seq < a.applied[resource] {
		a.log.Debug("discarding superseded result", "resource", resource, "generation", gen)
		return superseded
	}
	a.applied[resource] = seq
	a.mutateLocked(fn)
	return committed
}

// current reports whether gen is still the live generation.
func (a *Authority) current(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.closed && gen == a.gen
}

func (a *Authority) markInitializedLocked() {
	if a.snap.Load().Initialized {
		return
	}
	a.mutateLocked(func(s *Snapshot) { s.Initialized = true })
}

func (a *Authority) beginAuth() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.authenticating++
	if a.authenticating == 1 {
		a.mutateLocked(func(s *Snapshot) { s.Authenticating = true })
	}
}

func (a *Authority) endAuth() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.authenticating--
	if a.authenticating == 0 {
		a.mutateLocked(func(s *Snapshot) { s.Authenticating = false })
	}
}

// nextGenerationLocked cancels everything tied to the previous principal.
func (a *Authority) nextGenerationLocked() {
	a.gen++
	a.genCancel()
	a.genCtx, a.genCancel = context.WithCancel(a.baseCtx)
	a.confirmed = nil
	a.stopExpiryLocked()
}

// resetLocked clears session, roles, profile and verification in one
// published snapshot.
func (a *Authority) resetLocked(reason string) {
	cur := a.snap.Load()
	hadSession := cur.Session != nil

	a.nextGenerationLocked()
	next := emptySnapshot(a.gen)
	next.Initialized = cur.Initialized
	next.Authenticating = cur.Authenticating
	a.publishLocked(next)

	if hadSession {
		a.metrics.PrincipalChanged(a.baseCtx, false)
		a.log.Info("session cleared", "reason", reason, "generation", a.gen)
	}
}
