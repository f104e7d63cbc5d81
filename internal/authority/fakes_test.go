package authority

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/estate/internal/logging"
	"github.com/terraconstructs/estate/internal/prefs"
	"github.com/terraconstructs/estate/internal/roles"
)

type fakeAccount struct {
	password  string
	principal Principal
}

type resetCall struct {
	email    string
	redirect string
}

// fakeGateway is an in-memory credential gateway. Push events are only
// delivered through emit so tests control their timing.
type fakeGateway struct {
	mu sync.RWMutex

	clock    clock.Clock
	ttl      time.Duration
	accounts map[string]fakeAccount
	session  *Session
	tokenSeq int

	handlers map[int]func(AuthEvent)
	nextSub  int

	signInErr     error
	signUpErr     error
	signOutErr    error
	getSessionErr error
	resetErr      error
	confirmSignUp bool // sign-up returns no session

	signOutCalls int
	resets       []resetCall
}

func newFakeGateway(clk clock.Clock) *fakeGateway {
	return &fakeGateway{
		clock:    clk,
		ttl:      time.Hour,
		accounts: make(map[string]fakeAccount),
		handlers: make(map[int]func(AuthEvent)),
	}
}

func (g *fakeGateway) addAccount(id, email, password string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accounts[email] = fakeAccount{password: password, principal: Principal{ID: id, Email: email}}
}

func (g *fakeGateway) newSessionLocked(p Principal) *Session {
	g.tokenSeq++
	return &Session{
		AccessToken: fmt.Sprintf("token-%d", g.tokenSeq),
		ExpiresAt:   g.clock.Now().Add(g.ttl),
		Principal:   p,
	}
}

func (g *fakeGateway) SignInWithPassword(_ context.Context, email, password string) (*Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.signInErr != nil {
		return nil, g.signInErr
	}
	acct, ok := g.accounts[email]
	if !ok || acct.password != password {
		return nil, Credential("invalid login credentials", nil)
	}
	g.session = g.newSessionLocked(acct.principal)
	cp := *g.session
	return &cp, nil
}

func (g *fakeGateway) SignUp(_ context.Context, email, password string, _ SignUpMetadata) (*GatewaySignUp, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.signUpErr != nil {
		return nil, g.signUpErr
	}
	if _, exists := g.accounts[email]; exists {
		return nil, Credential("user already registered", nil)
	}
	p := Principal{ID: "user-" + email, Email: email}
	g.accounts[email] = fakeAccount{password: password, principal: p}
	resp := &GatewaySignUp{Principal: p}
	if !g.confirmSignUp {
		g.session = g.newSessionLocked(p)
		cp := *g.session
		resp.Session = &cp
	}
	return resp, nil
}

func (g *fakeGateway) SignOut(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.signOutCalls++
	g.session = nil
	return g.signOutErr
}

func (g *fakeGateway) ResetPasswordForEmail(_ context.Context, email, redirectURL string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resetErr != nil {
		return g.resetErr
	}
	g.resets = append(g.resets, resetCall{email: email, redirect: redirectURL})
	return nil
}

func (g *fakeGateway) GetSession(context.Context) (*Session, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.getSessionErr != nil {
		return nil, g.getSessionErr
	}
	if g.session == nil {
		return nil, nil
	}
	cp := *g.session
	return &cp, nil
}

type fakeSubscription struct {
	g  *fakeGateway
	id int
}

func (s fakeSubscription) Unsubscribe() {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	delete(s.g.handlers, s.id)
}

func (g *fakeGateway) OnAuthStateChange(fn func(AuthEvent)) Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextSub
	g.nextSub++
	g.handlers[id] = fn
	return fakeSubscription{g: g, id: id}
}

func (g *fakeGateway) emit(ev AuthEvent) {
	g.mu.RLock()
	handlers := make([]func(AuthEvent), 0, len(g.handlers))
	for _, h := range g.handlers {
		handlers = append(handlers, h)
	}
	g.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (g *fakeGateway) subscribers() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.handlers)
}

// fakeRoleStore serves role assignments. A gate blocks GetRoles for one
// principal until closed, ignoring cancellation, so tests can deliver a
// result after the principal has changed.
type fakeRoleStore struct {
	mu        sync.RWMutex
	assigned  map[string][]roles.Role
	getErr    map[string]error
	gates     map[string]chan struct{}
	calls     map[string]int
	insertErr error
}

func newFakeRoleStore() *fakeRoleStore {
	return &fakeRoleStore{
		assigned: make(map[string][]roles.Role),
		getErr:   make(map[string]error),
		gates:    make(map[string]chan struct{}),
		calls:    make(map[string]int),
	}
}

func (s *fakeRoleStore) set(id string, rs ...roles.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assigned[id] = rs
}

func (s *fakeRoleStore) gate(id string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.gates[id] = ch
	return ch
}

func (s *fakeRoleStore) callCount(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[id]
}

func (s *fakeRoleStore) GetRoles(_ context.Context, id string) ([]roles.Role, error) {
	s.mu.Lock()
	s.calls[id]++
	gate := s.gates[id]
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.getErr[id]; err != nil {
		return nil, err
	}
	return append([]roles.Role(nil), s.assigned[id]...), nil
}

func (s *fakeRoleStore) InsertRole(_ context.Context, id string, r roles.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	if !roles.Contains(s.assigned[id], r) {
		s.assigned[id] = append(s.assigned[id], r)
	}
	return nil
}

func (s *fakeRoleStore) DeleteRole(_ context.Context, id string, r roles.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []roles.Role
	for _, have := range s.assigned[id] {
		if have != r {
			kept = append(kept, have)
		}
	}
	s.assigned[id] = kept
	return nil
}

// fakeProfileStore gates: getGate ignores cancellation like the role gate;
// insertGate gives up when the caller's context ends.
type fakeProfileStore struct {
	mu         sync.RWMutex
	profiles   map[string]Profile
	getErr     map[string]error
	updateErr  error
	insertErr  error
	getGate    chan struct{}
	updateGate chan struct{}
	insertGate chan struct{}
	gets       int
	inserts    int
	insertWait int
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{
		profiles: make(map[string]Profile),
		getErr:   make(map[string]error),
	}
}

func (s *fakeProfileStore) put(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

func (s *fakeProfileStore) get(id string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	return p, ok
}

func (s *fakeProfileStore) getCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gets
}

func (s *fakeProfileStore) insertWaiting() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.insertWait
}

func (s *fakeProfileStore) GetProfile(_ context.Context, id string) (*Profile, error) {
	s.mu.Lock()
	s.gets++
	gate := s.getGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.getErr[id]; err != nil {
		return nil, err
	}
	p, ok := s.profiles[id]
	if !ok {
		return nil, NotFound("profile not found")
	}
	return &p, nil
}

func (s *fakeProfileStore) InsertProfile(ctx context.Context, p Profile) (*Profile, error) {
	s.mu.Lock()
	gate := s.insertGate
	if gate != nil {
		s.insertWait++
	}
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	s.inserts++
	if existing, ok := s.profiles[p.ID]; ok {
		return &existing, nil
	}
	s.profiles[p.ID] = p
	return &p, nil
}

func (s *fakeProfileStore) UpdateProfile(_ context.Context, id string, patch ProfilePatch) (*Profile, error) {
	s.mu.RLock()
	gate := s.updateGate
	s.mu.RUnlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	p, ok := s.profiles[id]
	if !ok {
		return nil, NotFound("profile not found")
	}
	p = patch.Apply(p)
	s.profiles[id] = p
	return &p, nil
}

type fakeVerificationStore struct {
	mu      sync.RWMutex
	records map[string]Verification
	getErr  map[string]error
	calls   int
	gate    chan struct{}
}

func newFakeVerificationStore() *fakeVerificationStore {
	return &fakeVerificationStore{
		records: make(map[string]Verification),
		getErr:  make(map[string]error),
	}
}

func (s *fakeVerificationStore) set(id string, status VerificationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = Verification{UserID: id, Status: status}
}

func (s *fakeVerificationStore) callCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

func (s *fakeVerificationStore) GetVerification(_ context.Context, id string) (*Verification, error) {
	s.mu.Lock()
	s.calls++
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.getErr[id]; err != nil {
		return nil, err
	}
	v, ok := s.records[id]
	if !ok {
		return nil, NotFound("verification not found")
	}
	return &v, nil
}

// failingPrefs rejects every write.
type failingPrefs struct{ prefs.MemoryStore }

func (f *failingPrefs) Set(string, string) error { return fmt.Errorf("disk full") }

type harness struct {
	a        *Authority
	gw       *fakeGateway
	roles    *fakeRoleStore
	profiles *fakeProfileStore
	kyc      *fakeVerificationStore
	prefs    prefs.Store
	clock    *clock.Mock
}

func newHarness(t *testing.T, configure ...func(*Options)) *harness {
	t.Helper()

	clk := clock.NewMock()
	h := &harness{
		gw:       newFakeGateway(clk),
		roles:    newFakeRoleStore(),
		profiles: newFakeProfileStore(),
		kyc:      newFakeVerificationStore(),
		prefs:    prefs.NewMemoryStore(),
		clock:    clk,
	}

	opts := Options{
		Gateway:       h.gw,
		Roles:         h.roles,
		Profiles:      h.profiles,
		Verifications: h.kyc,
		Prefs:         h.prefs,
		AppOrigin:     "https://app.example.com",
		Clock:         clk,
		Logger:        logging.Discard().Logger,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	h.prefs = opts.Prefs

	a, err := New(opts)
	require.NoError(t, err)
	h.a = a
	t.Cleanup(a.Close)
	return h
}

// seedUser registers a complete account: credentials, roles, profile and
// optionally an approved verification.
func (h *harness) seedUser(id, email string, verified bool, rs ...roles.Role) {
	h.gw.addAccount(id, email, "secret123")
	h.roles.set(id, rs...)
	h.profiles.put(Profile{ID: id, Email: email, FirstName: "First-" + id, LastName: "Last-" + id})
	if verified {
		h.kyc.set(id, VerificationApproved)
	}
}

func (h *harness) waitSettled(t *testing.T) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := h.a.WaitHydrated(ctx)
	require.NoError(t, err)
	return snap
}

func (h *harness) signIn(t *testing.T, email string) Snapshot {
	t.Helper()
	_, err := h.a.SignIn(context.Background(), email, "secret123")
	require.NoError(t, err)
	return h.waitSettled(t)
}
