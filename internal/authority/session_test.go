package authority

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/estate/internal/roles"
)

func assertCleared(t *testing.T, snap Snapshot) {
	t.Helper()
	assert.Nil(t, snap.Session)
	assert.Empty(t, snap.Roles)
	assert.Nil(t, snap.Profile)
	assert.False(t, snap.HasCompletedKyc)
	assert.Equal(t, roles.Tenant, snap.ActiveRole)
	assert.Equal(t, StateUnauthenticated, snap.State())
}

func TestSignIn_ValidatesBeforeNetwork(t *testing.T) {
	h := newHarness(t)
	h.gw.signInErr = errors.New("gateway must not be called")

	for _, tc := range []struct{ email, password string }{
		{"", "secret123"},
		{"   ", "secret123"},
		{"a@example.com", ""},
	} {
		_, err := h.a.SignIn(context.Background(), tc.email, tc.password)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestSignIn_RejectedCredentials(t *testing.T) {
	h := newHarness(t)
	h.seedUser("u1", "a@example.com", false, roles.Tenant)

	_, err := h.a.SignIn(context.Background(), "a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrCredential)
	assert.Nil(t, h.a.Snapshot().Session)
	assert.False(t, h.a.Snapshot().Authenticating)
}

func TestSignIn_TransportFailure(t *testing.T) {
	h := newHarness(t)
	h.gw.signInErr = context.DeadlineExceeded

	_, err := h.a.SignIn(context.Background(), "a@example.com", "secret123")
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestSignIn_Hydrates(t *testing.T) {
	h := newHarness(t)
	h.seedUser("u1", "a@example.com", true, roles.Landlord)

	snap := h.signIn(t, "a@example.com")

	assert.Equal(t, StateHydrated, snap.State())
	assert.False(t, snap.Loading())
	assert.Equal(t, []roles.Role{roles.Landlord}, snap.Roles)
	assert.Equal(t, roles.Landlord, snap.ActiveRole)
	assert.True(t, snap.HasCompletedKyc)
}

func TestSignOut_ClearsEverything(t *testing.T) {
	for _, tc := range []struct {
		name      string
		remoteErr error
	}{
		{"remote ok", nil},
		{"remote fails", Network("connection reset", nil)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.seedUser("u1", "a@example.com", true, roles.Landlord, roles.Agent)
			snap := h.signIn(t, "a@example.com")
			require.Equal(t, StateHydrated, snap.State())

			h.gw.signOutErr = tc.remoteErr
			h.a.SignOut(context.Background())

			assertCleared(t, h.a.Snapshot())
			assert.Equal(t, 1, h.gw.signOutCalls)
		})
	}
}

func TestSignOut_NoPartialClearObservable(t *testing.T) {
	h := newHarness(t)
	h.seedUser("u1", "a@example.com", true, roles.Landlord)
	h.signIn(t, "a@example.com")

	ch, cancel := h.a.Subscribe()
	<-ch

	h.a.SignOut(context.Background())
	cancel()

	for snap := range ch {
		if snap.Session == nil {
			assert.Empty(t, snap.Roles)
			assert.Nil(t, snap.Profile)
			assert.False(t, snap.HasCompletedKyc)
		}
	}
}

func TestSignOut_IgnoresLatePushOfOldSession(t *testing.T) {
	h := newHarness(t)
	h.seedUser("u1", "a@example.com", false, roles.Tenant)
	snap := h.signIn(t, "a@example.com")
	old := snap.Session

	h.a.SignOut(context.Background())
	h.gw.emit(AuthEvent{Type: EventSignedIn, Session: old})

	assertCleared(t, h.a.Snapshot())
}

func TestSignOut_WhenSignedOutSkipsRemote(t *testing.T) {
	h := newHarness(t)
	h.a.SignOut(context.Background())
	assert.Equal(t, 0, h.gw.signOutCalls)
	assertCleared(t, h.a.Snapshot())
}

func TestSignUp_ShortPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.a.SignUp(context.Background(), "new@example.com", "abcde", "A", "B")

	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "at least 6 characters")
	h.gw.mu.RLock()
	assert.Empty(t, h.gw.accounts)
	h.gw.mu.RUnlock()
}

func TestSignUp_MissingNames(t *testing.T) {
	h := newHarness(t)

	_, err := h.a.SignUp(context.Background(), "new@example.com", "abcdef", " ", "B")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.a.SignUp(context.Background(), "", "abcdef", "A", "B")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSignUp_ProvisionsProfileAndTenantRole(t *testing.T) {
	h := newHarness(t)

	res, err := h.a.SignUp(context.Background(), "new@example.com", "abcdef", "Ada", "Lovelace")
	require.NoError(t, err)
	assert.True(t, res.Provisioned())
	require.NotNil(t, res.Session)

	snap := h.waitSettled(t)
	assert.Equal(t, res.Principal.ID, snap.Principal().ID)
	assert.Equal(t, []roles.Role{roles.Tenant}, snap.Roles)
	assert.Equal(t, roles.Tenant, snap.ActiveRole)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "Ada", snap.Profile.FirstName)
	assert.False(t, snap.ProvisioningIncomplete)
	assert.False(t, snap.HasCompletedKyc)

	stored, ok := h.profiles.get(res.Principal.ID)
	require.True(t, ok)
	assert.Equal(t, "Lovelace", stored.LastName)
}

func TestSignUp_FollowUpFailureDoesNotFailSignUp(t *testing.T) {
	h := newHarness(t)
	h.roles.insertErr = Network("rest unavailable", nil)

	res, err := h.a.SignUp(context.Background(), "new@example.com", "abcdef", "Ada", "Lovelace")
	require.NoError(t, err)
	assert.True(t, res.ProfileCreated)
	assert.False(t, res.RoleAssigned)
	assert.False(t, res.Provisioned())

	snap := h.waitSettled(t)
	assert.NotNil(t, snap.Session)
	assert.True(t, snap.ProvisioningIncomplete)
	assert.Empty(t, snap.Roles)
	assert.Equal(t, roles.Tenant, snap.ActiveRole)
}

func TestSignUp_AwaitingConfirmation(t *testing.T) {
	h := newHarness(t)
	h.gw.confirmSignUp = true

	res, err := h.a.SignUp(context.Background(), "new@example.com", "abcdef", "Ada", "Lovelace")
	require.NoError(t, err)
	assert.Nil(t, res.Session)
	assert.False(t, res.Provisioned())
	assert.Nil(t, h.a.Snapshot().Session)
	assert.Equal(t, 0, h.profiles.inserts)
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.seedUser("u1", "a@example.com", false, roles.Tenant)

	_, err := h.a.SignUp(context.Background(), "a@example.com", "abcdef", "A", "B")
	assert.ErrorIs(t, err, ErrCredential)
}

func TestSession_ExpiryClearsState(t *testing.T) {
	h := newHarness(t)
	h.seedUser("u1", "a@example.com", true, roles.Landlord)
	h.signIn(t, "a@example.com")

	h.clock.Add(time.Hour)

	assert.Eventually(t, func() bool {
		return h.a.Snapshot().Session == nil
	}, time.Second, 5*time.Millisecond)
	assertCleared(t, h.a.Snapshot())
}

func TestSession_RefreshExtendsExpiry(t *testing.T) {
	h := newHarness(t)
	h.seedUser("u1", "a@example.com", false, roles.Tenant)
	snap := h.signIn(t, "a@example.com")

	refreshed := *snap.Session
	refreshed.AccessToken = "refreshed"
	refreshed.ExpiresAt = refreshed.ExpiresAt.Add(time.Hour)
	h.gw.emit(AuthEvent{Type: EventTokenRefreshed, Session: &refreshed})

	h.clock.Add(90 * time.Minute)
	assert.Never(t, func() bool {
		return h.a.Snapshot().Session == nil
	}, 50*time.Millisecond, 5*time.Millisecond)

	h.clock.Add(30 * time.Minute)
	assert.Eventually(t, func() bool {
		return h.a.Snapshot().Session == nil
	}, time.Second, 5*time.Millisecond)
}

func TestStart_IgnoresExpiredPolledSession(t *testing.T) {
	h := newHarness(t)
	h.seedUser("u1", "a@example.com", false, roles.Tenant)
	h.gw.ttl = -time.Minute
	_, err := h.gw.SignInWithPassword(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, h.a.Start(context.Background()))
	assertCleared(t, h.waitSettled(t))
}

func TestSendPasswordResetEmail(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.a.SendPasswordResetEmail(context.Background(), " a@example.com "))
	require.NoError(t, h.a.ResetPassword(context.Background(), "b@example.com"))

	require.Len(t, h.gw.resets, 2)
	assert.Equal(t, resetCall{email: "a@example.com", redirect: "https://app.example.com/reset-password"}, h.gw.resets[0])
	assert.Equal(t, "b@example.com", h.gw.resets[1].email)

	assert.ErrorIs(t, h.a.ResetPassword(context.Background(), ""), ErrValidation)

	h.gw.resetErr = Network("smtp down", nil)
	assert.ErrorIs(t, h.a.ResetPassword(context.Background(), "a@example.com"), ErrNetwork)
}

func TestNoCrossPrincipalLeakage(t *testing.T) {
	h := newHarness(t)
	h.seedUser("a", "a@example.com", true, roles.Landlord, roles.Agent)
	h.seedUser("b", "b@example.com", false, roles.Tenant)

	snapA := h.signIn(t, "a@example.com")
	require.True(t, snapA.HasCompletedKyc)
	h.a.SetActiveRole(context.Background(), roles.Agent)
	require.Equal(t, roles.Agent, h.a.Snapshot().ActiveRole)

	h.a.SignOut(context.Background())
	snapB := h.signIn(t, "b@example.com")

	assert.Equal(t, "b", snapB.Principal().ID)
	assert.Equal(t, []roles.Role{roles.Tenant}, snapB.Roles)
	assert.Equal(t, roles.Tenant, snapB.ActiveRole)
	assert.Equal(t, "b", snapB.Profile.ID)
	assert.False(t, snapB.HasCompletedKyc)
	assert.Greater(t, snapB.Generation, snapA.Generation)
}

func TestStaleRoleFetchIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.seedUser("a", "a@example.com", false, roles.Landlord, roles.Admin)
	h.seedUser("b", "b@example.com", false, roles.Tenant)
	release := h.roles.gate("a")

	_, err := h.a.SignIn(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return h.roles.callCount("a") == 1 }, time.Second, time.Millisecond)

	h.a.SignOut(context.Background())
	snapB := h.signIn(t, "b@example.com")
	require.Equal(t, []roles.Role{roles.Tenant}, snapB.Roles)

	close(release)
	h.a.Close() // waits for the fetch of A to finish

	final := h.a.Snapshot()
	assert.Equal(t, "b", final.Principal().ID)
	assert.Equal(t, []roles.Role{roles.Tenant}, final.Roles)
	assert.Equal(t, roles.Tenant, final.ActiveRole)
}

func TestSignIn_SwitchPrincipalWithoutSignOut(t *testing.T) {
	h := newHarness(t)
	h.seedUser("a", "a@example.com", true, roles.Landlord)
	h.seedUser("b", "b@example.com", false, roles.Vendor)

	h.signIn(t, "a@example.com")
	snap := h.signIn(t, "b@example.com")

	assert.Equal(t, "b", snap.Principal().ID)
	assert.Equal(t, []roles.Role{roles.Vendor}, snap.Roles)
	assert.False(t, snap.HasCompletedKyc)
}

func TestSignUp_FollowUpStopsAfterSignOut(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	defer close(gate)
	h.profiles.mu.Lock()
	h.profiles.insertGate = gate
	h.profiles.mu.Unlock()

	type outcome struct {
		res *SignUpResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := h.a.SignUp(context.Background(), "new@example.com", "abcdef", "Ada", "Lovelace")
		done <- outcome{res, err}
	}()
	require.Eventually(t, func() bool { return h.profiles.insertWaiting() == 1 }, time.Second, time.Millisecond)

	h.a.SignOut(context.Background())

	var got outcome
	select {
	case got = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sign-up follow-up kept running after sign-out")
	}
	require.NoError(t, got.err)
	assert.False(t, got.res.ProfileCreated)
	assert.False(t, got.res.RoleAssigned)

	h.roles.mu.RLock()
	assert.Empty(t, h.roles.assigned[got.res.Principal.ID])
	h.roles.mu.RUnlock()
	assert.Nil(t, h.a.Snapshot().Session)
}
