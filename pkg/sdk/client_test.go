package sdk

import (
	"context"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/estate/internal/authority"
	"github.com/terraconstructs/estate/internal/roles"
	"github.com/terraconstructs/estate/internal/server/servertest"
)

func newClient(t *testing.T, backend *servertest.Backend) *Client {
	t.Helper()
	c := NewClient(backend.URL+"/", WithHTTPClient(backend.Client()))
	t.Cleanup(c.Close)
	return c
}

func signUp(t *testing.T, c *Client, email string) *authority.GatewaySignUp {
	t.Helper()
	res, err := c.SignUp(context.Background(), email, "hunter22", authority.SignUpMetadata{FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	return res
}

func collect(c *Client) (<-chan authority.AuthEvent, authority.Subscription) {
	ch := make(chan authority.AuthEvent, 16)
	sub := c.OnAuthStateChange(func(ev authority.AuthEvent) { ch <- ev })
	return ch, sub
}

func next(t *testing.T, ch <-chan authority.AuthEvent) authority.AuthEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no auth event delivered")
		return authority.AuthEvent{}
	}
}

func TestSignInSessionLifecycle(t *testing.T) {
	backend := servertest.New(t)
	c := newClient(t, backend)
	ctx := context.Background()
	created := signUp(t, c, "ada@example.com")

	events, sub := collect(c)
	defer sub.Unsubscribe()

	sess, err := c.SignInWithPassword(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, created.Principal.ID, sess.Principal.ID)
	assert.True(t, sess.ExpiresAt.After(time.Now()))

	ev := next(t, events)
	assert.Equal(t, authority.EventSignedIn, ev.Type)
	assert.Equal(t, sess.AccessToken, ev.Session.AccessToken)

	got, err := c.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.AccessToken, got.AccessToken)

	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, authority.EventSignedOut, next(t, events).Type)

	got, err = c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetSessionDropsRevokedToken(t *testing.T) {
	backend := servertest.New(t)
	c := newClient(t, backend)
	ctx := context.Background()
	res := signUp(t, c, "ada@example.com")

	// Revoke server-side while keeping the local copy.
	other := newClient(t, backend)
	_, err := other.SetSession(ctx, res.Session.AccessToken)
	require.NoError(t, err)
	require.NoError(t, other.SignOut(ctx))

	got, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	_, err = c.store.LoadCredentials()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestErrorKinds(t *testing.T) {
	backend := servertest.New(t)
	c := newClient(t, backend)
	ctx := context.Background()
	signUp(t, c, "ada@example.com")

	_, err := c.SignInWithPassword(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, authority.ErrCredential)

	_, err = c.SignUp(ctx, "ada@example.com", "hunter22", authority.SignUpMetadata{FirstName: "A", LastName: "L"})
	assert.ErrorIs(t, err, authority.ErrCredential)

	_, err = c.SignUp(ctx, "new@example.com", "123", authority.SignUpMetadata{FirstName: "A", LastName: "L"})
	assert.ErrorIs(t, err, authority.ErrValidation)

	_, err = c.GetProfile(ctx, "someone-else")
	assert.ErrorIs(t, err, authority.ErrCredential, "403 maps to credential")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 403, se.StatusCode)
}

func TestNotSignedIn(t *testing.T) {
	backend := servertest.New(t)
	c := newClient(t, backend)

	_, err := c.GetRoles(context.Background(), "u1")
	assert.ErrorIs(t, err, authority.ErrCredential)
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestNetworkFailure(t *testing.T) {
	backend := servertest.New(t)
	c := NewClient(backend.URL)
	backend.Close()

	_, err := c.SignInWithPassword(context.Background(), "ada@example.com", "hunter22")
	assert.ErrorIs(t, err, authority.ErrNetwork)
}

func TestStores(t *testing.T) {
	backend := servertest.New(t)
	c := newClient(t, backend)
	ctx := context.Background()
	id := signUp(t, c, "ada@example.com").Principal.ID

	_, err := c.GetProfile(ctx, id)
	assert.ErrorIs(t, err, authority.ErrNotFound)

	p, err := c.InsertProfile(ctx, authority.Profile{ID: id, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)

	phone := "+15550100"
	p, err = c.UpdateProfile(ctx, id, authority.ProfilePatch{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, p.Phone)
	assert.Equal(t, "Lovelace", p.LastName)

	require.NoError(t, c.InsertRole(ctx, id, roles.Tenant))
	require.NoError(t, c.InsertRole(ctx, id, roles.Tenant))
	assigned, err := c.GetRoles(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []roles.Role{roles.Tenant}, assigned)

	err = c.InsertRole(ctx, id, roles.Admin)
	assert.ErrorIs(t, err, authority.ErrCredential)

	_, err = c.GetVerification(ctx, id)
	assert.ErrorIs(t, err, authority.ErrNotFound)

	_, err = backend.Directory.RecordVerification(ctx, id, "approved")
	require.NoError(t, err)
	v, err := c.GetVerification(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, authority.VerificationApproved, v.Status)
}

func TestPasswordResetFlow(t *testing.T) {
	backend := servertest.New(t)
	c := newClient(t, backend)
	ctx := context.Background()
	signUp(t, c, "ada@example.com")

	require.NoError(t, c.ResetPasswordForEmail(ctx, "ada@example.com", "http://localhost:5173/reset-password"))
	var link string
	select {
	case link = <-backend.Mailer.Links:
	case <-time.After(2 * time.Second):
		t.Fatal("no reset link sent")
	}
	u, err := url.Parse(link)
	require.NoError(t, err)

	events, sub := collect(c)
	defer sub.Unsubscribe()
	require.NoError(t, c.ConfirmPasswordReset(ctx, u.Query().Get("token"), "new-secret"))
	assert.Equal(t, authority.EventPasswordRecovery, next(t, events).Type)

	got, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "reset revokes existing sessions")

	_, err = c.SignInWithPassword(ctx, "ada@example.com", "new-secret")
	require.NoError(t, err)
}

func TestSetSessionRefresh(t *testing.T) {
	backend := servertest.New(t)
	c := newClient(t, backend)
	ctx := context.Background()
	signUp(t, c, "ada@example.com")

	other := newClient(t, backend)
	fresh, err := other.SignInWithPassword(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)

	events, sub := collect(c)
	defer sub.Unsubscribe()
	sess, err := c.SetSession(ctx, fresh.AccessToken)
	require.NoError(t, err)
	assert.WithinDuration(t, fresh.ExpiresAt, sess.ExpiresAt, time.Second)
	assert.Equal(t, authority.EventTokenRefreshed, next(t, events).Type)

	_, err = c.SetSession(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, authority.ErrValidation)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	backend := servertest.New(t)
	c := newClient(t, backend)
	ctx := context.Background()
	signUp(t, c, "ada@example.com")

	first, sub1 := collect(c)
	second, sub2 := collect(c)
	defer sub2.Unsubscribe()
	sub1.Unsubscribe()
	sub1.Unsubscribe()

	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, authority.EventSignedOut, next(t, second).Type)
	assert.Empty(t, first)
}

func TestFileCredentialStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileCredentialStore(dir)
	require.NoError(t, err)

	_, err = store.LoadCredentials()
	assert.ErrorIs(t, err, ErrNoCredentials)

	want := &Credentials{AccessToken: "tok", TokenType: "bearer", ExpiresAt: time.Unix(1700000000, 0).UTC(), UserID: "u1", Email: "a@b.c"}
	require.NoError(t, store.SaveCredentials(want))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := store.LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.DeleteCredentials())
	require.NoError(t, store.DeleteCredentials())
	_, err = store.LoadCredentials()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestCredentialsExpiry(t *testing.T) {
	now := time.Now()
	assert.False(t, (&Credentials{}).IsExpired(now))
	assert.True(t, (&Credentials{ExpiresAt: now}).IsExpired(now))
	assert.False(t, (&Credentials{ExpiresAt: now.Add(time.Minute)}).IsExpired(now))
}
