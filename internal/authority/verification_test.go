package authority

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/estate/internal/config"
	"github.com/terraconstructs/estate/internal/logging"
	"github.com/terraconstructs/estate/internal/roles"
)

// logBuffer is a goroutine-safe log sink.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCheckStatus(t *testing.T) {
	h := newHarness(t)
	h.kyc.set("approved", VerificationApproved)
	h.kyc.set("pending", VerificationPending)
	h.kyc.set("rejected", VerificationRejected)
	h.kyc.getErr["broken"] = Network("connection refused", nil)

	ctx := context.Background()
	assert.True(t, h.a.CheckStatus(ctx, "approved"))
	assert.False(t, h.a.CheckStatus(ctx, "pending"))
	assert.False(t, h.a.CheckStatus(ctx, "rejected"))
	assert.False(t, h.a.CheckStatus(ctx, "u1"), "missing record is not verified")
	assert.False(t, h.a.CheckStatus(ctx, "broken"))
}

func TestVerificationFetch_DegradesWithoutBlockingSession(t *testing.T) {
	h := newHarness(t)
	h.seedUser("u1", "a@example.com", false, roles.Tenant)
	h.kyc.getErr["u1"] = Network("connection refused", nil)

	snap := h.signIn(t, "a@example.com")

	assert.Equal(t, StateHydrated, snap.State())
	assert.False(t, snap.HasCompletedKyc)
	assert.NotNil(t, snap.Profile)
}

func TestCheckKycStatus_PublishesApproval(t *testing.T) {
	h := newHarness(t)
	h.seedUser("u1", "a@example.com", false, roles.Tenant)
	require.False(t, h.signIn(t, "a@example.com").HasCompletedKyc)

	h.kyc.set("u1", VerificationApproved)

	assert.True(t, h.a.CheckKycStatus(context.Background()))
	assert.True(t, h.a.Snapshot().HasCompletedKyc)
}

func TestCheckKycStatus_SignedOut(t *testing.T) {
	h := newHarness(t)
	h.kyc.set("u1", VerificationApproved)

	assert.False(t, h.a.CheckKycStatus(context.Background()))
	assert.Equal(t, 0, h.kyc.callCount())
}

func TestCheckKycStatus_CallerCancelled(t *testing.T) {
	h := newHarness(t)
	h.seedUser("u1", "a@example.com", true, roles.Tenant)
	h.signIn(t, "a@example.com")

	gate := make(chan struct{})
	h.kyc.mu.Lock()
	h.kyc.gate = gate
	h.kyc.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, h.a.CheckKycStatus(ctx), "returns the cached value")

	close(gate)
}

func TestCheckStatus_MissingAndFailedAreLoggedApart(t *testing.T) {
	logs := &logBuffer{}
	h := newHarness(t, func(o *Options) {
		o.Logger = logging.NewWithWriter(logs, config.LoggingConfig{Level: "debug", Format: "text"}, "test", "dev").Logger
	})
	h.kyc.getErr["broken"] = Network("connection refused", nil)
	ctx := context.Background()

	assert.False(t, h.a.CheckStatus(ctx, "u1"))
	assert.Contains(t, logLine(logs.String(), "u1"), `level=DEBUG msg="verification record not found"`)
	assert.NotContains(t, logs.String(), "verification check degraded")

	assert.False(t, h.a.CheckStatus(ctx, "broken"))
	line := logLine(logs.String(), "broken")
	assert.Contains(t, line, `level=WARN msg="verification check degraded"`)
	assert.Contains(t, line, "connection refused")
}

// logLine returns the first log line about userID.
func logLine(out, userID string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "user_id="+userID+" ") || strings.HasSuffix(line, "user_id="+userID) {
			return line
		}
	}
	return ""
}

func TestCheckKycStatus_ConcurrentCallersAgree(t *testing.T) {
	h := newHarness(t)
	h.seedUser("u1", "a@example.com", true, roles.Tenant)
	require.True(t, h.signIn(t, "a@example.com").HasCompletedKyc)

	for i := 0; i < 50; i++ {
		gate := make(chan struct{})
		h.kyc.mu.Lock()
		h.kyc.gate = gate
		h.kyc.mu.Unlock()
		before := h.kyc.callCount()

		const callers = 4
		results := make(chan bool, callers)
		for c := 0; c < callers; c++ {
			go func() { results <- h.a.CheckKycStatus(context.Background()) }()
		}
		require.Eventually(t, func() bool { return h.kyc.callCount() > before }, time.Second, time.Millisecond)
		close(gate)

		for c := 0; c < callers; c++ {
			assert.True(t, <-results, "iteration %d", i)
		}
	}
	assert.True(t, h.a.Snapshot().HasCompletedKyc)
}

func TestCheckKycStatus_PrincipalChangedReturnsFalse(t *testing.T) {
	h := newHarness(t)
	h.seedUser("u1", "a@example.com", true, roles.Tenant)
	h.signIn(t, "a@example.com")

	gate := make(chan struct{})
	h.kyc.mu.Lock()
	h.kyc.gate = gate
	h.kyc.mu.Unlock()
	before := h.kyc.callCount()

	result := make(chan bool, 1)
	go func() { result <- h.a.CheckKycStatus(context.Background()) }()
	require.Eventually(t, func() bool { return h.kyc.callCount() > before }, time.Second, time.Millisecond)

	h.a.SignOut(context.Background())
	close(gate)

	assert.False(t, <-result)
	assert.False(t, h.a.Snapshot().HasCompletedKyc)
}
