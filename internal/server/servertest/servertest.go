// Package servertest runs the full HTTP API against an in-memory database
// for client tests.
package servertest

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/dbtest"
	"github.com/terraconstructs/estate/internal/repository"
	"github.com/terraconstructs/estate/internal/server"
	"github.com/terraconstructs/estate/internal/services/directory"
	"github.com/terraconstructs/estate/internal/services/iam"
)

// Backend is a running API server.
type Backend struct {
	*httptest.Server
	IAM       iam.Service
	Directory *directory.Service
	Mailer    *Mailer
}

// Mailer publishes every reset link on Links.
type Mailer struct {
	Links chan string
}

func (m *Mailer) SendPasswordReset(_ context.Context, _ string, link string) error {
	select {
	case m.Links <- link:
	default:
	}
	return nil
}

// New starts a backend that is shut down when t finishes.
func New(t testing.TB) *Backend {
	t.Helper()
	db := dbtest.Open(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokens, err := auth.NewTokenIssuer("servertest-signing-key-0123456789ab", time.Hour, "estate", clock.New())
	require.NoError(t, err)

	mailer := &Mailer{Links: make(chan string, 8)}
	idm, err := iam.NewService(iam.Dependencies{
		Users:    repository.NewBunUserRepository(db),
		Sessions: repository.NewBunSessionRepository(db),
		Resets:   repository.NewBunPasswordResetRepository(db),
		Tokens:   tokens,
		Mailer:   mailer,
		Logger:   log,
	}, iam.Config{AutoConfirm: true})
	require.NoError(t, err)

	enforcer, err := auth.InitEnforcer(db)
	require.NoError(t, err)
	dir, err := directory.NewService(directory.Dependencies{
		Roles:         repository.NewBunRoleRepository(db),
		Profiles:      repository.NewBunProfileRepository(db),
		Verifications: repository.NewBunVerificationRepository(db),
		Enforcer:      enforcer,
		Logger:        log,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(server.NewRouter(server.RouterOptions{
		IAM:              idm,
		Directory:        dir,
		Logger:           log,
		SessionCacheSize: 16,
	}))
	t.Cleanup(srv.Close)
	return &Backend{Server: srv, IAM: idm, Directory: dir, Mailer: mailer}
}
