// Package client builds the SDK client and the authority shared by every
// estatectl command.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/terraconstructs/estate/internal/authority"
	"github.com/terraconstructs/estate/internal/config"
	"github.com/terraconstructs/estate/internal/prefs"
	"github.com/terraconstructs/estate/pkg/sdk"
)

// HydrateTimeout bounds how long a command waits for the authority to
// settle before giving up.
const HydrateTimeout = 15 * time.Second

// Provider lazily constructs the SDK client and the authority. Both are
// built once per process.
type Provider struct {
	cfg *config.ClientConfig
	log *slog.Logger

	sdkOnce sync.Once
	sdk     *sdk.Client
	sdkErr  error

	authOnce sync.Once
	auth     *authority.Authority
	authErr  error
}

// NewProvider returns a provider for cfg.
func NewProvider(cfg *config.ClientConfig, log *slog.Logger) *Provider {
	return &Provider{cfg: cfg, log: log}
}

// Config returns the client configuration.
func (p *Provider) Config() *config.ClientConfig {
	return p.cfg
}

// SDK returns the API client, persisting credentials under the state dir.
func (p *Provider) SDK() (*sdk.Client, error) {
	p.sdkOnce.Do(func() {
		store, err := sdk.NewFileCredentialStore(p.cfg.StateDir)
		if err != nil {
			p.sdkErr = fmt.Errorf("failed to create credential store: %w", err)
			return
		}
		p.sdk = sdk.NewClient(p.cfg.APIURL,
			sdk.WithCredentialStore(store),
			sdk.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		)
	})
	return p.sdk, p.sdkErr
}

// Authority returns the started authority once it has settled.
func (p *Provider) Authority(ctx context.Context) (*authority.Authority, authority.Snapshot, error) {
	p.authOnce.Do(func() {
		c, err := p.SDK()
		if err != nil {
			p.authErr = err
			return
		}
		store, err := prefs.NewFileStore(p.cfg.StateDir)
		if err != nil {
			p.authErr = fmt.Errorf("failed to open preferences: %w", err)
			return
		}
		a, err := authority.New(authority.Options{
			Gateway:       c,
			Roles:         c,
			Profiles:      c,
			Verifications: c,
			Prefs:         store,
			AppOrigin:     p.cfg.AppOrigin,
			TieBreak:      p.cfg.TieBreak(),
			Logger:        p.log,
		})
		if err != nil {
			p.authErr = err
			return
		}
		if err := a.Start(ctx); err != nil {
			a.Close()
			p.authErr = err
			return
		}
		p.auth = a
	})
	if p.authErr != nil {
		return nil, authority.Snapshot{}, p.authErr
	}

	wctx, cancel := context.WithTimeout(ctx, HydrateTimeout)
	defer cancel()
	snap, err := p.auth.WaitHydrated(wctx)
	if err != nil {
		return nil, snap, fmt.Errorf("waiting for session state: %w", err)
	}
	return p.auth, snap, nil
}

// Close stops the authority and the client's event delivery.
func (p *Provider) Close() {
	if p.auth != nil {
		p.auth.Close()
	}
	if p.sdk != nil {
		p.sdk.Close()
	}
}

type contextKey struct{}

// Inject stores p in ctx for subcommands.
func Inject(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// MustFromContext returns the provider injected by the root command.
func MustFromContext(ctx context.Context) *Provider {
	p, ok := ctx.Value(contextKey{}).(*Provider)
	if !ok {
		panic("estatectl: client provider not found in context - this is a bug in estatectl")
	}
	return p
}
