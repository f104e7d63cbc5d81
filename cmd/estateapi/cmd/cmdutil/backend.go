// Package cmdutil builds the backend services for estateapi commands.
package cmdutil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/casbin/casbin/v2"
	"github.com/uptrace/bun"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/config"
	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/provisioning"
	"github.com/terraconstructs/estate/internal/repository"
	"github.com/terraconstructs/estate/internal/services/directory"
	"github.com/terraconstructs/estate/internal/services/iam"
	"github.com/terraconstructs/estate/internal/telemetry"
)

// BackendOptions controls optional wiring.
type BackendOptions struct {
	Logger *slog.Logger
	// Instrument attaches OpenTelemetry metrics to the database and services.
	Instrument bool
}

// Backend bundles the services with their database connection so callers
// can close everything at once.
type Backend struct {
	DB        *bun.DB
	Enforcer  *casbin.SyncedEnforcer
	IAM       iam.Service
	Directory *directory.Service
	Users     *repository.BunUserRepository
	Tasks     *repository.BunProvisioningRepository

	ServerMetrics       *telemetry.ServerMetrics
	ProvisioningMetrics *telemetry.ProvisioningMetrics

	log *slog.Logger
	cfg *config.Config
}

// Close releases the database connection.
func (b *Backend) Close() {
	if b == nil || b.DB == nil {
		return
	}
	_ = bunx.Close(b.DB)
}

// OpenDB connects to the configured database.
func OpenDB(ctx context.Context, cfg *config.Config, hooks ...bun.QueryHook) (*bun.DB, error) {
	db, err := bunx.NewDB(ctx, cfg.DatabaseURL, bunx.Options{MaxConns: cfg.MaxDBConnections, Hooks: hooks})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// NewBackend connects to the database and wires repositories, Casbin, and
// the IAM and directory services.
func NewBackend(ctx context.Context, cfg *config.Config, opts BackendOptions) (*Backend, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	b := &Backend{log: log, cfg: cfg}
	var authMetrics *telemetry.AuthMetrics
	var hooks []bun.QueryHook
	if opts.Instrument {
		dbMetrics, err := telemetry.NewDatabaseMetrics()
		if err != nil {
			return nil, fmt.Errorf("create database metrics: %w", err)
		}
		hooks = append(hooks, bunx.NewMetricsHook(dbMetrics))
		if authMetrics, err = telemetry.NewAuthMetrics(); err != nil {
			return nil, fmt.Errorf("create auth metrics: %w", err)
		}
		if b.ServerMetrics, err = telemetry.NewServerMetrics(); err != nil {
			return nil, fmt.Errorf("create server metrics: %w", err)
		}
		if b.ProvisioningMetrics, err = telemetry.NewProvisioningMetrics(); err != nil {
			return nil, fmt.Errorf("create provisioning metrics: %w", err)
		}
	}

	db, err := OpenDB(ctx, cfg, hooks...)
	if err != nil {
		return nil, err
	}
	b.DB = db

	enforcer, err := auth.InitEnforcer(db)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to initialize casbin enforcer: %w", err)
	}
	b.Enforcer = enforcer

	tokens, err := auth.NewTokenIssuer(cfg.Auth.SigningKey, cfg.Auth.SessionTTL, cfg.ServerURL, clock.New())
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	if cfg.Auth.SigningKey == "" {
		log.Warn("JWT_SIGNING_KEY not set; sessions will not survive a restart")
	}

	b.Users = repository.NewBunUserRepository(db)
	b.Tasks = repository.NewBunProvisioningRepository(db)

	b.IAM, err = iam.NewService(iam.Dependencies{
		Users:    b.Users,
		Sessions: repository.NewBunSessionRepository(db),
		Resets:   repository.NewBunPasswordResetRepository(db),
		Tokens:   tokens,
		Logger:   log,
		Metrics:  authMetrics,
	}, iam.Config{
		ResetTokenTTL:          cfg.Auth.ResetTokenTTL,
		AutoConfirm:            cfg.Auth.AutoConfirm,
		AllowedRedirectOrigins: []string{cfg.AppOrigin},
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("create IAM service: %w", err)
	}

	b.Directory, err = directory.NewService(directory.Dependencies{
		Roles:         repository.NewBunRoleRepository(db),
		Profiles:      repository.NewBunProfileRepository(db),
		Verifications: repository.NewBunVerificationRepository(db),
		Enforcer:      enforcer,
		Logger:        log,
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("create directory service: %w", err)
	}

	return b, nil
}

// ProvisioningJob returns the sign-up reconciler bound to this backend.
func (b *Backend) ProvisioningJob() *provisioning.Job {
	return provisioning.NewJob(provisioning.Dependencies{
		Tasks:     b.Tasks,
		Users:     b.Users,
		Directory: b.Directory,
		Logger:    b.log,
		Metrics:   b.ProvisioningMetrics,
	}, provisioning.Config{
		Interval:    b.cfg.Provisioning.Interval,
		Grace:       b.cfg.Provisioning.Grace,
		MaxAttempts: b.cfg.Provisioning.MaxAttempts,
	})
}

// Logger returns the logger the services were built with.
func (b *Backend) Logger() *slog.Logger {
	return b.log
}
