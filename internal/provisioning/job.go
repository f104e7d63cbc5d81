// Package provisioning closes the sign-up saga on the backend. Every sign-up
// leaves a pending task; the client normally creates the profile and the
// default role right away, and this job backfills whatever is still missing
// once the grace period has passed.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/mitchellh/mapstructure"
	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/estate/internal/db/models"
	"github.com/terraconstructs/estate/internal/repository"
	"github.com/terraconstructs/estate/internal/roles"
	"github.com/terraconstructs/estate/internal/telemetry"
)

const tracerName = "estateapi/provisioning"

// Outcomes recorded per task.
const (
	OutcomeDone   = "done"
	OutcomeRetry  = "retry"
	OutcomeFailed = "failed"
)

// Directory is the part of the directory service the job writes through.
type Directory interface {
	EnsureProfile(ctx context.Context, profile models.Profile) (*models.Profile, bool, error)
	AssignRole(ctx context.Context, userID string, role roles.Role, assignedBy string) (bool, error)
}

// Metadata is the profile seed stored on a task.
type Metadata struct {
	FirstName string `mapstructure:"first_name"`
	LastName  string `mapstructure:"last_name"`
}

// DecodeMetadata reads task metadata. Unknown keys are ignored.
func DecodeMetadata(raw models.JSONMap) (Metadata, error) {
	var md Metadata
	if err := mapstructure.WeakDecode(map[string]any(raw), &md); err != nil {
		return Metadata{}, fmt.Errorf("decode provisioning metadata: %w", err)
	}
	return md, nil
}

// Config tunes the job.
type Config struct {
	Interval    time.Duration
	Grace       time.Duration
	MaxAttempts int
	BatchSize   int
}

// Report summarises one reconciliation pass.
type Report struct {
	Done     int
	Retrying int
	Failed   int
	Profiles int // profiles backfilled
	Roles    int // default roles backfilled
}

// Job reconciles pending provisioning tasks.
type Job struct {
	tasks     repository.ProvisioningRepository
	users     repository.UserRepository
	directory Directory
	clock     clock.Clock
	log       *slog.Logger
	metrics   *telemetry.ProvisioningMetrics
	cfg       Config
}

// Dependencies are the collaborators of the job.
type Dependencies struct {
	Tasks     repository.ProvisioningRepository
	Users     repository.UserRepository
	Directory Directory
	Clock     clock.Clock
	Logger    *slog.Logger
	Metrics   *telemetry.ProvisioningMetrics
}

// NewJob creates a reconciliation job.
func NewJob(deps Dependencies, cfg Config) *Job {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Job{
		tasks:     deps.Tasks,
		users:     deps.Users,
		directory: deps.Directory,
		clock:     deps.Clock,
		log:       deps.Logger,
		metrics:   deps.Metrics,
		cfg:       cfg,
	}
}

// Run reconciles on every tick until ctx is cancelled.
func (j *Job) Run(ctx context.Context) {
	ticker := j.clock.Ticker(j.cfg.Interval)
	defer ticker.Stop()

	j.log.InfoContext(ctx, "provisioning reconciler started", "interval", j.cfg.Interval, "grace", j.cfg.Grace)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.ReconcileOnce(ctx); err != nil && ctx.Err() == nil {
				j.log.ErrorContext(ctx, "provisioning pass failed", "error", err)
			}
		}
	}
}

// ReconcileOnce processes pending tasks older than the grace period.
func (j *Job) ReconcileOnce(ctx context.Context) (Report, error) {
	var report Report
	cutoff := j.clock.Now().Add(-j.cfg.Grace)

	pending, err := j.tasks.ListPending(ctx, cutoff, j.cfg.BatchSize)
	if err != nil {
		return report, err
	}

	for i := range pending {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		task := &pending[i]
		profile, role, err := j.reconcile(ctx, task)
		if profile {
			report.Profiles++
		}
		if role {
			report.Roles++
		}

		switch {
		case err == nil:
			if err := j.tasks.MarkDone(ctx, task.ID, j.clock.Now()); err != nil {
				return report, err
			}
			report.Done++
			j.metrics.RecordOutcome(ctx, OutcomeDone)
		default:
			giveUp := task.Attempts+1 >= j.cfg.MaxAttempts
			if rerr := j.tasks.RecordFailure(ctx, task.ID, err.Error(), giveUp, j.clock.Now()); rerr != nil {
				return report, rerr
			}
			if giveUp {
				report.Failed++
				j.metrics.RecordOutcome(ctx, OutcomeFailed)
				j.log.ErrorContext(ctx, "provisioning task abandoned", "task_id", task.ID, "user_id", task.UserID, "error", err)
			} else {
				report.Retrying++
				j.metrics.RecordOutcome(ctx, OutcomeRetry)
				j.log.WarnContext(ctx, "provisioning task failed", "task_id", task.ID, "user_id", task.UserID, "attempt", task.Attempts+1, "error", err)
			}
		}
	}

	if len(pending) > 0 {
		j.log.InfoContext(ctx, "provisioning pass complete",
			"done", report.Done, "retrying", report.Retrying, "failed", report.Failed,
			"profiles_backfilled", report.Profiles, "roles_backfilled", report.Roles)
	}
	return report, nil
}

// reconcile backfills the profile and default role for one task and reports
// which of the two it had to create.
func (j *Job) reconcile(ctx context.Context, task *models.ProvisioningTask) (profileCreated, roleCreated bool, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "provisioning.reconcile",
		attribute.String(telemetry.AttrTaskID, task.ID),
		attribute.String(telemetry.AttrUserID, task.UserID),
	)
	defer span.End()
	defer func() { telemetry.RecordError(span, err) }()

	user, err := j.users.GetByID(ctx, task.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, false, fmt.Errorf("user %s no longer exists", task.UserID)
		}
		return false, false, err
	}

	md, err := DecodeMetadata(task.Metadata)
	if err != nil {
		return false, false, err
	}

	_, profileCreated, err = j.directory.EnsureProfile(ctx, models.Profile{
		ID:        user.ID,
		FirstName: md.FirstName,
		LastName:  md.LastName,
		Email:     user.Email,
	})
	if err != nil {
		return false, false, fmt.Errorf("backfill profile: %w", err)
	}

	roleCreated, err = j.directory.AssignRole(ctx, user.ID, roles.Default, "system")
	if err != nil {
		return profileCreated, false, fmt.Errorf("backfill default role: %w", err)
	}
	return profileCreated, roleCreated, nil
}
