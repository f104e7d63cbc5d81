// Package directory serves role assignments, profiles and verification
// records. Callers act as an authenticated principal; privileged reads and
// writes are checked against Casbin policies keyed by the caller's roles.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/casbin/casbin/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/models"
	"github.com/terraconstructs/estate/internal/repository"
	"github.com/terraconstructs/estate/internal/roles"
	"github.com/terraconstructs/estate/internal/telemetry"
)

const tracerName = "estateapi/directory"

// SystemActor attributes assignments made by the backend itself.
const SystemActor = "system"

var (
	// ErrForbidden is returned when the caller lacks the needed grant.
	ErrForbidden = errors.New("permission denied")
	// ErrNotFound is returned for absent profiles and verification records.
	ErrNotFound = repository.ErrNotFound
	// ErrInvalidRole is returned for labels outside the closed role set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidStatus is returned for unknown verification statuses.
	ErrInvalidStatus = errors.New("invalid verification status")
)

// ProfilePatch updates the fields that are non-nil.
type ProfilePatch struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil && p.AvatarURL == nil
}

func (p ProfilePatch) apply(profile *models.Profile) {
	if p.FirstName != nil {
		profile.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		profile.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.Phone != nil {
		profile.Phone = emptyToNil(*p.Phone)
	}
	if p.AvatarURL != nil {
		profile.AvatarURL = emptyToNil(*p.AvatarURL)
	}
}

func emptyToNil(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// Service is the role, profile and verification data service.
type Service struct {
	roles         repository.RoleRepository
	profiles      repository.ProfileRepository
	verifications repository.VerificationRepository
	enforcer      casbin.IEnforcer
	log           *slog.Logger
}

// Dependencies are the collaborators of the directory service.
type Dependencies struct {
	Roles         repository.RoleRepository
	Profiles      repository.ProfileRepository
	Verifications repository.VerificationRepository
	Enforcer      casbin.IEnforcer
	Logger        *slog.Logger
}

// NewService wires the directory service.
func NewService(deps Dependencies) (*Service, error) {
	if deps.Roles == nil || deps.Profiles == nil || deps.Verifications == nil {
		return nil, errors.New("directory: repositories are required")
	}
	if deps.Enforcer == nil {
		return nil, errors.New("directory: casbin enforcer is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		roles:         deps.Roles,
		profiles:      deps.Profiles,
		verifications: deps.Verifications,
		enforcer:      deps.Enforcer,
		log:           deps.Logger,
	}, nil
}

// authorize passes for the subject acting on itself when selfAllowed, and
// otherwise requires a policy grant for one of the actor's roles.
func (s *Service) authorize(ctx context.Context, actor auth.Principal, subjectID string, selfAllowed bool, obj, act string) error {
	if selfAllowed && actor.UserID != "" && actor.UserID == subjectID {
		return nil
	}
	assigned, err := s.AssignedRoles(ctx, actor.UserID)
	if err != nil {
		return err
	}
	allowed, err := auth.AuthorizeWithRoles(s.enforcer, assigned, obj, act)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.DebugContext(ctx, "authorization denied", "actor", actor.UserID, "object", obj, "action", act)
		return ErrForbidden
	}
	return nil
}

// AssignedRoles lists a user's roles in fetch order without an
// authorization check.
func (s *Service) AssignedRoles(ctx context.Context, userID string) ([]roles.Role, error) {
	if userID == "" {
		return nil, nil
	}
	rows, err := s.roles.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	raw := make([]string, len(rows))
	for i, r := range rows {
		raw[i] = r.Role
	}
	return roles.FromStrings(raw), nil
}

// ListRoles returns the user's roles in fetch order.
func (s *Service) ListRoles(ctx context.Context, actor auth.Principal, userID string) ([]roles.Role, error) {
	if err := s.authorize(ctx, actor, userID, true, auth.ObjectRoles, auth.ActionRead); err != nil {
		return nil, err
	}
	return s.AssignedRoles(ctx, userID)
}

// GrantRole assigns role to userID. A user may always grant themself the
// default role; anything else needs roles:write.
func (s *Service) GrantRole(ctx context.Context, actor auth.Principal, userID string, role roles.Role) (created bool, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "directory.GrantRole",
		attribute.String(telemetry.AttrUserID, userID),
		attribute.String(telemetry.AttrRole, string(role)),
	)
	defer span.End()
	defer func() { telemetry.RecordError(span, err) }()

	if !roles.IsValid(role) {
		return false, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	selfDefault := role == roles.Default
	if err := s.authorize(ctx, actor, userID, selfDefault, auth.ObjectRoles, auth.ActionWrite); err != nil {
		return false, err
	}
	return s.AssignRole(ctx, userID, role, actor.UserID)
}

// AssignRole records an assignment without an authorization check. It backs
// the operator CLI and the provisioning reconciler.
func (s *Service) AssignRole(ctx context.Context, userID string, role roles.Role, assignedBy string) (bool, error) {
	if !roles.IsValid(role) {
		return false, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if assignedBy == "" {
		assignedBy = SystemActor
	}
	created, err := s.roles.Grant(ctx, &models.UserRole{UserID: userID, Role: string(role), AssignedBy: assignedBy})
	if err != nil {
		return false, err
	}
	if created {
		s.log.InfoContext(ctx, "role granted", "user_id", userID, "role", role, "by", assignedBy)
	}
	return created, nil
}

// RevokeRole removes an assignment. Requires roles:write.
func (s *Service) RevokeRole(ctx context.Context, actor auth.Principal, userID string, role roles.Role) (bool, error) {
	if !roles.IsValid(role) {
		return false, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := s.authorize(ctx, actor, userID, false, auth.ObjectRoles, auth.ActionWrite); err != nil {
		return false, err
	}
	return s.UnassignRole(ctx, userID, role)
}

// UnassignRole removes an assignment without an authorization check.
func (s *Service) UnassignRole(ctx context.Context, userID string, role roles.Role) (bool, error) {
	removed, err := s.roles.Revoke(ctx, userID, string(role))
	if err != nil {
		return false, err
	}
	if removed {
		s.log.InfoContext(ctx, "role revoked", "user_id", userID, "role", role)
	}
	return removed, nil
}

// GetProfile returns a profile. Self, or profiles:read.
func (s *Service) GetProfile(ctx context.Context, actor auth.Principal, id string) (*models.Profile, error) {
	if err := s.authorize(ctx, actor, id, true, auth.ObjectProfiles, auth.ActionRead); err != nil {
		return nil, err
	}
	return s.profiles.Get(ctx, id)
}

// CreateProfile inserts the caller's own profile. An existing profile is
// kept and returned with created=false.
func (s *Service) CreateProfile(ctx context.Context, actor auth.Principal, profile models.Profile) (*models.Profile, bool, error) {
	if actor.UserID == "" || actor.UserID != profile.ID {
		return nil, false, ErrForbidden
	}
	return s.EnsureProfile(ctx, profile)
}

// EnsureProfile inserts profile unless one exists, then returns the stored row.
func (s *Service) EnsureProfile(ctx context.Context, profile models.Profile) (*models.Profile, bool, error) {
	profile.FirstName = strings.TrimSpace(profile.FirstName)
	profile.LastName = strings.TrimSpace(profile.LastName)
	created, err := s.profiles.Create(ctx, &profile)
	if err != nil {
		return nil, false, err
	}
	stored, err := s.profiles.Get(ctx, profile.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// UpdateProfile applies patch to the caller's own profile.
func (s *Service) UpdateProfile(ctx context.Context, actor auth.Principal, id string, patch ProfilePatch) (*models.Profile, error) {
	if actor.UserID == "" || actor.UserID != id {
		return nil, ErrForbidden
	}
	profile, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return profile, nil
	}
	patch.apply(profile)
	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// GetVerification returns the user's verification record. Self, or
// verifications:read.
func (s *Service) GetVerification(ctx context.Context, actor auth.Principal, userID string) (*models.Verification, error) {
	if err := s.authorize(ctx, actor, userID, true, auth.ObjectVerifications, auth.ActionRead); err != nil {
		return nil, err
	}
	return s.verifications.GetByUserID(ctx, userID)
}

// RecordVerification stores the outcome of an identity check.
func (s *Service) RecordVerification(ctx context.Context, userID, status string) (*models.Verification, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "directory.RecordVerification",
		attribute.String(telemetry.AttrUserID, userID),
		attribute.String(telemetry.AttrKYCStatus, status),
	)
	defer span.End()

	switch status {
	case models.VerificationPending, models.VerificationApproved, models.VerificationRejected:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	v, err := s.verifications.Upsert(ctx, userID, status)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.log.InfoContext(ctx, "verification recorded", "user_id", userID, "status", status)
	return v, nil
}
