package iam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/db/bunx"
	"github.com/terraconstructs/estate/internal/db/models"
	"github.com/terraconstructs/estate/internal/repository"
	"github.com/terraconstructs/estate/internal/telemetry"
)

const tracerName = "estateapi/iam"

// MinPasswordLength is the shortest password accepted at sign-up and reset.
const MinPasswordLength = 6

// Dependencies are the collaborators of the IAM service.
type Dependencies struct {
	Users    repository.UserRepository
	Sessions repository.SessionRepository
	Resets   repository.PasswordResetRepository
	Tokens   *auth.TokenIssuer
	Mailer   Mailer
	Clock    clock.Clock
	Logger   *slog.Logger
	Metrics  *telemetry.AuthMetrics
}

// Config tunes the IAM service.
type Config struct {
	ResetTokenTTL time.Duration
	AutoConfirm   bool
	// AllowedRedirectOrigins restricts reset redirect URLs. Empty allows any
	// absolute http(s) URL.
	AllowedRedirectOrigins []string
}

type iamService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	resets   repository.PasswordResetRepository
	tokens   *auth.TokenIssuer
	mailer   Mailer
	clock    clock.Clock
	log      *slog.Logger
	metrics  *telemetry.AuthMetrics
	cfg      Config
}

// NewService wires the IAM service.
func NewService(deps Dependencies, cfg Config) (Service, error) {
	if deps.Users == nil || deps.Sessions == nil || deps.Resets == nil {
		return nil, errors.New("iam: repositories are required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("iam: token issuer is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Mailer == nil {
		deps.Mailer = LogMailer{Logger: deps.Logger}
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = 30 * time.Minute
	}

	return &iamService{
		users:    deps.Users,
		sessions: deps.Sessions,
		resets:   deps.Resets,
		tokens:   deps.Tokens,
		mailer:   deps.Mailer,
		clock:    deps.Clock,
		log:      deps.Logger,
		metrics:  deps.Metrics,
		cfg:      cfg,
	}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email address is invalid")
	}
	return email, nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalid(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return nil
}

func (s *iamService) SignIn(ctx context.Context, email, password string, client ClientInfo) (grant *SessionGrant, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.SignIn")
	defer span.End()
	defer func() {
		telemetry.RecordError(span, err)
		s.metrics.RecordAuth(ctx, "password", err == nil)
	}()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, invalid("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = auth.CheckPassword("", password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.DisabledAt != nil {
		return nil, ErrUserDisabled
	}

	grant, err = s.issue(ctx, user, client)
	if err != nil {
		return nil, err
	}
	if err := s.users.TouchSignIn(ctx, user.ID, s.clock.Now()); err != nil {
		s.log.WarnContext(ctx, "failed to record sign-in", "user_id", user.ID, "error", err)
	}
	span.SetAttributes(attribute.String(telemetry.AttrUserID, user.ID))
	return grant, nil
}

func (s *iamService) issue(ctx context.Context, user *models.User, client ClientInfo) (*SessionGrant, error) {
	sessionID := bunx.NewUUIDv7()
	token, expires, err := s.tokens.Issue(user.ID, user.Email, sessionID)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:         sessionID,
		UserID:     user.ID,
		TokenHash:  auth.HashToken(token),
		ExpiresAt:  expires,
		CreatedAt:  s.clock.Now().UTC(),
		LastUsedAt: s.clock.Now().UTC(),
		UserAgent:  optional(client.UserAgent),
		IPAddress:  optional(client.IPAddress),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return &SessionGrant{AccessToken: token, ExpiresAt: expires, SessionID: sessionID, User: user}, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func (s *iamService) register(ctx context.Context, email, password string, metadata SignUpMetadata) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	metadata.FirstName = strings.TrimSpace(metadata.FirstName)
	metadata.LastName = strings.TrimSpace(metadata.LastName)
	if metadata.FirstName == "" {
		return nil, invalid("first name is required")
	}
	if metadata.LastName == "" {
		return nil, invalid("last name is required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Email: email, PasswordHash: hash, UserMetadata: metadata.Map()}
	task := &models.ProvisioningTask{Metadata: metadata.Map()}
	if err := s.users.CreateWithProvisioning(ctx, user, task); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *iamService) SignUp(ctx context.Context, email, password string, metadata SignUpMetadata, client ClientInfo) (res *SignUpResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.SignUp")
	defer span.End()
	defer func() { telemetry.RecordError(span, err) }()

	user, err := s.register(ctx, email, password, metadata)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String(telemetry.AttrUserID, user.ID))
	s.log.InfoContext(ctx, "user registered", "user_id", user.ID)

	res = &SignUpResult{User: user}
	if !s.cfg.AutoConfirm {
		return res, nil
	}
	grant, err := s.issue(ctx, user, client)
	if err != nil {
		return nil, err
	}
	res.Session = grant
	return res, nil
}

func (s *iamService) CreateUser(ctx context.Context, email, password string, metadata SignUpMetadata) (*models.User, error) {
	return s.register(ctx, email, password, metadata)
}

func (s *iamService) SignOut(ctx context.Context, sessionID string) error {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.SignOut",
		attribute.String(telemetry.AttrSessionID, sessionID))
	defer span.End()

	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

func (s *iamService) Authenticate(ctx context.Context, token string) (p *auth.Principal, err error) {
	defer func() { s.metrics.RecordAuth(ctx, "bearer", err == nil) }()

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	session, err := s.sessions.GetByID(ctx, claims.SessionID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}
	now := s.clock.Now()
	if !session.Active(now) || session.UserID != claims.Subject || session.TokenHash != auth.HashToken(token) {
		return nil, ErrSessionInvalid
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}
	if user.DisabledAt != nil {
		return nil, ErrUserDisabled
	}

	if err := s.sessions.TouchLastUsed(ctx, session.ID, now); err != nil {
		s.log.DebugContext(ctx, "failed to touch session", "session_id", session.ID, "error", err)
	}

	return &auth.Principal{
		UserID:    user.ID,
		Email:     user.Email,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt.Unix(),
		Token:     token,
	}, nil
}

func (s *iamService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *iamService) checkRedirect(redirectURL string) error {
	u, err := url.Parse(redirectURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid("redirect URL must be an absolute http(s) URL")
	}
	if len(s.cfg.AllowedRedirectOrigins) == 0 {
		return nil
	}
	origin := u.Scheme + "://" + u.Host
	for _, allowed := range s.cfg.AllowedRedirectOrigins {
		if strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return nil
		}
	}
	return invalid("redirect URL is not allowed")
}

func (s *iamService) SendPasswordReset(ctx context.Context, email, redirectURL string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.SendPasswordReset")
	defer span.End()
	defer func() { telemetry.RecordError(span, err) }()

	email, err = normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := s.checkRedirect(redirectURL); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.DebugContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, hash, err := auth.GenerateResetToken()
	if err != nil {
		return err
	}
	reset := &models.PasswordReset{
		UserID:      user.ID,
		TokenHash:   hash,
		RedirectURL: redirectURL,
		ExpiresAt:   s.clock.Now().Add(s.cfg.ResetTokenTTL),
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return err
	}

	link, _ := url.Parse(redirectURL)
	q := link.Query()
	q.Set("token", token)
	link.RawQuery = q.Encode()

	if err := s.mailer.SendPasswordReset(ctx, user.Email, link.String()); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

func (s *iamService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.ConfirmPasswordReset")
	defer span.End()
	defer func() {
		telemetry.RecordError(span, err)
		s.metrics.RecordAuth(ctx, "reset", err == nil)
	}()

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	reset, err := s.resets.GetByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}
	now := s.clock.Now()
	if reset.UsedAt != nil || !now.Before(reset.ExpiresAt) {
		return ErrResetTokenInvalid
	}

	used, err := s.resets.MarkUsed(ctx, reset.ID, now)
	if err != nil {
		return err
	}
	if !used {
		return ErrResetTokenInvalid
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, reset.UserID, hash); err != nil {
		return err
	}
	revoked, err := s.sessions.RevokeAllForUser(ctx, reset.UserID)
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "password reset completed", "user_id", reset.UserID, "sessions_revoked", revoked)
	return nil
}

func (s *iamService) DisableUser(ctx context.Context, userID string) error {
	if err := s.users.SetDisabled(ctx, userID, true); err != nil {
		return err
	}
	if _, err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	return nil
}

func (s *iamService) PruneSessions(ctx context.Context) (int, error) {
	return s.sessions.DeleteExpired(ctx, s.clock.Now())
}
