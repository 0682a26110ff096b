package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sessionkeeper/backend/internal/audit"
	auditdomain "sessionkeeper/backend/internal/audit/domain"
	"sessionkeeper/backend/internal/fingerprint"
	"sessionkeeper/backend/internal/metrics"
	"sessionkeeper/backend/internal/security"
	sessiondomain "sessionkeeper/backend/internal/session/domain"
	userdomain "sessionkeeper/backend/internal/user/domain"
)

// Sentinel errors for auth service; handler maps them to HTTP error codes.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenRequired      = errors.New("refresh token required")
	ErrWeakPassword       = errors.New("password must be at least 8 characters with upper and lower case letters and a digit")
)

// AuthResult holds the outcome of Login or Refresh.
type AuthResult struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
	UserID          string
	Username        string
	Role            string
	SessionID       string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// SessionManager is the session state machine the auth service drives.
type SessionManager interface {
	CreateSession(ctx context.Context, refreshToken string, fp fingerprint.Fingerprint) (*sessiondomain.Session, error)
	ValidateSession(ctx context.Context, refreshToken string, fp fingerprint.Fingerprint) (*security.RefreshPayload, *sessiondomain.Session, error)
	RefreshSession(ctx context.Context, newRefreshToken string, fp fingerprint.Fingerprint) error
	RevokeSession(ctx context.Context, refreshToken, reason string) (bool, error)
	RevokeAllSessions(ctx context.Context, refreshToken, reason string) (int64, error)
	EnforceLimit(ctx context.Context, userID, keepSessionID string) (int64, error)
}

// Option configures optional AuthService collaborators.
type Option func(*AuthService)

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *AuthService) { s.log = l }
}

// WithAudit records registrations and failed logins.
func WithAudit(a audit.AuditLogger) Option {
	return func(s *AuthService) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithMetrics counts login outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *AuthService) { s.metrics = m }
}

// WithClock overrides the clock used for token issue times.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// AuthService implements register, login, refresh, logout and logout-everywhere on top of the
// session manager. Every refresh or revoke validates the presented token first.
type AuthService struct {
	users    UserRepo
	verifier CredentialVerifier
	hasher   *security.Hasher
	codec    *security.TokenCodec
	sessions SessionManager
	log      zerolog.Logger
	audit    audit.AuditLogger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(
	users UserRepo,
	verifier CredentialVerifier,
	hasher *security.Hasher,
	codec *security.TokenCodec,
	sessions SessionManager,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		users:    users,
		verifier: verifier,
		hasher:   hasher,
		codec:    codec,
		sessions: sessions,
		log:      zerolog.Nop(),
		audit:    audit.Nop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user with the given username and password and role user.
func (s *AuthService) Register(ctx context.Context, username, password string) (*userdomain.User, error) {
	return s.CreateUser(ctx, username, password, userdomain.RoleUser)
}

// CreateUser creates a user with an explicit role. Used by the operator CLI.
func (s *AuthService) CreateUser(ctx context.Context, username, password, role string) (*userdomain.User, error) {
	username = strings.TrimSpace(username)
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	user := &userdomain.User{
		ID:        uuid.New().String(),
		Username:  username,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	// Check the username before paying for bcrypt.
	user.PasswordHash = "pending"
	if err := user.Validate(); err != nil {
		return nil, err
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hashed
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, user.ID, auditdomain.ActionUserRegistered, user.ID, user.Role)
	return user, nil
}

// Login verifies credentials, mints a version 1 token pair for a fresh session, persists the session
// and then enforces the concurrent session cap.
func (s *AuthService) Login(ctx context.Context, username, password string, fp fingerprint.Fingerprint) (*AuthResult, error) {
	user, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.metrics.Login(false)
			s.audit.LogEvent(ctx, "", auditdomain.ActionLoginFailed, strings.TrimSpace(username), "")
		}
		return nil, err
	}
	sessionID, err := security.NewSessionID()
	if err != nil {
		return nil, err
	}
	res, err := s.mint(user, sessionID, 1)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.CreateSession(ctx, res.RefreshToken, fp); err != nil {
		return nil, err
	}
	if n, err := s.sessions.EnforceLimit(ctx, user.ID, sessionID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("auth: enforce session limit")
	} else if n > 0 {
		s.log.Info().Str("user_id", user.ID).Int64("revoked", n).Msg("auth: evicted sessions over limit")
	}
	s.metrics.Login(true)
	return res, nil
}

// Refresh validates the presented refresh token, mints a pair with the same session id and the next
// version, and persists the rotation. A replayed token revokes the session it names.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, fp fingerprint.Fingerprint) (*AuthResult, error) {
	p, err := s.validate(ctx, refreshToken, fp)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, p.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, sessiondomain.Reject(sessiondomain.RejectNotFound, sessiondomain.ErrSessionNotFound)
	}
	res, err := s.mint(user, p.SessionID, p.Version+1)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RefreshSession(ctx, res.RefreshToken, fp); err != nil {
		return nil, err
	}
	return res, nil
}

// Logout validates the refresh token and revokes its session with reason logout.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, fp fingerprint.Fingerprint) error {
	if _, err := s.validate(ctx, refreshToken, fp); err != nil {
		return err
	}
	_, err := s.sessions.RevokeSession(ctx, refreshToken, sessiondomain.ReasonLogout)
	return err
}

// RevokeAll validates the refresh token and revokes every session of its owner. An empty reason
// records logout_all. Returns the number of sessions revoked.
func (s *AuthService) RevokeAll(ctx context.Context, refreshToken string, fp fingerprint.Fingerprint, reason string) (int64, error) {
	if _, err := s.validate(ctx, refreshToken, fp); err != nil {
		return 0, err
	}
	if reason == "" {
		reason = sessiondomain.ReasonLogoutAll
	}
	return s.sessions.RevokeAllSessions(ctx, refreshToken, reason)
}

func (s *AuthService) validate(ctx context.Context, refreshToken string, fp fingerprint.Fingerprint) (*security.RefreshPayload, error) {
	if refreshToken == "" {
		return nil, ErrTokenRequired
	}
	p, _, err := s.sessions.ValidateSession(ctx, refreshToken, fp)
	if err == nil {
		return p, nil
	}
	if sessiondomain.RejectionReason(err) == sessiondomain.RejectVersionMismatch {
		if _, rerr := s.sessions.RevokeSession(ctx, refreshToken, sessiondomain.ReasonReplayDetected); rerr != nil {
			s.log.Error().Err(rerr).Str("token_digest", security.TokenDigest(refreshToken)).Msg("auth: revoke replayed session")
		}
	}
	return nil, err
}

func (s *AuthService) mint(user *userdomain.User, sessionID string, version int64) (*AuthResult, error) {
	now := s.now()
	access := s.codec.AccessPayloadFor(user.ID, user.Role, now)
	accessToken, err := s.codec.MintAccessToken(access)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	refreshToken, err := s.codec.MintRefreshToken(s.codec.RefreshPayloadFor(user.ID, sessionID, version, now))
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}
	return &AuthResult{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: access.ExpiresAt,
		UserID:          user.ID,
		Username:        user.Username,
		Role:            user.Role,
		SessionID:       sessionID,
	}, nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: too short", ErrWeakPassword)
	}
	var hasUpper, hasLower, hasNumber bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("%w: missing an uppercase letter", ErrWeakPassword)
	}
	if !hasLower {
		return fmt.Errorf("%w: missing a lowercase letter", ErrWeakPassword)
	}
	if !hasNumber {
		return fmt.Errorf("%w: missing a digit", ErrWeakPassword)
	}
	return nil
}
