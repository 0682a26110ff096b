// Package service implements the session state machine: creation, validation, rotation and revocation
// of refresh-token-backed sessions bound to a client fingerprint.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"sessionkeeper/backend/internal/audit"
	auditdomain "sessionkeeper/backend/internal/audit/domain"
	"sessionkeeper/backend/internal/fingerprint"
	"sessionkeeper/backend/internal/metrics"
	"sessionkeeper/backend/internal/policy/engine"
	"sessionkeeper/backend/internal/security"
	"sessionkeeper/backend/internal/session/domain"
	"sessionkeeper/backend/internal/session/repository"
	"sessionkeeper/backend/internal/telemetry"
)

// Config is the session policy passed to the Manager.
type Config struct {
	// HardTTL is the absolute session ceiling, fixed at creation and never extended by rotation.
	HardTTL time.Duration
	// MaxConcurrent caps active sessions per user. 0 disables the cap.
	MaxConcurrent int
}

// DefaultConfig returns a 30 day ceiling and at most 4 concurrent sessions.
func DefaultConfig() Config {
	return Config{HardTTL: 30 * 24 * time.Hour, MaxConcurrent: 4}
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithLogger sets the logger used for rejections and store failures.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithAudit records session events in the audit log.
func WithAudit(a audit.AuditLogger) Option {
	return func(m *Manager) {
		if a != nil {
			m.audit = a
		}
	}
}

// WithEmitter sends session security events to telemetry.
func WithEmitter(e telemetry.EventEmitter) Option {
	return func(m *Manager) { m.emitter = e }
}

// WithMetrics counts session outcomes.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock overrides the wall clock. Pair it with TokenCodec.WithClock in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the session lifecycle. It keeps no state between calls; every decision
// is recomputed from the store.
type Manager struct {
	repo    repository.Repository
	codec   *security.TokenCodec
	drift   engine.DriftEvaluator
	cfg     Config
	log     zerolog.Logger
	audit   audit.AuditLogger
	emitter telemetry.EventEmitter
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewManager returns a Manager. A nil drift evaluator falls back to the default static toggles.
func NewManager(repo repository.Repository, codec *security.TokenCodec, drift engine.DriftEvaluator, cfg Config, opts ...Option) *Manager {
	if drift == nil {
		drift = engine.NewStaticEvaluator(engine.DefaultDriftToggles())
	}
	if cfg.HardTTL <= 0 {
		cfg.HardTTL = DefaultConfig().HardTTL
	}
	m := &Manager{
		repo:  repo,
		codec: codec,
		drift: drift,
		cfg:   cfg,
		log:   zerolog.Nop(),
		audit: audit.Nop{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateSession persists the session embedded in a refresh token this process has just minted.
// The token is decoded without verification. The hard ceiling is now + HardTTL.
func (m *Manager) CreateSession(ctx context.Context, refreshToken string, fp fingerprint.Fingerprint) (*domain.Session, error) {
	p, err := m.codec.DecodeRefreshUnverified(refreshToken)
	if err != nil {
		return nil, err
	}
	now := m.now()
	createdAt := p.IssuedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	s := &domain.Session{
		ID:             p.SessionID,
		UserID:         p.Subject,
		Version:        1,
		DeviceName:     fp.DeviceName,
		BrowserVersion: fp.BrowserVersion,
		IPAddress:      fp.IPAddress,
		CreatedAt:      createdAt.Unix(),
		ExpiresAt:      now.Add(m.cfg.HardTTL).Unix(),
		UpdatedAt:      now.Unix(),
	}
	if err := m.repo.Create(ctx, s); err != nil {
		return nil, m.internal("create", err)
	}
	m.metrics.SessionEvent(metrics.EventCreated, "")
	m.audit.LogEvent(ctx, s.UserID, auditdomain.ActionLogin, s.ID, "")
	m.emit(telemetry.EventLogin, s.UserID, s.ID, "")
	return s, nil
}

// ValidateSession decides whether a presented refresh token may be honored. It never mutates a
// session except when the token fails verification, in which case the session the token names
// is revoked with reason inactivity before the codec error is returned.
//
// Checks run in order: token signature and expiry, lookup, version, revoked flag, hard ceiling,
// fingerprint drift. The first failing check determines the recorded reason.
func (m *Manager) ValidateSession(ctx context.Context, refreshToken string, fp fingerprint.Fingerprint) (*security.RefreshPayload, *domain.Session, error) {
	digest := security.TokenDigest(refreshToken)
	p, err := m.codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		m.log.Warn().Err(err).Str("token_digest", digest).Msg("session: refresh token failed verification")
		if _, rerr := m.RevokeSession(ctx, refreshToken, domain.ReasonInactivity); rerr != nil &&
			!errors.Is(rerr, security.ErrTokenInvalid) {
			m.log.Warn().Err(rerr).Str("token_digest", digest).Msg("session: revoke after verification failure")
		}
		return nil, nil, err
	}

	s, err := m.repo.FindOne(ctx, p.SessionID, p.Subject)
	if err != nil {
		return nil, nil, m.internal("find", err)
	}
	if s == nil {
		return nil, nil, m.reject(ctx, p, digest, domain.RejectNotFound, domain.ErrSessionNotFound)
	}
	if s.Version != p.Version {
		return nil, nil, m.reject(ctx, p, digest, domain.RejectVersionMismatch, domain.ErrSessionRevoked)
	}
	if s.Revoked {
		return nil, nil, m.reject(ctx, p, digest, domain.RejectRevoked, domain.ErrSessionRevoked)
	}
	if s.IsExpired(m.now()) {
		return nil, nil, m.reject(ctx, p, digest, domain.RejectHardExpiry, domain.ErrSessionExpired)
	}
	decision, err := m.drift.EvaluateDrift(ctx, s.Fingerprint(), fp)
	if err != nil {
		return nil, nil, m.internal("evaluate drift", err)
	}
	if !decision.Allowed {
		m.log.Info().
			Str("session_id", p.SessionID).
			Strs("drifted", s.Fingerprint().Diff(fp)).
			Msg("session: fingerprint drift")
		return nil, nil, m.reject(ctx, p, digest, decision.Reason, domain.ErrSessionRevoked)
	}
	return p, s, nil
}

// RefreshSession advances the session named by a freshly minted refresh token to the token's version
// and records fp. The write only lands if the stored version is exactly one below and the session
// is still unrevoked and within its ceiling. A session revoked or expired since validation is
// rejected as in ValidateSession; a lost rotation race is ErrSessionRevoked with reason
// concurrent_rotation.
func (m *Manager) RefreshSession(ctx context.Context, newRefreshToken string, fp fingerprint.Fingerprint) error {
	p, err := m.codec.DecodeRefreshUnverified(newRefreshToken)
	if err != nil {
		return err
	}
	digest := security.TokenDigest(newRefreshToken)
	s, err := m.repo.FindOne(ctx, p.SessionID, p.Subject)
	if err != nil {
		return m.internal("find", err)
	}
	if s == nil {
		return m.reject(ctx, p, digest, domain.RejectNotFound, domain.ErrSessionNotFound)
	}
	now := m.now()
	if err := m.checkRotatable(ctx, p, digest, s, now); err != nil {
		return err
	}
	ok, err := m.repo.Update(ctx, p.SessionID, p.Subject, domain.RotatePatch(p.Version, fp, now))
	if err != nil {
		return m.internal("rotate", err)
	}
	if !ok {
		// Re-read to tell a revoke or expiry that landed after the check from a lost rotation.
		s, err = m.repo.FindOne(ctx, p.SessionID, p.Subject)
		if err != nil {
			return m.internal("find", err)
		}
		if s != nil {
			if err := m.checkRotatable(ctx, p, digest, s, now); err != nil {
				return err
			}
		}
		return m.reject(ctx, p, digest, domain.RejectConcurrentRotation, domain.ErrSessionRevoked)
	}
	m.metrics.SessionEvent(metrics.EventRotated, "")
	m.audit.LogEvent(ctx, p.Subject, auditdomain.ActionRotated, p.SessionID, fmt.Sprintf("version=%d", p.Version))
	m.emit(telemetry.EventRotated, p.Subject, p.SessionID, "")
	return nil
}

// RevokeSession revokes the session named by refreshToken. The token is decoded without verification
// so expired or superseded tokens still identify their row. Revoking a revoked or missing session is
// a no-op and reports false.
func (m *Manager) RevokeSession(ctx context.Context, refreshToken, reason string) (bool, error) {
	p, err := m.codec.DecodeRefreshUnverified(refreshToken)
	if err != nil {
		return false, err
	}
	return m.RevokeByID(ctx, p.Subject, p.SessionID, reason)
}

// RevokeAllSessions revokes every session of the user named by refreshToken and returns how many changed.
func (m *Manager) RevokeAllSessions(ctx context.Context, refreshToken, reason string) (int64, error) {
	p, err := m.codec.DecodeRefreshUnverified(refreshToken)
	if err != nil {
		return 0, err
	}
	return m.RevokeAllForUser(ctx, p.Subject, reason)
}

// RevokeByID revokes one session of userID. The first recorded reason is kept.
func (m *Manager) RevokeByID(ctx context.Context, userID, sessionID, reason string) (bool, error) {
	ok, err := m.repo.Update(ctx, sessionID, userID, domain.RevokePatch(reason))
	if err != nil {
		return false, m.internal("revoke", err)
	}
	if ok {
		m.metrics.SessionEvent(metrics.EventRevoked, reason)
		m.audit.LogEvent(ctx, userID, auditdomain.ActionRevoked, sessionID, reason)
		m.emit(telemetry.EventRevoked, userID, sessionID, reason)
	}
	return ok, nil
}

// RevokeAllForUser revokes every not yet revoked session of userID.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID, reason string) (int64, error) {
	n, err := m.repo.UpdateAll(ctx, userID, domain.RevokePatch(reason))
	if err != nil {
		return 0, m.internal("revoke all", err)
	}
	if n > 0 {
		m.metrics.SessionEvents(metrics.EventRevoked, reason, n)
		m.audit.LogEvent(ctx, userID, auditdomain.ActionRevokedAll, "", fmt.Sprintf("reason=%s count=%d", reason, n))
		m.emit(telemetry.EventRevoked, userID, "", reason)
	}
	return n, nil
}

// EnforceLimit revokes the user's oldest active sessions beyond MaxConcurrent with reason max_sessions.
// keepSessionID is never evicted, so the session that triggered the check survives.
func (m *Manager) EnforceLimit(ctx context.Context, userID, keepSessionID string) (int64, error) {
	if m.cfg.MaxConcurrent <= 0 {
		return 0, nil
	}
	active, err := m.repo.ListActive(ctx, userID, m.now().Unix())
	if err != nil {
		return 0, m.internal("list active", err)
	}
	if len(active) <= m.cfg.MaxConcurrent {
		return 0, nil
	}
	// active is newest first; keep the pinned session plus the newest others.
	slots := m.cfg.MaxConcurrent
	for _, s := range active {
		if s.ID == keepSessionID {
			slots--
			break
		}
	}
	kept := 0
	var evict []*domain.Session
	for _, s := range active {
		if s.ID == keepSessionID {
			continue
		}
		if kept < slots {
			kept++
			continue
		}
		evict = append(evict, s)
	}
	var revoked int64
	for _, s := range evict {
		ok, err := m.RevokeByID(ctx, userID, s.ID, domain.ReasonMaxSessions)
		if err != nil {
			return revoked, err
		}
		if ok {
			revoked++
		}
	}
	return revoked, nil
}

// ListSessions returns the user's active sessions, or revoked ones when revoked is true. Newest first.
func (m *Manager) ListSessions(ctx context.Context, userID string, revoked bool) ([]*domain.Session, error) {
	var (
		out []*domain.Session
		err error
	)
	if revoked {
		out, err = m.repo.ListRevoked(ctx, userID)
	} else {
		out, err = m.repo.ListActive(ctx, userID, m.now().Unix())
	}
	if err != nil {
		return nil, m.internal("list", err)
	}
	return out, nil
}

// checkRotatable rejects rotation of a revoked or expired session.
func (m *Manager) checkRotatable(ctx context.Context, p *security.RefreshPayload, digest string, s *domain.Session, now time.Time) error {
	if s.Revoked {
		return m.reject(ctx, p, digest, domain.RejectRevoked, domain.ErrSessionRevoked)
	}
	if s.IsExpired(now) {
		return m.reject(ctx, p, digest, domain.RejectHardExpiry, domain.ErrSessionExpired)
	}
	return nil
}

// PurgeExpired deletes sessions whose hard ceiling passed more than grace ago.
func (m *Manager) PurgeExpired(ctx context.Context, grace time.Duration) (int64, error) {
	n, err := m.repo.PurgeExpired(ctx, m.now().Add(-grace).Unix())
	if err != nil {
		return 0, m.internal("purge", err)
	}
	m.metrics.SessionEvents(metrics.EventPurged, "", n)
	if n > 0 {
		m.log.Info().Int64("count", n).Msg("session: purged expired sessions")
	}
	return n, nil
}

// reject records a rejection with its detailed reason and returns the coarse error carrying it.
func (m *Manager) reject(ctx context.Context, p *security.RefreshPayload, digest, reason string, err error) error {
	m.log.Warn().
		Str("reason", reason).
		Str("user_id", p.Subject).
		Str("session_id", p.SessionID).
		Int64("version", p.Version).
		Str("token_digest", digest).
		Msg("session: rejected")
	m.metrics.SessionEvent(metrics.EventRejected, reason)
	action, event := auditdomain.ActionRejected, telemetry.EventRejected
	if reason == domain.RejectVersionMismatch || reason == domain.RejectConcurrentRotation {
		action, event = auditdomain.ActionReplayDetected, telemetry.EventReplayDetected
	}
	m.audit.LogEvent(ctx, p.Subject, action, p.SessionID, reason)
	m.emit(event, p.Subject, p.SessionID, reason)
	return domain.Reject(reason, err)
}

// internal wraps a store failure so callers see ErrInternal while the cause stays inspectable.
func (m *Manager) internal(op string, err error) error {
	m.log.Error().Err(err).Str("op", op).Msg("session: store failure")
	return fmt.Errorf("session %s: %w", op, errors.Join(domain.ErrInternal, err))
}

func (m *Manager) emit(eventType, userID, sessionID, reason string) {
	if m.emitter == nil {
		return
	}
	telemetry.EmitAsync(m.emitter, m.log, &telemetry.Event{
		Type:      eventType,
		UserID:    userID,
		SessionID: sessionID,
		Reason:    reason,
		CreatedAt: m.now().UTC(),
	})
}
