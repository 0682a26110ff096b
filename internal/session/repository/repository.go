package repository

import (
	"context"

	"sessionkeeper/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Lookups and single-row updates are always scoped
// by both session id and owning user.
type Repository interface {
	// Create inserts s with version 1 and not revoked.
	Create(ctx context.Context, s *domain.Session) error
	// FindOne returns the session, or nil if no row matches both keys.
	FindOne(ctx context.Context, sessionID, userID string) (*domain.Session, error)
	// Update applies p and bumps updated_at. Returns false when no row matched,
	// including when p.IfVersion is set and the stored version differs, or p.IfActiveAt is set and
	// the row is revoked or past its ceiling.
	Update(ctx context.Context, sessionID, userID string, p domain.Patch) (bool, error)
	// UpdateAll applies p to every session of userID and returns the number of rows changed.
	UpdateAll(ctx context.Context, userID string, p domain.Patch) (int64, error)
	// ListActive returns the user's sessions that are neither revoked nor past their ceiling at now, newest first.
	ListActive(ctx context.Context, userID string, now int64) ([]*domain.Session, error)
	// ListRevoked returns the user's revoked sessions, newest first.
	ListRevoked(ctx context.Context, userID string) ([]*domain.Session, error)
	// PurgeExpired deletes sessions whose hard ceiling is before the given epoch second.
	PurgeExpired(ctx context.Context, before int64) (int64, error)
}
