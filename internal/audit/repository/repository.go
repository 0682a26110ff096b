package repository

import (
	"context"

	"sessionkeeper/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
}
