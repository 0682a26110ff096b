package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"sessionkeeper/backend/internal/audit/domain"
	"sessionkeeper/backend/internal/db"
)

type auditRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Action    string `db:"action"`
	Resource  string `db:"resource"`
	IP        string `db:"ip"`
	Metadata  string `db:"metadata"`
	CreatedAt int64  `db:"created_at"`
}

// SQLRepository is an audit log repository over database/sql (postgres or sqlite).
type SQLRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewSQLRepository returns an audit log repository that uses sqlDB with the given driver's placeholder syntax.
func NewSQLRepository(sqlDB *sql.DB, driver string) *SQLRepository {
	return &SQLRepository{db: sqlDB, dialect: db.Dialect(driver)}
}

// ListByUser returns the newest audit logs for userID, at most limit entries.
func (r *SQLRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []*auditRow
	err := sqlscan.Select(ctx, r.db, &rows, r.dialect.Rebind(
		`SELECT id, user_id, action, resource, ip, metadata, created_at FROM audit_logs WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`),
		userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AuditLog, len(rows))
	for i, row := range rows {
		out[i] = &domain.AuditLog{
			ID: row.ID, UserID: row.UserID, Action: row.Action, Resource: row.Resource,
			IP: row.IP, Metadata: row.Metadata, CreatedAt: time.Unix(row.CreatedAt, 0).UTC(),
		}
	}
	return out, nil
}

// Create persists the audit log. The audit log must have ID set.
func (r *SQLRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO audit_logs (id, user_id, action, resource, ip, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.UserID, a.Action, a.Resource, a.IP, a.Metadata, a.CreatedAt.Unix())
	return err
}
