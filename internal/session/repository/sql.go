package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"sessionkeeper/backend/internal/db"
	"sessionkeeper/backend/internal/session/domain"
)

const sessionColumns = `session_id, user_id, version, is_revoked, reason, device_name, browser_version, ip_address, created_at, expires_at, updated_at`

type sessionRow struct {
	SessionID      string `db:"session_id"`
	UserID         string `db:"user_id"`
	Version        int64  `db:"version"`
	IsRevoked      bool   `db:"is_revoked"`
	Reason         string `db:"reason"`
	DeviceName     string `db:"device_name"`
	BrowserVersion string `db:"browser_version"`
	IPAddress      string `db:"ip_address"`
	CreatedAt      int64  `db:"created_at"`
	ExpiresAt      int64  `db:"expires_at"`
	UpdatedAt      int64  `db:"updated_at"`
}

// SQLRepository is a session repository over database/sql (postgres or sqlite).
type SQLRepository struct {
	db      *sql.DB
	dialect db.Dialect
	now     func() time.Time
}

// NewSQLRepository returns a session repository that uses sqlDB with the given driver's placeholder syntax.
func NewSQLRepository(sqlDB *sql.DB, driver string) *SQLRepository {
	return &SQLRepository{db: sqlDB, dialect: db.Dialect(driver), now: time.Now}
}

// Create persists a new session row with version 1 and is_revoked false.
func (r *SQLRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, 1, ?, '', ?, ?, ?, ?, ?, ?)`),
		s.ID, s.UserID, false, s.DeviceName, s.BrowserVersion, s.IPAddress, s.CreatedAt, s.ExpiresAt, r.now().Unix())
	return err
}

// FindOne returns the session matching sessionID and userID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) FindOne(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	var row sessionRow
	err := sqlscan.Get(ctx, r.db, &row, r.dialect.Rebind(
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ? AND user_id = ?`), sessionID, userID)
	if err != nil {
		if sqlscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDomain(&row), nil
}

// Update applies p to one session. An empty patch touches nothing and returns false.
func (r *SQLRepository) Update(ctx context.Context, sessionID, userID string, p domain.Patch) (bool, error) {
	if p.Empty() {
		return false, nil
	}
	set, args := r.setClause(p)
	where := ` WHERE session_id = ? AND user_id = ?`
	args = append(args, sessionID, userID)
	where, args = guard(where, args, p)
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`UPDATE sessions SET `+set+where), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateAll applies p to every session owned by userID.
func (r *SQLRepository) UpdateAll(ctx context.Context, userID string, p domain.Patch) (int64, error) {
	if p.Empty() {
		return 0, nil
	}
	set, args := r.setClause(p)
	where := ` WHERE user_id = ?`
	args = append(args, userID)
	where, args = guard(where, args, p)
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`UPDATE sessions SET `+set+where), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListActive returns sessions that are not revoked and whose ceiling is at or after now, newest first.
func (r *SQLRepository) ListActive(ctx context.Context, userID string, now int64) ([]*domain.Session, error) {
	return r.list(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? AND is_revoked = ? AND expires_at >= ? ORDER BY created_at DESC, session_id`, userID, false, now)
}

// ListRevoked returns revoked sessions, newest first.
func (r *SQLRepository) ListRevoked(ctx context.Context, userID string) ([]*domain.Session, error) {
	return r.list(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? AND is_revoked = ? ORDER BY created_at DESC, session_id`, userID, true)
}

// PurgeExpired deletes sessions whose expires_at is before the given epoch second.
func (r *SQLRepository) PurgeExpired(ctx context.Context, before int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM sessions WHERE expires_at < ?`), before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Session, error) {
	var rows []*sessionRow
	if err := sqlscan.Select(ctx, r.db, &rows, r.dialect.Rebind(query), args...); err != nil {
		return nil, err
	}
	out := make([]*domain.Session, len(rows))
	for i, row := range rows {
		out[i] = rowToDomain(row)
	}
	return out, nil
}

// setClause renders the SET list for p, always ending with updated_at.
func (r *SQLRepository) setClause(p domain.Patch) (string, []any) {
	var (
		cols []string
		args []any
	)
	if p.Version != nil {
		cols = append(cols, "version = ?")
		args = append(args, *p.Version)
	}
	if p.Revoke {
		cols = append(cols, "is_revoked = ?")
		args = append(args, true)
	}
	if p.Reason != nil {
		cols = append(cols, "reason = ?")
		args = append(args, *p.Reason)
	}
	if p.DeviceName != nil {
		cols = append(cols, "device_name = ?")
		args = append(args, *p.DeviceName)
	}
	if p.BrowserVersion != nil {
		cols = append(cols, "browser_version = ?")
		args = append(args, *p.BrowserVersion)
	}
	if p.IPAddress != nil {
		cols = append(cols, "ip_address = ?")
		args = append(args, *p.IPAddress)
	}
	cols = append(cols, "updated_at = ?")
	args = append(args, r.now().Unix())
	return strings.Join(cols, ", "), args
}

// guard narrows the WHERE clause: a version guard makes the write compare-and-swap, an
// active guard skips revoked or expired rows, and a revocation never touches rows that are
// already revoked so the first reason is kept.
func guard(where string, args []any, p domain.Patch) (string, []any) {
	if p.IfVersion > 0 {
		where += ` AND version = ?`
		args = append(args, p.IfVersion)
	}
	if p.Revoke || p.IfActiveAt > 0 {
		where += ` AND is_revoked = ?`
		args = append(args, false)
	}
	if p.IfActiveAt > 0 {
		where += ` AND expires_at >= ?`
		args = append(args, p.IfActiveAt)
	}
	return where, args
}

func rowToDomain(row *sessionRow) *domain.Session {
	return &domain.Session{
		ID:             row.SessionID,
		UserID:         row.UserID,
		Version:        row.Version,
		Revoked:        row.IsRevoked,
		Reason:         row.Reason,
		DeviceName:     row.DeviceName,
		BrowserVersion: row.BrowserVersion,
		IPAddress:      row.IPAddress,
		CreatedAt:      row.CreatedAt,
		ExpiresAt:      row.ExpiresAt,
		UpdatedAt:      row.UpdatedAt,
	}
}
