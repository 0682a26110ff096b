package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"sessionkeeper/backend/internal/db"
	"sessionkeeper/backend/internal/user/domain"
)

const userColumns = `id, username, password_hash, role, created_at`

type userRow struct {
	ID           string `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
	CreatedAt    int64  `db:"created_at"`
}

// SQLRepository is a user repository over database/sql (postgres or sqlite).
type SQLRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewSQLRepository returns a user repository that uses sqlDB with the given driver's placeholder syntax.
func NewSQLRepository(sqlDB *sql.DB, driver string) *SQLRepository {
	return &SQLRepository{db: sqlDB, dialect: db.Dialect(driver)}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByUsername returns the user with the given username, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
// Returns ErrUsernameTaken when the username is already registered.
func (r *SQLRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`),
		u.ID, u.Username, u.PasswordHash, u.Role, u.CreatedAt.Unix())
	if db.IsUniqueViolation(err) {
		return ErrUsernameTaken
	}
	return err
}

func (r *SQLRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var row userRow
	if err := sqlscan.Get(ctx, r.db, &row, r.dialect.Rebind(query), arg); err != nil {
		if sqlscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return rowToDomain(&row), nil
}

func rowToDomain(row *userRow) *domain.User {
	return &domain.User{
		ID:           row.ID,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		Role:         row.Role,
		CreatedAt:    time.Unix(row.CreatedAt, 0).UTC(),
	}
}
