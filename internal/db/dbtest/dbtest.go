// Package dbtest provides migrated throwaway databases for repository tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"sessionkeeper/backend/internal/db"
	"sessionkeeper/backend/internal/db/migrate"
)

// NewSQLite opens a fresh file-backed SQLite database under t.TempDir, applies all migrations,
// and closes it when the test ends.
func NewSQLite(t testing.TB) *sql.DB {
	t.Helper()
	sqlDB, err := db.Open(db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("dbtest: open: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := migrate.Apply(sqlDB, db.DriverSQLite, "up"); err != nil {
		t.Fatalf("dbtest: migrate: %v", err)
	}
	return sqlDB
}

// InsertUser inserts a minimal user row so sessions can reference it.
func InsertUser(t testing.TB, sqlDB *sql.DB, id, username string) {
	t.Helper()
	if _, err := sqlDB.Exec(`INSERT INTO users (id, username, password_hash, role, created_at) VALUES (?, ?, 'x', 'user', 0)`, id, username); err != nil {
		t.Fatalf("dbtest: insert user: %v", err)
	}
}
