// Package migrate runs database migrations from embedded SQL files using golang-migrate.
package migrate

import (
	"database/sql"
	"errors"
	"fmt"

	"sessionkeeper/backend/internal/db"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ErrNoChange is returned when Up/Down has nothing to do (already at target version).
var ErrNoChange = migrate.ErrNoChange

// Run opens driver/dsn and applies migrations in the given direction.
// direction must be "up" or "down". Returns nil on success, including when already at the target version.
func Run(driver, dsn, direction string) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if err := checkDirection(direction); err != nil {
		return err
	}
	sqlDB, err := db.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("migrate: open: %w", err)
	}
	defer sqlDB.Close()
	return Apply(sqlDB, driver, direction)
}

// Apply runs the embedded migrations for driver against an already open sqlDB.
// sqlDB stays open afterwards.
func Apply(sqlDB *sql.DB, driver, direction string) error {
	if err := checkDirection(direction); err != nil {
		return err
	}
	var (
		dbDriver database.Driver
		err      error
	)
	switch driver {
	case db.DriverPostgres:
		dbDriver, err = postgres.WithInstance(sqlDB, &postgres.Config{})
	case db.DriverSQLite:
		dbDriver, err = sqlite.WithInstance(sqlDB, &sqlite.Config{})
	default:
		return fmt.Errorf("%w: %q", db.ErrUnknownDriver, driver)
	}
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(db.MigrationFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	defer sourceDriver.Close()

	// m.Close would close sqlDB through the database driver, so it is not called here.
	m, err := migrate.NewWithInstance("iofs", sourceDriver, driver, dbDriver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func checkDirection(direction string) error {
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}
	return nil
}
