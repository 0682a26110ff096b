package db

import "embed"

// MigrationFS embeds SQL migration files, one directory per driver (migrations/postgres, migrations/sqlite).
// Used by the migrate runner (cmd/migrate, tests) to apply migrations.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var MigrationFS embed.FS
