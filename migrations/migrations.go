// Package migrations embeds the schema migrations for each supported
// database driver. Files apply in filename order.
package migrations

import "embed"

// SqliteMigrations holds the SQLite schema migrations.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

// PostgresMigrations holds the PostgreSQL schema migrations.
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS
