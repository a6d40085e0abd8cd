// Package migrations embeds the SQL schema of each storage driver.
// Files are named {version}_{name}.sql (e.g. 0001_init.sql).
package migrations

import "embed"

//go:embed postgres/*.sql
var PostgresFS embed.FS

//go:embed sqlite/*.sql
var SQLiteFS embed.FS

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
