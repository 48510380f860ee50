// Package migrations embeds the versioned PostgreSQL schema migrations.
//
// Migrations are strictly additive: new versions may add tables, columns,
// or indexes but never rewrite or drop what earlier versions created.
package migrations

import "embed"

// FS holds the migration SQL files.
//
//go:embed *.sql
var FS embed.FS
