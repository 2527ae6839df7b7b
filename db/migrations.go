// Package db embeds the bus's SQL migrations for golang-migrate's iofs
// source, exactly as the teacher embeds its own single-table migration set.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
