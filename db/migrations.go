// Package db carries the schema migrations of the claims database.
package db

import "embed"

// Migrations holds the *.up.sql files, applied in lexical order.
//
//go:embed migrations/*.up.sql
var Migrations embed.FS
