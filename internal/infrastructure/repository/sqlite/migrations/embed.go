package migrations

import "embed"

// FS contains the embedded SQLite roster schema.
//
//go:embed *.sql
var FS embed.FS
