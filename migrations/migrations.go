// Package migrations embeds the versioned SQL schema applied outside development.
package migrations

import "embed"

// FS holds the golang-migrate up/down files.
//
//go:embed *.sql
var FS embed.FS
