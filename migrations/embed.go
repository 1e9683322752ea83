// Package migrations embeds the SQL schema of a persistent identity store.
package migrations

import "embed"

// FS contains goose migrations for content stores.
//
//go:embed *.sql
var FS embed.FS
