// Package migrations embeds the Postgres schema for the customer and dedup stores.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
