// Package migrations embeds the table definitions of the card store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
