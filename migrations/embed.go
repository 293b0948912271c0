// Package migrations embeds the SQL schema for the Postgres catalog
// source so it applies regardless of working directory.
package migrations

import "embed"

// FS is the embedded migrations filesystem, all .sql files in this
// directory in name order.
//
//go:embed *.sql
var FS embed.FS
