// Package migrations provides the embedded SQL migrations for the chat
// service (order matters: 001, 002, ...).
package migrations

import "embed"

// Files contains every .sql file in this directory.
//go:embed *.sql
var Files embed.FS
