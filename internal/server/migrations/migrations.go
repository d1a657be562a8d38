// Package migrations embeds the goose SQL migrations applied at server start.
package migrations

import "embed"

// Migrations holds every *.sql migration in this directory.
//
//go:embed *.sql
var Migrations embed.FS
