// Package migrations embeds the golang-migrate SQL files so the server binary
// can upgrade its schema without a checkout on disk.
package migrations

import "embed"

// FS holds every *.up.sql / *.down.sql file in this directory
//
//go:embed *.sql
var FS embed.FS
