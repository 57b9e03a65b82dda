// Package migrations embeds the Postgres schema. File names follow the
// golang-migrate convention: {version}_{name}.up.sql / .down.sql.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
