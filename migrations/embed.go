// Package migrations holds the SQL migrations for tablelink's own tables.
package migrations

import "embed"

// FS contains every *.sql migration, applied in version order by golang-migrate.
//
//go:embed *.sql
var FS embed.FS
