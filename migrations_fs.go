package relay

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the delivery ledger schema. Postgres files sit at the
// root and sqlite alternatives under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

func GetMigrationsFS() fs.FS {
	return migrationsFS
}
