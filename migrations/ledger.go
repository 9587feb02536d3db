// Package migrations resolves the delivery ledger schema for the configured
// database driver.
package migrations

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	relay "github.com/goliatone/go-callback-relay"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	rootDir = "data/sql/migrations"
)

// Set is the ledger migration tree of one dialect. Up lists the forward
// files in apply order.
type Set struct {
	Dialect string
	Dir     string
	FS      fs.FS
	Up      []string
}

// DialectFor maps a ledger driver name onto its migration dialect.
func DialectFor(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}

// ForDriver returns the embedded ledger migrations for driver.
func ForDriver(driver string) (Set, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return Set{}, err
	}
	return Load(relay.GetMigrationsFS(), dialect)
}

// Load reads the dialect tree out of root. Postgres files sit directly in
// data/sql/migrations, sqlite alternatives in its sqlite/ folder.
func Load(root fs.FS, dialect string) (Set, error) {
	if root == nil {
		return Set{}, fmt.Errorf("migrations: filesystem is required")
	}
	dir := rootDir
	switch dialect {
	case DialectPostgres:
	case DialectSQLite:
		dir = rootDir + "/sqlite"
	default:
		return Set{}, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}

	sub, err := fs.Sub(root, dir)
	if err != nil {
		return Set{}, fmt.Errorf("migrations: resolve %s: %w", dir, err)
	}
	up, err := fs.Glob(sub, "*.up.sql")
	if err != nil {
		return Set{}, fmt.Errorf("migrations: glob %s: %w", dir, err)
	}
	if len(up) == 0 {
		return Set{}, fmt.Errorf("migrations: %s has no *.up.sql files", dir)
	}
	sort.Strings(up)
	for _, name := range up {
		down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(sub, down); err != nil {
			return Set{}, fmt.Errorf("migrations: %s/%s has no matching down file", dir, name)
		}
	}
	return Set{Dialect: dialect, Dir: dir, FS: sub, Up: up}, nil
}
