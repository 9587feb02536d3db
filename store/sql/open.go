package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-callback-relay/core"
	relaymigrations "github.com/goliatone/go-callback-relay/migrations"
)

type persistenceConfig struct {
	driver      string
	server      string
	debug       bool
	pingTimeout time.Duration
	otelID      string
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return c.pingTimeout }
func (c persistenceConfig) GetOtelIdentifier() string     { return c.otelID }

// Open connects to the configured ledger database and applies the relay
// migrations for its dialect.
func Open(ctx context.Context, cfg core.LedgerConfig, serviceName string) (*persistence.Client, error) {
	set, err := relaymigrations.ForDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: ledger dsn is required")
	}

	driverName, dialect := sqlDriver(set.Dialect)
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driverName, err)
	}
	if set.Dialect == relaymigrations.DialectSQLite {
		// Shared in-memory databases vanish once the last connection closes.
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{
		driver:      driverName,
		server:      dsn,
		debug:       cfg.Debug,
		pingTimeout: 5 * time.Second,
		otelID:      serviceName,
	}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	client.RegisterSQLMigrations(set.FS)
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate %s: %w", set.Dir, err)
	}
	return client, nil
}

func sqlDriver(dialect string) (string, schema.Dialect) {
	if dialect == relaymigrations.DialectPostgres {
		return "postgres", pgdialect.New()
	}
	return "sqlite3", sqlitedialect.New()
}
