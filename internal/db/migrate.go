package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/mysql/*.sql
var mysqlMigrations embed.FS

//go:embed migrations/clickhouse/*.sql
var clickhouseMigrations embed.FS

// MigrateMySQL applies every pending up migration for the ledger and accounts
// tables. An already current schema is not an error.
func MigrateMySQL(db *sqlx.DB) error {
	src, err := iofs.New(mysqlMigrations, "migrations/mysql")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	drv, err := migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "mysql", drv)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// ClickHouseStatements returns the audit store DDL in apply order.
func ClickHouseStatements() ([]string, error) {
	names, err := fs.Glob(clickhouseMigrations, "migrations/clickhouse/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, n := range names {
		b, err := clickhouseMigrations.ReadFile(n)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", n, err)
		}
		if stmt := strings.TrimSpace(string(b)); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out, nil
}

// MigrateClickHouse creates the audit database and table if missing.
func MigrateClickHouse(ctx context.Context, ch *sqlx.DB) error {
	stmts, err := ClickHouseStatements()
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := ch.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("clickhouse ddl: %w", err)
		}
	}
	return nil
}
