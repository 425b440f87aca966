// Package db persists backtest runs and their result rows in PostgreSQL or SQLite.
package db

import (
	"context"
	"fmt"
	"strings"

	"happycast/internal/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported driver names
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DetectDriver infers the driver from a connection URL
func DetectDriver(url string) string {
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") || strings.Contains(lower, "sslmode=") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Open connects to the database. An empty driver is inferred from the URL.
// SQLite connections are limited to one so in-memory databases stay shared.
func Open(ctx context.Context, driver, url string) (*sqlx.DB, error) {
	if url == "" {
		return nil, errors.ConfigInvalid("database URL is empty")
	}
	if driver == "" {
		driver = DetectDriver(url)
	}
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unsupported database driver %q", driver))
	}

	if driver == DriverSQLite {
		url = withSQLiteTimeFormat(url)
	}
	db, err := sqlx.ConnectContext(ctx, driver, url)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, errors.DatabaseError("failed to enable foreign keys", err)
		}
	}
	return db, nil
}

// withSQLiteTimeFormat makes the driver store timestamps in a sortable layout it can parse back
func withSQLiteTimeFormat(url string) string {
	if strings.Contains(url, "_time_format=") {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "_time_format=sqlite"
}
