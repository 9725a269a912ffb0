// Package sqlite opens SQLite databases through the cgo-free modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/gaborage/go-sqlsession/config"
	"github.com/gaborage/go-sqlsession/logger"
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite.
const DriverName = "sqlite"

// MemoryPath selects a private in-memory database.
const MemoryPath = ":memory:"

var openSQLiteDB = func(dsn string) (*sql.DB, error) {
	return sql.Open(DriverName, dsn)
}

// DSN returns the driver DSN for cfg. File databases get a busy timeout, WAL journaling and
// foreign key enforcement through _pragma parameters.
func DSN(cfg *config.DatabaseConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}
	if cfg.Path == MemoryPath {
		return "file::memory:?_pragma=foreign_keys(1)"
	}

	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")

	sep := "?"
	if strings.Contains(cfg.Path, "?") {
		sep = "&"
	}
	return "file:" + cfg.Path + sep + params.Encode()
}

// Open opens the SQLite database for cfg and pings it.
//
// An in-memory database exists per physical connection, so its pool is pinned to a
// single connection that never expires; sessions then share one database and are
// served one at a time.
func Open(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*sql.DB, error) {
	db, err := openSQLiteDB(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if cfg.Path == MemoryPath && cfg.ConnectionString == "" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(cfg.Pool.MaxConns)
		db.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.Pool.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close SQLite database after ping failure")
		}
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	log.Info().
		Str("path", cfg.Path).
		Msg("Opened SQLite database")

	return db, nil
}
