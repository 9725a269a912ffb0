package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gaborage/go-sqlsession/config"
	"github.com/gaborage/go-sqlsession/database/internal/tracking"
	"github.com/gaborage/go-sqlsession/database/mysql"
	"github.com/gaborage/go-sqlsession/database/oracle"
	"github.com/gaborage/go-sqlsession/database/postgresql"
	"github.com/gaborage/go-sqlsession/database/sqlite"
	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/logger"
)

// DataSource hands out dedicated connections from a *sql.DB pool.
// Each Open pins one pooled connection until the returned Conn is closed.
type DataSource struct {
	db     *sql.DB
	tc     *tracking.Context
	logger logger.Logger

	unregisterMetrics func()
}

var _ types.DataSource = (*DataSource)(nil)

// opener opens the vendor pool for a configuration.
type opener func(context.Context, *config.DatabaseConfig, logger.Logger) (*sql.DB, error)

var openers = map[string]opener{
	PostgreSQL: postgresql.Open,
	Oracle:     oracle.Open,
	MySQL:      mysql.Open,
	SQLite:     sqlite.Open,
}

// NewDataSource opens the pool selected by cfg.Type and wraps it.
// The environment id labels the pool metrics.
func NewDataSource(ctx context.Context, environment string, cfg *config.DatabaseConfig, log logger.Logger) (*DataSource, error) {
	open, ok := openers[cfg.Type]
	if !ok {
		return nil, ValidateDatabaseType(cfg.Type)
	}

	db, err := open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	ds := WrapDB(db, cfg.Type, cfg, log)
	ds.unregisterMetrics = tracking.RegisterConnectionPoolMetrics(db, cfg.Type, environment)
	return ds, nil
}

// WrapDB wraps an already opened pool. cfg may be nil, in which case tracking defaults apply.
func WrapDB(db *sql.DB, vendor string, cfg *config.DatabaseConfig, log logger.Logger) *DataSource {
	return &DataSource{
		db:     db,
		logger: log,
		tc: &tracking.Context{
			Logger:   log,
			Vendor:   vendor,
			Settings: tracking.NewSettings(cfg),
		},
		unregisterMetrics: func() {},
	}
}

// Open acquires a dedicated connection from the pool.
func (d *DataSource) Open(ctx context.Context) (types.Connection, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s connection: %w", d.tc.Vendor, err)
	}
	return NewConn(conn, d.tc), nil
}

// Vendor returns the database vendor of the pool.
func (d *DataSource) Vendor() string {
	return d.tc.Vendor
}

// DB exposes the underlying pool, for schema setup and health checks.
func (d *DataSource) DB() *sql.DB {
	return d.db
}

// Stats returns database statistics for monitoring
func (d *DataSource) Stats() map[string]any {
	s := d.db.Stats()
	return map[string]any{
		"max_open_connections": s.MaxOpenConnections,
		"open_connections":     s.OpenConnections,
		"in_use":               s.InUse,
		"idle":                 s.Idle,
		"wait_count":           s.WaitCount,
		"wait_duration":        s.WaitDuration.String(),
	}
}

// Close closes the pool. Connections still pinned by sessions are closed when released.
func (d *DataSource) Close() error {
	d.unregisterMetrics()
	return d.db.Close()
}
