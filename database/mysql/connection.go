// Package mysql opens MySQL and MariaDB connection pools through go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/gaborage/go-sqlsession/config"
	"github.com/gaborage/go-sqlsession/logger"
)

const pingTimeout = 10 * time.Second

var (
	openMySQLDB = func(cfg *mysql.Config) (*sql.DB, error) {
		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, err
		}
		return sql.OpenDB(connector), nil
	}
	pingMySQLDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// tlsMode maps the libpq style sslmode values onto the driver's tls parameter.
// Unknown values are passed through so that registered TLS config names keep working.
func tlsMode(sslMode string) string {
	switch sslMode {
	case "disable":
		return "false"
	case "require":
		return "skip-verify"
	case "verify-ca", "verify-full":
		return "true"
	case "prefer":
		return "preferred"
	default:
		return sslMode
	}
}

// DriverConfig builds the driver configuration for cfg. A ConnectionString is parsed as a
// go-sql-driver DSN; otherwise the discrete fields are used.
func DriverConfig(cfg *config.DatabaseConfig) (*mysql.Config, error) {
	if cfg.ConnectionString != "" {
		mc, err := mysql.ParseDSN(cfg.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to parse MySQL DSN: %w", err)
		}
		return mc, nil
	}

	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	if cfg.SSLMode != "" {
		mc.TLSConfig = tlsMode(cfg.SSLMode)
	}
	return mc, nil
}

// Open creates a MySQL pool for cfg, applies the pool settings and pings it.
func Open(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*sql.DB, error) {
	mc, err := DriverConfig(cfg)
	if err != nil {
		return nil, err
	}

	db, err := openMySQLDB(mc)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.Pool.MaxConns)
	db.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Pool.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pingMySQLDB(pingCtx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close MySQL database connection after ping failure")
		}
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	log.Info().
		Str("addr", mc.Addr).
		Str("database", mc.DBName).
		Msg("Connected to MySQL database")

	return db, nil
}
