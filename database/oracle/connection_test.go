package oracle

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-sqlsession/config"
	"github.com/gaborage/go-sqlsession/logger"
)

func baseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Type:     config.Oracle,
		Host:     "ora.internal",
		Port:     1521,
		Username: "app",
		Password: "pw",
		Pool:     config.PoolConfig{MaxConns: 4},
	}
}

func TestDSNTargets(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.DatabaseConfig)
		want   string
	}{
		{name: "service_name", mutate: func(c *config.DatabaseConfig) { c.ServiceName = "ORCLPDB1"; c.SID = "XE" }, want: "/ORCLPDB1"},
		{name: "sid", mutate: func(c *config.DatabaseConfig) { c.SID = "XE" }, want: "SID=XE"},
		{name: "database", mutate: func(c *config.DatabaseConfig) { c.Database = "FREEPDB1" }, want: "/FREEPDB1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)
			dsn := DSN(cfg)
			assert.True(t, strings.HasPrefix(dsn, "oracle://app:pw@ora.internal:1521"), dsn)
			assert.Contains(t, dsn, tt.want)
		})
	}

	cfg := baseConfig()
	cfg.ConnectionString = "oracle://u:p@h:1/s"
	assert.Equal(t, "oracle://u:p@h:1/s", DSN(cfg))
}

func TestOpen(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	var gotDSN string
	origOpen, origPing := openOracleDB, pingOracleDB
	openOracleDB = func(dsn string) (*sql.DB, error) {
		gotDSN = dsn
		return db, nil
	}
	pingOracleDB = func(context.Context, *sql.DB) error { return nil }
	t.Cleanup(func() {
		openOracleDB, pingOracleDB = origOpen, origPing
		_ = db.Close()
	})

	cfg := baseConfig()
	cfg.ServiceName = "ORCLPDB1"
	got, err := Open(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	assert.Same(t, db, got)
	assert.Equal(t, 4, got.Stats().MaxOpenConnections)
	assert.Contains(t, gotDSN, "ORCLPDB1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenFailures(t *testing.T) {
	origOpen, origPing := openOracleDB, pingOracleDB
	t.Cleanup(func() { openOracleDB, pingOracleDB = origOpen, origPing })

	openOracleDB = func(string) (*sql.DB, error) { return nil, errors.New("bad url") }
	_, err := Open(context.Background(), baseConfig(), logger.Nop())
	require.ErrorContains(t, err, "failed to open Oracle connection")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()
	openOracleDB = func(string) (*sql.DB, error) { return db, nil }
	pingOracleDB = func(context.Context, *sql.DB) error { return errors.New("ORA-12541") }

	_, err = Open(context.Background(), baseConfig(), logger.Nop())
	require.ErrorContains(t, err, "ORA-12541")
	assert.NoError(t, mock.ExpectationsWereMet())
}
