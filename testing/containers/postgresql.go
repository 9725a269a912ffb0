//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/go-sqlsession/config"
)

// PostgreSQLContainerConfig holds configuration for PostgreSQL test container
type PostgreSQLContainerConfig struct {
	// ImageTag specifies the PostgreSQL version (default: "17-alpine")
	ImageTag string
	Username string
	Password string
	Database string
	// StartupTimeout for container initialization (default: 60 seconds)
	StartupTimeout time.Duration
}

// DefaultPostgreSQLConfig returns the container settings used when none are given.
func DefaultPostgreSQLConfig() *PostgreSQLContainerConfig {
	return &PostgreSQLContainerConfig{
		ImageTag:       "17-alpine",
		Username:       "sessions",
		Password:       "sessions",
		Database:       "sessions",
		StartupTimeout: 60 * time.Second,
	}
}

// PostgreSQLContainer is a running PostgreSQL container.
type PostgreSQLContainer struct {
	container *postgres.PostgresContainer
	cfg       *PostgreSQLContainerConfig
	host      string
	port      int
}

// StartPostgreSQLContainer starts a PostgreSQL container and terminates it when t
// finishes. A nil cfg selects DefaultPostgreSQLConfig. The test is skipped without Docker.
func StartPostgreSQLContainer(ctx context.Context, t *testing.T, cfg *PostgreSQLContainerConfig) (*PostgreSQLContainer, error) {
	t.Helper()
	skipWithoutDocker(ctx, t)

	if cfg == nil {
		cfg = DefaultPostgreSQLConfig()
	}

	pg, err := postgres.Run(ctx,
		fmt.Sprintf("postgres:%s", cfg.ImageTag),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2). // Postgres restarts after initial setup
				WithStartupTimeout(cfg.StartupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}
	t.Cleanup(func() {
		if err := pg.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := pg.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get PostgreSQL host: %w", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, fmt.Errorf("failed to get PostgreSQL port: %w", err)
	}

	t.Logf("PostgreSQL container started at %s:%d", host, port.Int())
	return &PostgreSQLContainer{container: pg, cfg: cfg, host: host, port: port.Int()}, nil
}

// MustStartPostgreSQLContainer is StartPostgreSQLContainer failing the test on error.
func MustStartPostgreSQLContainer(ctx context.Context, t *testing.T, cfg *PostgreSQLContainerConfig) *PostgreSQLContainer {
	t.Helper()
	c, err := StartPostgreSQLContainer(ctx, t, cfg)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	return c
}

// DatabaseConfig returns a data source configuration pointing at the container.
func (p *PostgreSQLContainer) DatabaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Type:     config.PostgreSQL,
		Host:     p.host,
		Port:     p.port,
		Database: p.cfg.Database,
		Username: p.cfg.Username,
		Password: p.cfg.Password,
		SSLMode:  "disable",
		Pool:     config.PoolConfig{MaxConns: 5, MaxIdleConns: 2},
	}
}
