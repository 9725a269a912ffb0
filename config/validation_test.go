package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{Name: "svc", Env: EnvDevelopment},
		Session: SessionConfig{
			Environment: DefaultEnvironment,
			Executor:    "simple",
			Transaction: TransactionConfig{Manager: TransactionManaged},
		},
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
		category  string
	}{
		{
			name:      "missing app name",
			mutate:    func(c *Config) { c.App.Name = "" },
			wantField: "app.name",
			category:  "missing",
		},
		{
			name:      "unknown executor",
			mutate:    func(c *Config) { c.Session.Executor = "parallel" },
			wantField: "session.executor",
			category:  "invalid",
		},
		{
			name:      "unknown transaction manager",
			mutate:    func(c *Config) { c.Session.Transaction.Manager = "xa" },
			wantField: "session.transaction.manager",
			category:  "invalid",
		},
		{
			name:      "unknown isolation",
			mutate:    func(c *Config) { c.Session.Isolation = "snapshot" },
			wantField: "session.isolation",
			category:  "invalid",
		},
		{
			name:      "unknown database type",
			mutate:    func(c *Config) { c.Database.Type = "mssql" },
			wantField: "database.type",
			category:  "invalid",
		},
		{
			name:      "port out of range",
			mutate:    func(c *Config) { c.Database = DatabaseConfig{Type: PostgreSQL, Port: 70000} },
			wantField: "database.port",
			category:  "invalid",
		},
		{
			name:      "host without type",
			mutate:    func(c *Config) { c.Database = DatabaseConfig{Host: "db"} },
			wantField: "database.type",
			category:  "missing",
		},
		{
			name:      "postgres without host",
			mutate:    func(c *Config) { c.Database = DatabaseConfig{Type: PostgreSQL, Port: 5432} },
			wantField: "database.host",
			category:  "invalid",
		},
		{
			name:      "sqlite without path",
			mutate:    func(c *Config) { c.Database = DatabaseConfig{Type: SQLite} },
			wantField: "database.path",
			category:  "invalid",
		},
		{
			name: "oracle without target",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Type: Oracle, Host: "ora", Port: 1521, Username: "app"}
			},
			wantField: "database.servicename",
			category:  "invalid",
		},
		{
			name:      "unknown session environment",
			mutate:    func(c *Config) { c.Session.Environment = "reporting" },
			wantField: "session.environment",
			category:  "invalid",
		},
		{
			name:      "telemetry without endpoint",
			mutate:    func(c *Config) { c.Telemetry.Enabled = true },
			wantField: "telemetry.endpoint",
			category:  "missing",
		},
		{
			name:      "unknown telemetry protocol",
			mutate:    func(c *Config) { c.Telemetry.Protocol = "amqp" },
			wantField: "telemetry.protocol",
			category:  "invalid",
		},
		{
			name:      "sample rate above one",
			mutate:    func(c *Config) { c.Telemetry.SampleRate = 2 },
			wantField: "telemetry.samplerate",
			category:  "invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.Equal(t, tt.category, cfgErr.Category)
		})
	}
}

func TestValidateConnectionStringSkipsDiscreteFields(t *testing.T) {
	cfg := validConfig()
	cfg.Database = DatabaseConfig{Type: PostgreSQL, ConnectionString: "postgres://app@db/app"}

	require.NoError(t, Validate(cfg))
	assert.Equal(t, defaultMaxConns, cfg.Database.Pool.MaxConns)
}

func TestValidateOracleServiceName(t *testing.T) {
	cfg := validConfig()
	cfg.Database = DatabaseConfig{Type: Oracle, Host: "ora", Port: 1521, Username: "app", ServiceName: "ORCLPDB1"}
	assert.NoError(t, Validate(cfg))
}

func TestValidateRejectsReservedEnvironmentID(t *testing.T) {
	cfg := validConfig()
	cfg.Environments = map[string]DatabaseConfig{
		DefaultEnvironment: {Type: SQLite, Path: "x.db"},
	}

	var cfgErr *ConfigError
	require.ErrorAs(t, Validate(cfg), &cfgErr)
	assert.Equal(t, "environments.default", cfgErr.Field)
}

func TestValidateEnvironmentWithoutType(t *testing.T) {
	cfg := validConfig()
	cfg.Environments = map[string]DatabaseConfig{"reports": {}}

	var cfgErr *ConfigError
	require.ErrorAs(t, Validate(cfg), &cfgErr)
	assert.Equal(t, "missing", cfgErr.Category)
	assert.Contains(t, cfgErr.Action, "SQLSESSION_ENVIRONMENTS_REPORTS_TYPE")
}

func TestConfigErrorFormatting(t *testing.T) {
	err := NewInvalidFieldError("session.executor", "invalid value \"x\"", []string{"simple", "reuse", "batch"})
	assert.Equal(t, `config_invalid: session.executor invalid value "x" must be one of: simple, reuse, batch`, err.Error())
	assert.NoError(t, err.Unwrap())

	missing := NewMissingFieldError("app.name", "SQLSESSION_APP_NAME", "app.name")
	assert.Equal(t, "config_missing: app.name required set SQLSESSION_APP_NAME env var or add app.name to config.yaml", missing.Error())

	assert.True(t, IsNotConfigured(NewNotConfiguredError("database", "X", "database.type")))
	assert.True(t, IsNotConfigured(ErrNotConfigured))
	assert.False(t, IsNotConfigured(missing))
	assert.False(t, IsNotConfigured(nil))
	assert.True(t, IsNotConfigured(fmt.Errorf("load: %w", NewNotConfiguredError("database", "X", "database.type"))))
}
