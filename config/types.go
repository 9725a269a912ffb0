package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config represents the overall runtime configuration.
// It includes sections for application metadata, logging, the default data source,
// additional named environments, session defaults and mapper files.
// The embedded koanf.Koanf instance allows flexible access to custom keys not
// explicitly defined in the struct.
type Config struct {
	App          AppConfig                 `koanf:"app" json:"app" yaml:"app"`
	Log          LogConfig                 `koanf:"log" json:"log" yaml:"log"`
	Database     DatabaseConfig            `koanf:"database" json:"database" yaml:"database"`
	Environments map[string]DatabaseConfig `koanf:"environments" json:"environments" yaml:"environments" validate:"dive"`
	Session      SessionConfig             `koanf:"session" json:"session" yaml:"session"`
	Mappers      MappersConfig             `koanf:"mappers" json:"mappers" yaml:"mappers"`
	Telemetry    TelemetryConfig           `koanf:"telemetry" json:"telemetry" yaml:"telemetry"`

	// k holds the underlying Koanf instance for flexible access to custom configurations
	k *koanf.Koanf `json:"-" yaml:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Env  string `koanf:"env" json:"env" yaml:"env" validate:"oneof=development staging production"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// DatabaseConfig holds the settings for one data source.
type DatabaseConfig struct {
	Type     string `koanf:"type" json:"type" yaml:"type" validate:"omitempty,oneof=postgresql oracle mysql sqlite"`
	Host     string `koanf:"host" json:"host" yaml:"host"`
	Port     int    `koanf:"port" json:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Database string `koanf:"database" json:"database" yaml:"database"`
	Username string `koanf:"username" json:"username" yaml:"username"`
	Password string `koanf:"password" json:"password" yaml:"password"`

	// ConnectionString overrides the discrete connection fields when set.
	ConnectionString string `koanf:"connectionstring" json:"connectionstring" yaml:"connectionstring"`

	// SSLMode is passed to PostgreSQL and MySQL TLS settings.
	SSLMode string `koanf:"sslmode" json:"sslmode" yaml:"sslmode"`

	// ServiceName and SID select the Oracle target; Database is used when both are empty.
	ServiceName string `koanf:"servicename" json:"servicename" yaml:"servicename"`
	SID         string `koanf:"sid" json:"sid" yaml:"sid"`

	// Path is the SQLite database file (":memory:" for a private in-memory database).
	Path string `koanf:"path" json:"path" yaml:"path"`

	Pool  PoolConfig  `koanf:"pool" json:"pool" yaml:"pool"`
	Query QueryConfig `koanf:"query" json:"query" yaml:"query"`
}

// PoolConfig holds connection pool settings applied to the underlying *sql.DB.
// Defaults applied by Validate when a data source is configured:
//   - MaxConns: 25
//   - MaxIdleConns: 2
//   - ConnMaxIdleTime: 5m
//   - ConnMaxLifetime: 30m
type PoolConfig struct {
	MaxConns        int           `koanf:"maxconns" json:"maxconns" yaml:"maxconns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"maxidleconns" json:"maxidleconns" yaml:"maxidleconns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"connmaxlifetime" json:"connmaxlifetime" yaml:"connmaxlifetime" validate:"gte=0"`
	ConnMaxIdleTime time.Duration `koanf:"connmaxidletime" json:"connmaxidletime" yaml:"connmaxidletime" validate:"gte=0"`
}

// QueryConfig holds statement tracking settings.
type QueryConfig struct {
	SlowThreshold  time.Duration `koanf:"slowthreshold" json:"slowthreshold" yaml:"slowthreshold" validate:"gte=0"`
	MaxLength      int           `koanf:"maxlength" json:"maxlength" yaml:"maxlength" validate:"gte=0"`
	LogParameters  bool          `koanf:"logparameters" json:"logparameters" yaml:"logparameters"`
	DefaultTimeout time.Duration `koanf:"defaulttimeout" json:"defaulttimeout" yaml:"defaulttimeout" validate:"gte=0"`
}

// SessionConfig holds the defaults used when a session is opened without explicit options.
type SessionConfig struct {
	// Environment selects which data source backs the session factory:
	// "default" is the database section, any other id must exist in Environments.
	Environment string `koanf:"environment" json:"environment" yaml:"environment" validate:"required"`

	// Executor is the default executor kind: simple, reuse or batch.
	Executor string `koanf:"executor" json:"executor" yaml:"executor" validate:"oneof=simple reuse batch"`

	AutoCommit bool   `koanf:"autocommit" json:"autocommit" yaml:"autocommit"`
	Isolation  string `koanf:"isolation" json:"isolation" yaml:"isolation" validate:"omitempty,oneof=none read_uncommitted read_committed repeatable_read serializable"`

	Transaction TransactionConfig `koanf:"transaction" json:"transaction" yaml:"transaction"`
}

// TransactionConfig selects the transaction strategy.
type TransactionConfig struct {
	// Manager is "managed" (an external container owns commit/rollback) or
	// "self" (the session commits and rolls back through the connection).
	Manager string `koanf:"manager" json:"manager" yaml:"manager" validate:"omitempty,oneof=managed self"`

	// CloseConnection controls whether managed transactions release their connection on close.
	CloseConnection bool `koanf:"closeconnection" json:"closeconnection" yaml:"closeconnection"`

	// SkipAutoCommitReset stops self-managed transactions from re-enabling auto-commit
	// before closing the connection.
	SkipAutoCommitReset bool `koanf:"skipautocommitreset" json:"skipautocommitreset" yaml:"skipautocommitreset"`
}

// MappersConfig lists the YAML mapping files loaded into the statement registry.
type MappersConfig struct {
	Files []string `koanf:"files" json:"files" yaml:"files"`
}

// TelemetryConfig selects where database spans and metrics are exported.
type TelemetryConfig struct {
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled"`

	// Endpoint is an OTLP collector address, or "stdout" to print telemetry locally.
	Endpoint string `koanf:"endpoint" json:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true"`

	// Protocol is the OTLP transport: grpc or http.
	Protocol string            `koanf:"protocol" json:"protocol" yaml:"protocol" validate:"omitempty,oneof=grpc http"`
	Insecure bool              `koanf:"insecure" json:"insecure" yaml:"insecure"`
	Headers  map[string]string `koanf:"headers" json:"headers" yaml:"headers"`

	SampleRate     float64       `koanf:"samplerate" json:"samplerate" yaml:"samplerate" validate:"gte=0,lte=1"`
	MetricInterval time.Duration `koanf:"metricinterval" json:"metricinterval" yaml:"metricinterval" validate:"gte=0"`
}

// DefaultEnvironment is the environment id of the database section.
const DefaultEnvironment = "default"

// Transaction manager identifiers.
const (
	TransactionManaged = "managed"
	TransactionSelf    = "self"
)
