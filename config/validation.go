package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	defaultSlowQueryThreshold = 200 * time.Millisecond
	defaultMaxQueryLength     = 1000
	defaultMaxConns           = 25
	defaultMaxIdleConns       = 2
	defaultConnMaxIdleTime    = 5 * time.Minute
	defaultConnMaxLifetime    = 30 * time.Minute
)

// Database type constants
const (
	PostgreSQL = "postgresql"
	Oracle     = "oracle"
	MySQL      = "mysql"
	SQLite     = "sqlite"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg and applies defaults to configured data sources.
// Struct-level rules are expressed as validator tags; cross-field rules follow.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return translateValidationError(err)
	}

	if err := validateDatabase("database", &cfg.Database); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	for id, db := range cfg.Environments {
		if id == DefaultEnvironment {
			return NewValidationError("environments."+id, "environment id is reserved for the database section")
		}
		if !IsDatabaseConfigured(&db) {
			return NewMissingFieldError("environments."+id+".type", envVarFor("environments."+id+".type"), "environments."+id+".type")
		}
		if err := validateDatabase("environments."+id, &db); err != nil {
			return fmt.Errorf("environment %s config: %w", id, err)
		}
		cfg.Environments[id] = db
	}

	if cfg.Session.Environment != DefaultEnvironment {
		if _, ok := cfg.Environments[cfg.Session.Environment]; !ok {
			return NewInvalidFieldError("session.environment", fmt.Sprintf("unknown environment %q", cfg.Session.Environment), cfg.environmentIDs())
		}
	}

	return nil
}

// IsDatabaseConfigured determines if a data source is intentionally configured.
func IsDatabaseConfigured(cfg *DatabaseConfig) bool {
	return cfg.ConnectionString != "" || cfg.Type != "" || cfg.Host != ""
}

func validateDatabase(prefix string, cfg *DatabaseConfig) error {
	if !IsDatabaseConfigured(cfg) {
		return nil
	}

	if cfg.Type == "" {
		return NewMissingFieldError(prefix+".type", envVarFor(prefix+".type"), prefix+".type")
	}

	if cfg.ConnectionString == "" {
		if err := validateDatabaseCoreFields(prefix, cfg); err != nil {
			return err
		}
	}

	applyDatabaseDefaults(cfg)
	return nil
}

func validateDatabaseCoreFields(prefix string, cfg *DatabaseConfig) error {
	if cfg.Type == SQLite {
		if cfg.Path == "" {
			return NewValidationError(prefix+".path", "sqlite path is required (use :memory: for an in-memory database)")
		}
		return nil
	}

	if cfg.Host == "" {
		return NewValidationError(prefix+".host", "database host is required")
	}
	if cfg.Port <= 0 {
		return NewValidationError(prefix+".port", fmt.Sprintf("invalid database port: %d", cfg.Port))
	}
	if cfg.Type != Oracle && cfg.Database == "" {
		return NewValidationError(prefix+".database", "database name is required")
	}
	if cfg.Type == Oracle && cfg.Database == "" && cfg.ServiceName == "" && cfg.SID == "" {
		return NewValidationError(prefix+".servicename", "oracle requires one of servicename, sid or database")
	}
	if cfg.Username == "" {
		return NewValidationError(prefix+".username", "database username is required")
	}
	return nil
}

// applyDatabaseDefaults sets production-safe pool and tracking defaults for zero values.
func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.Pool.MaxConns == 0 {
		cfg.Pool.MaxConns = defaultMaxConns
	}
	if cfg.Pool.MaxIdleConns == 0 {
		cfg.Pool.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.Pool.ConnMaxIdleTime == 0 {
		cfg.Pool.ConnMaxIdleTime = defaultConnMaxIdleTime
	}
	if cfg.Pool.ConnMaxLifetime == 0 {
		cfg.Pool.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if cfg.Query.MaxLength == 0 {
		cfg.Query.MaxLength = defaultMaxQueryLength
	}
	if cfg.Query.SlowThreshold == 0 {
		cfg.Query.SlowThreshold = defaultSlowQueryThreshold
	}
}

// translateValidationError converts the first validator failure into a ConfigError
// carrying the koanf key path of the offending field.
func translateValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}

	fe := validationErrors[0]
	field := keyPath(fe.Namespace())

	switch fe.Tag() {
	case "required", "required_if":
		return NewMissingFieldError(field, envVarFor(field), field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	default:
		return NewValidationError(field, fmt.Sprintf("failed %s=%s validation (value %v)", fe.Tag(), fe.Param(), fe.Value()))
	}
}

// keyPath turns a validator namespace such as "Config.Session.Transaction.Manager"
// into the lowercase koanf key "session.transaction.manager".
func keyPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return strings.Join(parts, ".")
}
