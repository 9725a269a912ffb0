package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables that override configuration keys.
// SQLSESSION_DATABASE_HOST maps to database.host.
const EnvPrefix = "SQLSESSION_"

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. config.yaml and config.<app.env>.yaml in the working directory
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile is Load with an explicit base YAML file. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadOptionalFile(k, path); err != nil {
		return nil, err
	}

	if appEnv := k.String("app.env"); appEnv != "" && path != "" {
		envFile := strings.TrimSuffix(path, ".yaml") + "." + appEnv + ".yaml"
		if err := loadOptionalFile(k, envFile); err != nil {
			return nil, err
		}
	}

	return finish(k)
}

// LoadBytes loads configuration from an in-memory YAML document layered over the defaults.
// Environment variables still take precedence.
func LoadBytes(data []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return finish(k)
}

func loadOptionalFile(k *koanf.Koanf, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func finish(k *koanf.Koanf) (*Config, error) {
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			// Convert PREFIX_UPPER_CASE to lower.case for koanf
			key = strings.TrimPrefix(key, EnvPrefix)
			return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name": "sqlsession",
		"app.env":  EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		// Data source defaults are not provided: a database is only opened when configured.

		"session.environment":                 DefaultEnvironment,
		"session.executor":                    "simple",
		"session.autocommit":                  false,
		"session.transaction.manager":         TransactionManaged,
		"session.transaction.closeconnection": true,

		"telemetry.enabled":        false,
		"telemetry.protocol":       "grpc",
		"telemetry.samplerate":     1.0,
		"telemetry.metricinterval": "30s",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// String returns the raw value of a configuration key, including keys not mapped
// into the Config struct.
func (c *Config) String(key string) string {
	if c.k == nil {
		return ""
	}
	return c.k.String(key)
}

// Exists reports whether a configuration key was set by any source.
func (c *Config) Exists(key string) bool {
	return c.k != nil && c.k.Exists(key)
}

// EnvironmentDatabase returns the data source configuration for an environment id.
func (c *Config) EnvironmentDatabase(id string) (*DatabaseConfig, error) {
	if id == "" || id == DefaultEnvironment {
		if !IsDatabaseConfigured(&c.Database) {
			return nil, NewNotConfiguredError("database", envVarFor("database.type"), "database.type")
		}
		return &c.Database, nil
	}
	db, ok := c.Environments[id]
	if !ok {
		return nil, NewInvalidFieldError("session.environment", fmt.Sprintf("unknown environment %q", id), c.environmentIDs())
	}
	return &db, nil
}

func (c *Config) environmentIDs() []string {
	ids := make([]string, 0, len(c.Environments))
	for id := range c.Environments {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return append([]string{DefaultEnvironment}, ids...)
}
