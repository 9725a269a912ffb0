package database

import (
	"fmt"
	"slices"

	"github.com/gaborage/go-sqlsession/database/types"
)

// Re-export database vendor identifiers so callers of the database package do not need
// to import types for them.
const (
	PostgreSQL = types.PostgreSQL
	Oracle     = types.Oracle
	MySQL      = types.MySQL
	SQLite     = types.SQLite
)

// GetSupportedDatabaseTypes returns the list of supported database types
func GetSupportedDatabaseTypes() []string {
	return []string{PostgreSQL, Oracle, MySQL, SQLite}
}

// ValidateDatabaseType returns nil if dbType is one of the supported database types.
func ValidateDatabaseType(dbType string) error {
	supported := GetSupportedDatabaseTypes()
	if !slices.Contains(supported, dbType) {
		return fmt.Errorf("unsupported database type: %s (supported: %v)", dbType, supported)
	}
	return nil
}
