// Package types contains the core contracts shared by the data source, transaction,
// executor and session packages. These interfaces are separate from their implementations
// to avoid import cycles and to make them easy to fake in tests.
//
//nolint:revive // Package name "types" is intentionally generic to avoid circular imports
package types

import (
	"context"
	"database/sql"
)

// Database vendor identifiers shared across the database packages.
type Vendor = string

const (
	PostgreSQL Vendor = "postgresql"
	Oracle     Vendor = "oracle"
	MySQL      Vendor = "mysql"
	SQLite     Vendor = "sqlite"
)

// Statement is a prepared statement handle bound to a single physical connection.
// Handles are owned by the executor that prepared them and must be closed by it.
type Statement interface {
	// Query executes the statement and returns its rows. The caller closes the rows.
	Query(ctx context.Context, args ...any) (*sql.Rows, error)

	// Exec executes the statement without returning rows.
	Exec(ctx context.Context, args ...any) (sql.Result, error)

	// Close releases the handle. Closing twice is harmless.
	Close() error
}

// Connection is one physical connection with explicit transaction controls.
//
// While auto-commit is on every statement commits on its own. Turning it off makes the
// connection open a driver transaction lazily on the next statement; Commit and Rollback
// end that transaction and the following statement starts a new one.
type Connection interface {
	// Prepare creates a statement handle on this connection (inside the current
	// driver transaction when auto-commit is off).
	Prepare(ctx context.Context, query string) (Statement, error)

	// AutoCommit reports the current auto-commit mode. Connections that cannot report it
	// return an error and leave the fallback to the caller.
	AutoCommit() (bool, error)

	// SetAutoCommit switches auto-commit mode. Switching it on while a driver transaction
	// is active commits that transaction first.
	SetAutoCommit(ctx context.Context, autoCommit bool) error

	// SetIsolationLevel sets the isolation used for transactions begun after the call.
	SetIsolationLevel(level IsolationLevel) error

	// Commit commits the active driver transaction, if any.
	Commit(ctx context.Context) error

	// Rollback rolls back the active driver transaction, if any.
	Rollback(ctx context.Context) error

	// Close releases the connection. An active driver transaction is rolled back first.
	Close() error

	// Vendor returns the database vendor identifier of the connection.
	Vendor() string
}

// DataSource hands out physical connections.
type DataSource interface {
	// Open acquires a new physical connection. The caller owns it and must close it.
	Open(ctx context.Context) (Connection, error)

	// Vendor returns the database vendor identifier of the data source.
	Vendor() string
}
