// Package transaction owns the physical connection of a session and decides who controls
// its commit and rollback boundaries.
//
// Two strategies are provided. Managed leaves commit and rollback to an external owner and
// only acquires and releases the connection. SelfManaged commits and rolls back through the
// connection itself whenever auto-commit is off.
package transaction

import (
	"context"
	"errors"

	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/logger"
)

// Transaction wraps one physical connection for the lifetime of a session.
// The connection is acquired lazily and released by Close. After Close every operation
// except Close fails with a usage error.
type Transaction interface {
	// Connection returns the physical connection, acquiring it on first use.
	Connection(ctx context.Context) (types.Connection, error)

	// Commit commits pending work according to the strategy.
	Commit(ctx context.Context) error

	// Rollback discards pending work according to the strategy.
	Rollback(ctx context.Context) error

	// Close releases the connection. Closing twice is a no-op.
	Close(ctx context.Context) error
}

// Factory creates transactions. Factories are stateless and safe for concurrent use.
type Factory interface {
	// NewTransaction creates a transaction that acquires its connection from ds, applying
	// level (when set) and the requested auto-commit mode.
	NewTransaction(ds types.DataSource, level types.IsolationLevel, autoCommit bool) Transaction

	// NewTransactionFromConnection wraps a connection supplied by the caller.
	NewTransactionFromConnection(conn types.Connection) Transaction
}

// Option configures a transaction factory.
type Option func(*options)

type options struct {
	logger                   logger.Logger
	closeConnection          bool
	skipAutoCommitResetClose bool
}

func defaultOptions() options {
	return options{
		logger:          logger.Nop(),
		closeConnection: true,
	}
}

// WithLogger sets the logger used for connection lifecycle events.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithCloseConnection controls whether managed transactions release their connection on
// Close (default true). Ignored by self-managed transactions, which always release it.
func WithCloseConnection(closeConnection bool) Option {
	return func(o *options) {
		o.closeConnection = closeConnection
	}
}

// WithSkipAutoCommitReset stops self-managed transactions from switching auto-commit back
// on before closing. Use it for drivers where that switch is expensive or unsupported.
func WithSkipAutoCommitReset(skip bool) Option {
	return func(o *options) {
		o.skipAutoCommitResetClose = skip
	}
}

// errNoDataSource is the cause when a transaction created without a data source is asked
// for a connection.
var errNoDataSource = errors.New("no data source configured")

func usageError(op string) error {
	return types.NewError(types.ErrUsage, op, types.ErrClosed)
}
