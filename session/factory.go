package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/executor"
	"github.com/gaborage/go-sqlsession/logger"
	"github.com/gaborage/go-sqlsession/mapping"
	"github.com/gaborage/go-sqlsession/transaction"
)

// Factory opens sessions. It is safe for concurrent use.
type Factory struct {
	cfg        *Configuration
	logger     logger.Logger
	autoCommit bool
	isolation  types.IsolationLevel
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithDefaultAutoCommit sets the auto-commit mode of sessions opened without WithAutoCommit.
func WithDefaultAutoCommit(autoCommit bool) FactoryOption {
	return func(f *Factory) {
		f.autoCommit = autoCommit
	}
}

// WithDefaultIsolationLevel sets the isolation of sessions opened without
// WithIsolationLevel.
func WithDefaultIsolationLevel(level types.IsolationLevel) FactoryOption {
	return func(f *Factory) {
		f.isolation = level
	}
}

// NewFactory freezes cfg and creates a factory over it. Sessions default to auto-commit off.
func NewFactory(cfg *Configuration, opts ...FactoryOption) *Factory {
	cfg.Freeze()
	f := &Factory{cfg: cfg, logger: cfg.logger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Configuration returns the configuration sessions are opened from.
func (f *Factory) Configuration() *Configuration {
	return f.cfg
}

// OpenOption customizes one OpenSession call.
type OpenOption func(*openOptions)

type openOptions struct {
	kind       executor.Kind
	isolation  types.IsolationLevel
	autoCommit bool
	conn       types.Connection
}

// WithExecutorKind selects the executor of the session.
func WithExecutorKind(kind executor.Kind) OpenOption {
	return func(o *openOptions) {
		o.kind = kind
	}
}

// WithIsolationLevel requests an isolation level for the session's connection.
func WithIsolationLevel(level types.IsolationLevel) OpenOption {
	return func(o *openOptions) {
		o.isolation = level
	}
}

// WithAutoCommit sets the auto-commit mode of the session.
func WithAutoCommit(autoCommit bool) OpenOption {
	return func(o *openOptions) {
		o.autoCommit = autoCommit
	}
}

// WithConnection runs the session on a connection the caller already holds. Isolation
// and auto-commit options are ignored; auto-commit is read from the connection.
func WithConnection(conn types.Connection) OpenOption {
	return func(o *openOptions) {
		o.conn = conn
	}
}

// OpenSession opens a session. The steps run in a fixed order: resolve the environment,
// pick its transaction factory (managed when none is configured), create the transaction,
// build the executor and wrap everything in a Session. When a step after the transaction
// fails, the transaction is closed before the error is returned.
func (f *Factory) OpenSession(ctx context.Context, opts ...OpenOption) (*Session, error) {
	o := openOptions{isolation: f.isolation, autoCommit: f.autoCommit}
	for _, opt := range opts {
		opt(&o)
	}

	ec := errorContextFor(ctx)
	defer ec.Reset()
	ec.Activity("opening session")

	env := f.cfg.Environment()
	txFactory := f.transactionFactory(env)

	var tx transaction.Transaction
	autoCommit := o.autoCommit
	if o.conn != nil {
		autoCommit = f.connectionAutoCommit(o.conn)
		tx = txFactory.NewTransactionFromConnection(o.conn)
	} else {
		var ds types.DataSource
		if env != nil {
			ds = env.DataSource()
		}
		tx = txFactory.NewTransaction(ds, o.isolation, autoCommit)
	}

	exec, err := f.cfg.NewExecutor(tx, o.kind)
	if err != nil {
		if closeErr := tx.Close(ctx); closeErr != nil {
			f.logger.Warn().Err(closeErr).Msg("Error closing transaction after failed session open")
		}
		return nil, fmt.Errorf("error opening session (%s): %w", ec, err)
	}

	s := &Session{
		id:         uuid.NewString(),
		cfg:        f.cfg,
		exec:       exec,
		autoCommit: autoCommit,
		logger:     f.logger,
	}
	f.logger.Debug().
		Str("session_id", s.id).
		Str("executor", o.kind.Resolve(f.cfg.DefaultExecutorKind()).String()).
		Bool("auto_commit", autoCommit).
		Msg("Opened session")
	return s, nil
}

// transactionFactory returns the factory of env, or a managed factory when env or its
// factory is absent.
func (f *Factory) transactionFactory(env *mapping.Environment) transaction.Factory {
	if txFactory := env.TransactionFactory(); txFactory != nil {
		return txFactory
	}
	return transaction.NewManagedFactory(transaction.WithLogger(f.logger))
}

// connectionAutoCommit reads the auto-commit mode of a caller-supplied connection. Many
// drivers cannot report it; those connections are treated as auto-commit.
func (f *Factory) connectionAutoCommit(conn types.Connection) bool {
	autoCommit, err := conn.AutoCommit()
	if err != nil {
		f.logger.Debug().Err(err).Msg("Failed to read auto-commit from connection, assuming true")
		return true
	}
	return autoCommit
}
