package transaction

import (
	"context"

	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/logger"
)

// SelfManagedFactory creates transactions that commit and roll back through the connection.
type SelfManagedFactory struct {
	opts options
}

var _ Factory = (*SelfManagedFactory)(nil)

// NewSelfManagedFactory creates a self-managed transaction factory.
func NewSelfManagedFactory(opts ...Option) *SelfManagedFactory {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &SelfManagedFactory{opts: o}
}

// NewTransaction implements Factory.
func (f *SelfManagedFactory) NewTransaction(ds types.DataSource, level types.IsolationLevel, autoCommit bool) Transaction {
	return &SelfManaged{
		ds:         ds,
		level:      level,
		autoCommit: autoCommit,
		skipReset:  f.opts.skipAutoCommitResetClose,
		logger:     f.opts.logger,
	}
}

// NewTransactionFromConnection implements Factory.
func (f *SelfManagedFactory) NewTransactionFromConnection(conn types.Connection) Transaction {
	return &SelfManaged{
		conn:      conn,
		skipReset: f.opts.skipAutoCommitResetClose,
		logger:    f.opts.logger,
	}
}

// SelfManaged commits and rolls back through its connection when auto-commit is off.
// Close switches auto-commit back on before releasing the connection, so pooled
// connections are returned in their default mode.
type SelfManaged struct {
	ds         types.DataSource
	conn       types.Connection
	level      types.IsolationLevel
	autoCommit bool
	skipReset  bool
	closed     bool
	logger     logger.Logger
}

// Connection implements Transaction.
func (t *SelfManaged) Connection(ctx context.Context) (types.Connection, error) {
	if t.closed {
		return nil, usageError("get connection")
	}
	if t.conn != nil {
		return t.conn, nil
	}
	if t.ds == nil {
		return nil, types.NewError(types.ErrAcquisition, "open connection", errNoDataSource)
	}

	t.logger.Debug().Str("vendor", t.ds.Vendor()).Msg("Opening connection")
	conn, err := t.ds.Open(ctx)
	if err != nil {
		return nil, types.NewError(types.ErrAcquisition, "open connection", err)
	}

	if err := applySettings(ctx, conn, t.level, t.autoCommit); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			t.logger.Warn().Err(closeErr).Msg("Error closing connection after failed setup")
		}
		return nil, types.NewError(types.ErrAcquisition, "configure connection", err)
	}

	t.conn = conn
	return conn, nil
}

// manual reports whether the connection is in manual-commit mode. A connection that
// cannot report its mode is treated as manual so that commit and rollback still reach it.
func (t *SelfManaged) manual() bool {
	on, err := t.conn.AutoCommit()
	return err != nil || !on
}

// Commit implements Transaction.
func (t *SelfManaged) Commit(ctx context.Context) error {
	if t.closed {
		return usageError("commit")
	}
	if t.conn == nil || !t.manual() {
		return nil
	}

	t.logger.Debug().Msg("Committing connection")
	if err := t.conn.Commit(ctx); err != nil {
		return types.NewError(types.ErrTransaction, "commit", err)
	}
	return nil
}

// Rollback implements Transaction.
func (t *SelfManaged) Rollback(ctx context.Context) error {
	if t.closed {
		return usageError("rollback")
	}
	if t.conn == nil || !t.manual() {
		return nil
	}

	t.logger.Debug().Msg("Rolling back connection")
	if err := t.conn.Rollback(ctx); err != nil {
		return types.NewError(types.ErrTransaction, "rollback", err)
	}
	return nil
}

// Close implements Transaction. A failure to restore auto-commit is logged and dropped;
// only the physical close error is returned.
func (t *SelfManaged) Close(ctx context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true

	if t.conn == nil {
		return nil
	}

	if !t.skipReset && t.manual() {
		if err := t.conn.SetAutoCommit(ctx, true); err != nil {
			t.logger.Warn().Err(err).Msg("Error resetting auto-commit before closing connection")
		}
	}

	t.logger.Debug().Msg("Closing connection")
	if err := t.conn.Close(); err != nil {
		return types.NewError(types.ErrTransaction, "close connection", err)
	}
	return nil
}
