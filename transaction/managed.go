package transaction

import (
	"context"

	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/logger"
)

// ManagedFactory creates transactions whose boundaries belong to an external owner.
// It is the default when no factory is configured.
type ManagedFactory struct {
	opts options
}

var _ Factory = (*ManagedFactory)(nil)

// NewManagedFactory creates a managed transaction factory.
func NewManagedFactory(opts ...Option) *ManagedFactory {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &ManagedFactory{opts: o}
}

// NewTransaction implements Factory.
func (f *ManagedFactory) NewTransaction(ds types.DataSource, level types.IsolationLevel, autoCommit bool) Transaction {
	return &Managed{
		ds:              ds,
		level:           level,
		autoCommit:      autoCommit,
		closeConnection: f.opts.closeConnection,
		logger:          f.opts.logger,
	}
}

// NewTransactionFromConnection implements Factory.
func (f *ManagedFactory) NewTransactionFromConnection(conn types.Connection) Transaction {
	return &Managed{
		conn:            conn,
		closeConnection: f.opts.closeConnection,
		logger:          f.opts.logger,
	}
}

// Managed is a transaction whose Commit and Rollback do nothing.
//
// The requested isolation and auto-commit modes are applied when the connection is
// acquired, since no container is around to do it. Close releases the connection only
// when the factory was configured to; a connection left open keeps its uncommitted work
// for the external owner.
type Managed struct {
	ds              types.DataSource
	conn            types.Connection
	level           types.IsolationLevel
	autoCommit      bool
	closeConnection bool
	closed          bool
	logger          logger.Logger
}

// Connection implements Transaction.
func (t *Managed) Connection(ctx context.Context) (types.Connection, error) {
	if t.closed {
		return nil, usageError("get connection")
	}
	if t.conn != nil {
		return t.conn, nil
	}
	if t.ds == nil {
		return nil, types.NewError(types.ErrAcquisition, "open connection", errNoDataSource)
	}

	t.logger.Debug().Str("vendor", t.ds.Vendor()).Msg("Opening managed connection")
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

// Commit implements Transaction. The external owner commits.
func (t *Managed) Commit(context.Context) error {
	if t.closed {
		return usageError("commit")
	}
	return nil
}

// Rollback implements Transaction. The external owner rolls back.
func (t *Managed) Rollback(context.Context) error {
	if t.closed {
		return usageError("rollback")
	}
	return nil
}

// Close implements Transaction.
func (t *Managed) Close(context.Context) error {
	if t.closed {
		return nil
	}
	t.closed = true

	if !t.closeConnection || t.conn == nil {
		return nil
	}

	t.logger.Debug().Msg("Closing managed connection")
	if err := t.conn.Close(); err != nil {
		return types.NewError(types.ErrTransaction, "close connection", err)
	}
	return nil
}

// applySettings sets isolation (when requested) and then the auto-commit mode, skipping
// the switch when the connection already reports the desired mode.
func applySettings(ctx context.Context, conn types.Connection, level types.IsolationLevel, autoCommit bool) error {
	if level.IsSet() {
		if err := conn.SetIsolationLevel(level); err != nil {
			return err
		}
	}
	if current, err := conn.AutoCommit(); err == nil && current == autoCommit {
		return nil
	}
	return conn.SetAutoCommit(ctx, autoCommit)
}
