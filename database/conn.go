package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gaborage/go-sqlsession/database/internal/tracking"
	"github.com/gaborage/go-sqlsession/database/types"
)

// errTxActive is returned when the isolation level is changed inside a driver transaction.
var errTxActive = errors.New("isolation level cannot change while a transaction is active")

// Conn adapts a dedicated *sql.Conn to types.Connection.
//
// database/sql has no auto-commit switch, so Conn emulates one: with auto-commit off the
// first statement begins a driver transaction using the configured isolation level, and
// Commit or Rollback end it. Statements prepared inside a transaction are only valid until
// that transaction ends.
type Conn struct {
	conn *sql.Conn
	tc   *tracking.Context

	autoCommit bool
	isolation  types.IsolationLevel
	tx         *sql.Tx
	closed     bool
}

// NewConn wraps conn. The connection starts in auto-commit mode.
func NewConn(conn *sql.Conn, tc *tracking.Context) *Conn {
	return &Conn{conn: conn, tc: tc, autoCommit: true}
}

// Prepare creates a tracked statement on the connection, beginning a driver transaction
// first when auto-commit is off.
func (c *Conn) Prepare(ctx context.Context, query string) (types.Statement, error) {
	if c.closed {
		return nil, types.ErrClosed
	}

	if !c.autoCommit && c.tx == nil {
		if err := c.begin(ctx); err != nil {
			return nil, err
		}
	}

	var (
		stmt *sql.Stmt
		err  error
	)
	if c.tx != nil {
		stmt, err = c.tx.PrepareContext(ctx, query)
	} else {
		stmt, err = c.conn.PrepareContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	return tracking.NewStatement(&tracking.BasicStatement{Stmt: stmt}, query, c.tc), nil
}

// begin starts the driver transaction. database/sql rolls a transaction back when its
// context is cancelled, so the transaction is detached from the statement context that
// triggered it and lives until Commit, Rollback or Close.
func (c *Conn) begin(ctx context.Context) error {
	start := time.Now()
	tx, err := c.conn.BeginTx(context.WithoutCancel(ctx), &sql.TxOptions{Isolation: c.isolation.SQL()})
	tracking.TrackDBOperation(ctx, c.tc, tracking.OpBegin, nil, start, 0, err)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	c.tx = tx
	return nil
}

// AutoCommit reports the current auto-commit mode.
func (c *Conn) AutoCommit() (bool, error) {
	if c.closed {
		return false, types.ErrClosed
	}
	return c.autoCommit, nil
}

// SetAutoCommit switches auto-commit mode. Turning it on commits an active transaction.
func (c *Conn) SetAutoCommit(ctx context.Context, autoCommit bool) error {
	if c.closed {
		return types.ErrClosed
	}
	if autoCommit && c.tx != nil {
		if err := c.Commit(ctx); err != nil {
			return err
		}
	}
	c.autoCommit = autoCommit
	return nil
}

// SetIsolationLevel sets the isolation used by the next transaction.
func (c *Conn) SetIsolationLevel(level types.IsolationLevel) error {
	if c.closed {
		return types.ErrClosed
	}
	if c.tx != nil && level != c.isolation {
		return errTxActive
	}
	c.isolation = level
	return nil
}

// Commit commits the active driver transaction, if any.
func (c *Conn) Commit(ctx context.Context) error {
	if c.closed {
		return types.ErrClosed
	}
	return c.end(ctx, tracking.OpCommit, (*sql.Tx).Commit)
}

// Rollback rolls back the active driver transaction, if any.
func (c *Conn) Rollback(ctx context.Context) error {
	if c.closed {
		return types.ErrClosed
	}
	return c.end(ctx, tracking.OpRollback, (*sql.Tx).Rollback)
}

func (c *Conn) end(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil

	start := time.Now()
	err := fn(tx)
	tracking.TrackDBOperation(ctx, c.tc, op, nil, start, 0, err)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

// Close rolls back an active transaction and returns the connection to the pool.
// Closing twice is a no-op.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var rollbackErr error
	if c.tx != nil {
		rollbackErr = c.end(context.Background(), tracking.OpRollback, (*sql.Tx).Rollback)
	}
	return errors.Join(rollbackErr, c.conn.Close())
}

// Vendor returns the database vendor of the connection.
func (c *Conn) Vendor() string {
	if c.tc == nil {
		return ""
	}
	return c.tc.Vendor
}

// InTransaction reports whether a driver transaction is active.
func (c *Conn) InTransaction() bool {
	return c.tx != nil
}
