// Package testing provides in-memory test doubles for the database contracts.
//
// FakeDataSource hands out FakeConnections that count every physical operation (opens,
// prepares, statement closes, commits, rollbacks, closes) and keep a log of executed
// writes split into committed and pending work. Failures can be injected per operation.
// The fakes let transaction, executor and session tests assert resource handling without
// sqlmock expectations.
//
// For driver-level behavior use sqlmock; for end-to-end scenarios use the sqlite package.
package testing

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	dbtypes "github.com/gaborage/go-sqlsession/database/types"
)

// Op names a FakeConnection operation for failure injection.
type Op string

const (
	OpPrepare        Op = "prepare"
	OpExec           Op = "exec"
	OpQuery          Op = "query"
	OpAutoCommit     Op = "autocommit"
	OpSetAutoCommit  Op = "set_autocommit"
	OpSetIsolation   Op = "set_isolation"
	OpCommit         Op = "commit"
	OpRollback       Op = "rollback"
	OpClose          Op = "close"
	OpStatementClose Op = "statement_close"
)

const defaultAffectRows = 1

// ExecCall records one statement execution.
type ExecCall struct {
	SQL  string
	Args []any
}

// FakeConnection is an in-memory types.Connection.
//
// Writes executed with auto-commit off stay pending until Commit; Rollback and Close
// discard them. Writes executed with auto-commit on are committed immediately.
type FakeConnection struct {
	mu sync.Mutex

	vendor     string
	autoCommit bool
	isolation  dbtypes.IsolationLevel
	closed     bool

	failures map[Op]error
	rows     []rowsRule
	affected []affectRule

	prepares        []string
	statementCloses int
	commits         int
	rollbacks       int
	closes          int
	autoCommitCalls []bool
	queries         []ExecCall
	pending         []ExecCall
	committed       []ExecCall
}

var _ dbtypes.Connection = (*FakeConnection)(nil)

// NewFakeConnection creates an open connection in auto-commit mode.
func NewFakeConnection(vendor string) *FakeConnection {
	return &FakeConnection{
		vendor:     vendor,
		autoCommit: true,
		failures:   make(map[Op]error),
	}
}

// FailOn makes every subsequent call of op return err. A nil err clears the failure.
func (c *FakeConnection) FailOn(op Op, err error) *FakeConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, op)
	} else {
		c.failures[op] = err
	}
	return c
}

// WillReturnRows makes queries whose SQL contains sqlPattern return rows.
// Patterns are tried in registration order.
func (c *FakeConnection) WillReturnRows(sqlPattern string, rows *RowSet) *FakeConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, rowsRule{pattern: sqlPattern, rows: rows})
	return c
}

// WillAffect makes writes whose SQL contains sqlPattern report n affected rows (default 1).
// Patterns are tried in registration order.
func (c *FakeConnection) WillAffect(sqlPattern string, n int64) *FakeConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.affected = append(c.affected, affectRule{pattern: sqlPattern, n: n})
	return c
}

type rowsRule struct {
	pattern string
	rows    *RowSet
}

type affectRule struct {
	pattern string
	n       int64
}

func (c *FakeConnection) fail(op Op) error {
	return c.failures[op]
}

// Prepare implements types.Connection.
func (c *FakeConnection) Prepare(_ context.Context, query string) (dbtypes.Statement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, dbtypes.ErrClosed
	}
	if err := c.fail(OpPrepare); err != nil {
		return nil, err
	}
	c.prepares = append(c.prepares, query)
	return &FakeStatement{conn: c, query: query}, nil
}

// AutoCommit implements types.Connection.
func (c *FakeConnection) AutoCommit() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail(OpAutoCommit); err != nil {
		return false, err
	}
	return c.autoCommit, nil
}

// SetAutoCommit implements types.Connection. Switching auto-commit on commits pending work.
func (c *FakeConnection) SetAutoCommit(_ context.Context, autoCommit bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return dbtypes.ErrClosed
	}
	if err := c.fail(OpSetAutoCommit); err != nil {
		return err
	}
	c.autoCommitCalls = append(c.autoCommitCalls, autoCommit)
	if autoCommit && len(c.pending) > 0 {
		c.committed = append(c.committed, c.pending...)
		c.pending = nil
	}
	c.autoCommit = autoCommit
	return nil
}

// SetIsolationLevel implements types.Connection.
func (c *FakeConnection) SetIsolationLevel(level dbtypes.IsolationLevel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail(OpSetIsolation); err != nil {
		return err
	}
	c.isolation = level
	return nil
}

// Commit implements types.Connection.
func (c *FakeConnection) Commit(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return dbtypes.ErrClosed
	}
	c.commits++
	if err := c.fail(OpCommit); err != nil {
		return err
	}
	c.committed = append(c.committed, c.pending...)
	c.pending = nil
	return nil
}

// Rollback implements types.Connection.
func (c *FakeConnection) Rollback(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return dbtypes.ErrClosed
	}
	c.rollbacks++
	if err := c.fail(OpRollback); err != nil {
		return err
	}
	c.pending = nil
	return nil
}

// Close implements types.Connection. Pending writes are discarded. The connection counts
// as released even when a close failure is injected.
func (c *FakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closes++
	c.closed = true
	c.pending = nil
	return c.fail(OpClose)
}

// Vendor implements types.Connection.
func (c *FakeConnection) Vendor() string {
	return c.vendor
}

// IsClosed reports whether Close was called.
func (c *FakeConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Closes returns the number of physical closes (at most one).
func (c *FakeConnection) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Prepares returns the SQL of every prepared statement in order.
func (c *FakeConnection) Prepares() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prepares...)
}

// OpenStatements returns prepared statements that were not closed yet.
func (c *FakeConnection) OpenStatements() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prepares) - c.statementCloses
}

// Commits returns the number of Commit calls.
func (c *FakeConnection) Commits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits
}

// Rollbacks returns the number of Rollback calls.
func (c *FakeConnection) Rollbacks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollbacks
}

// AutoCommitCalls returns the values passed to SetAutoCommit in order.
func (c *FakeConnection) AutoCommitCalls() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]bool(nil), c.autoCommitCalls...)
}

// IsolationLevel returns the last isolation level set.
func (c *FakeConnection) IsolationLevel() dbtypes.IsolationLevel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isolation
}

// Committed returns the writes that were committed.
func (c *FakeConnection) Committed() []ExecCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ExecCall(nil), c.committed...)
}

// Pending returns writes awaiting commit.
func (c *FakeConnection) Pending() []ExecCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ExecCall(nil), c.pending...)
}

// Queries returns every executed query.
func (c *FakeConnection) Queries() []ExecCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ExecCall(nil), c.queries...)
}

func (c *FakeConnection) lookupRows(query string) *RowSet {
	for _, rule := range c.rows {
		if strings.Contains(query, rule.pattern) {
			return rule.rows
		}
	}
	return nil
}

func (c *FakeConnection) lookupAffected(query string) int64 {
	for _, rule := range c.affected {
		if strings.Contains(query, rule.pattern) {
			return rule.n
		}
	}
	return defaultAffectRows
}

// FakeStatement is a statement handle of a FakeConnection.
type FakeStatement struct {
	conn   *FakeConnection
	query  string
	closed bool
}

// Query returns the rows configured with WillReturnRows, or an empty result.
func (s *FakeStatement) Query(_ context.Context, args ...any) (*sql.Rows, error) {
	c := s.conn
	c.mu.Lock()
	if s.closed || c.closed {
		c.mu.Unlock()
		return nil, dbtypes.ErrClosed
	}
	if err := c.fail(OpQuery); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.queries = append(c.queries, ExecCall{SQL: s.query, Args: args})
	rs := c.lookupRows(s.query)
	c.mu.Unlock()

	if rs == nil {
		rs = NewRowSet()
	}
	return rs.toSQLRows()
}

// Exec records the write and reports the configured affected row count.
func (s *FakeStatement) Exec(_ context.Context, args ...any) (sql.Result, error) {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed || c.closed {
		return nil, dbtypes.ErrClosed
	}
	if err := c.fail(OpExec); err != nil {
		return nil, err
	}

	call := ExecCall{SQL: s.query, Args: args}
	if c.autoCommit {
		c.committed = append(c.committed, call)
	} else {
		c.pending = append(c.pending, call)
	}
	return driver.RowsAffected(c.lookupAffected(s.query)), nil
}

// Close releases the handle. Closing twice is counted once.
func (s *FakeStatement) Close() error {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	c.statementCloses++
	return c.fail(OpStatementClose)
}

// FakeDataSource is an in-memory types.DataSource handing out FakeConnections.
type FakeDataSource struct {
	mu      sync.Mutex
	vendor  string
	openErr error
	setup   func(*FakeConnection)
	conns   []*FakeConnection
}

var _ dbtypes.DataSource = (*FakeDataSource)(nil)

// NewFakeDataSource creates a data source for vendor.
func NewFakeDataSource(vendor string) *FakeDataSource {
	return &FakeDataSource{vendor: vendor}
}

// WithSetup runs fn on every connection before it is handed out.
func (d *FakeDataSource) WithSetup(fn func(*FakeConnection)) *FakeDataSource {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setup = fn
	return d
}

// FailOpen makes Open return err. A nil err restores normal behavior.
func (d *FakeDataSource) FailOpen(err error) *FakeDataSource {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
	return d
}

// Open implements types.DataSource.
func (d *FakeDataSource) Open(context.Context) (dbtypes.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	conn := NewFakeConnection(d.vendor)
	if d.setup != nil {
		d.setup(conn)
	}
	d.conns = append(d.conns, conn)
	return conn, nil
}

// Vendor implements types.DataSource.
func (d *FakeDataSource) Vendor() string {
	return d.vendor
}

// Connections returns every connection handed out, in order.
func (d *FakeDataSource) Connections() []*FakeConnection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeConnection(nil), d.conns...)
}

// Last returns the most recently opened connection.
func (d *FakeDataSource) Last() *FakeConnection {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		panic(fmt.Sprintf("FakeDataSource(%s): no connection opened", d.vendor))
	}
	return d.conns[len(d.conns)-1]
}

// Opened returns the number of connections handed out.
func (d *FakeDataSource) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Leaked returns the number of handed out connections that were never closed.
func (d *FakeDataSource) Leaked() int {
	d.mu.Lock()
	conns := append([]*FakeConnection(nil), d.conns...)
	d.mu.Unlock()

	n := 0
	for _, c := range conns {
		if !c.IsClosed() {
			n++
		}
	}
	return n
}
