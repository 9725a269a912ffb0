package tracking

import (
	"context"
	"database/sql"
	"time"

	"github.com/gaborage/go-sqlsession/database/types"
)

// BasicStatement exposes a *sql.Stmt as a types.Statement with no instrumentation.
type BasicStatement struct {
	*sql.Stmt
}

func (s *BasicStatement) Query(ctx context.Context, args ...any) (*sql.Rows, error) {
	return s.QueryContext(ctx, args...)
}

func (s *BasicStatement) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	return s.ExecContext(ctx, args...)
}

// Statement records every execution of a prepared statement through its Context.
type Statement struct {
	types.Statement
	query string
	tc    *Context
}

// NewStatement instruments stmt, reporting executions under the given SQL text.
func NewStatement(stmt types.Statement, query string, tc *Context) types.Statement {
	return &Statement{Statement: stmt, query: query, tc: tc}
}

func (s *Statement) Query(ctx context.Context, args ...any) (rows *sql.Rows, err error) {
	defer func(start time.Time) {
		TrackDBOperation(ctx, s.tc, s.query, args, start, 0, err)
	}(time.Now())
	return s.Statement.Query(ctx, args...)
}

func (s *Statement) Exec(ctx context.Context, args ...any) (res sql.Result, err error) {
	defer func(start time.Time) {
		TrackDBOperation(ctx, s.tc, s.query, args, start, extractRowsAffected(res, err), err)
	}(time.Now())
	return s.Statement.Exec(ctx, args...)
}

// Close releases the underlying statement. Failures are logged at warn before being returned.
func (s *Statement) Close() error {
	err := s.Statement.Close()
	if err != nil && s.tc != nil && s.tc.Logger != nil {
		s.tc.Logger.Warn().Err(err).Str("query", TruncateString(s.query, s.tc.Settings.MaxQueryLength())).Msg("Failed to close prepared statement")
	}
	return err
}
