package session

import (
	"context"
	"fmt"

	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/executor"
	"github.com/gaborage/go-sqlsession/logger"
)

// Session is one unit of work over a single connection.
//
// A Session is not safe for concurrent use. Close it on every path, typically with defer;
// after Close every statement operation fails with a usage error.
type Session struct {
	id         string
	cfg        *Configuration
	exec       executor.Executor
	autoCommit bool
	dirty      bool
	closed     bool
	logger     logger.Logger
}

// ID returns the session id used in logs.
func (s *Session) ID() string {
	return s.id
}

// Configuration returns the configuration the session was opened from.
func (s *Session) Configuration() *Configuration {
	return s.cfg
}

// AutoCommit reports whether the session runs in auto-commit mode.
func (s *Session) AutoCommit() bool {
	return s.autoCommit
}

// IsClosed reports whether Close was called.
func (s *Session) IsClosed() bool {
	return s.closed
}

func (s *Session) check(op, id string) error {
	if s == nil {
		return types.NewError(types.ErrUsage, op, types.ErrSessionNotOpened).WithStatement(id)
	}
	if s.closed {
		return types.NewError(types.ErrUsage, op, types.ErrClosed).WithStatement(id)
	}
	return nil
}

// SelectOne runs a select expected to match at most one row. It returns nil when nothing
// matched and ErrTooManyResults when more than one row did.
func (s *Session) SelectOne(ctx context.Context, id string, params any) (any, error) {
	results, err := s.SelectList(ctx, id, params)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return nil, types.NewError(types.ErrExecution, "select one",
			fmt.Errorf("%w: %d", types.ErrTooManyResults, len(results))).WithStatement(id)
	}
}

// SelectList runs a select and returns every mapped row.
func (s *Session) SelectList(ctx context.Context, id string, params any) ([]any, error) {
	if err := s.check("select list", id); err != nil {
		return nil, err
	}

	ec := errorContextFor(ctx)
	defer ec.Reset()
	ec.Activity("querying database").Object(id)

	ms, err := s.cfg.MappedStatement(id)
	if err != nil {
		return nil, err
	}
	results, err := s.exec.Query(ctx, ms, params)
	if err != nil {
		return nil, wrap(ec, err)
	}
	return results, nil
}

// Update runs a write and returns the affected row count. With a batch executor the count
// is executor.BatchUpdateReturnValue until the batch is flushed.
func (s *Session) Update(ctx context.Context, id string, params any) (int64, error) {
	if err := s.check("update", id); err != nil {
		return 0, err
	}

	ec := errorContextFor(ctx)
	defer ec.Reset()
	ec.Activity("updating database").Object(id)

	ms, err := s.cfg.MappedStatement(id)
	if err != nil {
		return 0, err
	}
	s.dirty = true
	n, err := s.exec.Update(ctx, ms, params)
	if err != nil {
		return 0, wrap(ec, err)
	}
	return n, nil
}

// Insert is Update for insert statements.
func (s *Session) Insert(ctx context.Context, id string, params any) (int64, error) {
	return s.Update(ctx, id, params)
}

// Delete is Update for delete statements.
func (s *Session) Delete(ctx context.Context, id string, params any) (int64, error) {
	return s.Update(ctx, id, params)
}

// FlushStatements executes queued batch statements.
func (s *Session) FlushStatements(ctx context.Context) ([]executor.BatchResult, error) {
	if err := s.check("flush statements", ""); err != nil {
		return nil, err
	}

	ec := errorContextFor(ctx)
	defer ec.Reset()
	ec.Activity("flushing statements")

	results, err := s.exec.FlushStatements(ctx)
	if err != nil {
		return results, wrap(ec, err)
	}
	return results, nil
}

// Commit flushes queued statements and commits when the session has uncommitted writes and
// is not in auto-commit mode, or when force is set.
func (s *Session) Commit(ctx context.Context, force bool) error {
	if err := s.check("commit", ""); err != nil {
		return err
	}

	ec := errorContextFor(ctx)
	defer ec.Reset()
	ec.Activity("committing transaction")

	if err := s.exec.Commit(ctx, s.commitOrRollbackRequired(force)); err != nil {
		return wrap(ec, err)
	}
	s.dirty = false
	return nil
}

// Rollback discards queued statements and rolls back under the same condition as Commit.
func (s *Session) Rollback(ctx context.Context, force bool) error {
	if err := s.check("rollback", ""); err != nil {
		return err
	}

	ec := errorContextFor(ctx)
	defer ec.Reset()
	ec.Activity("rolling back transaction")

	if err := s.exec.Rollback(ctx, s.commitOrRollbackRequired(force)); err != nil {
		return wrap(ec, err)
	}
	s.dirty = false
	return nil
}

// Close releases the session. Uncommitted writes of a manual-commit session are rolled
// back. Closing twice is a no-op; closing a nil session fails.
func (s *Session) Close(ctx context.Context) error {
	if s == nil {
		return types.NewError(types.ErrUsage, "close", types.ErrSessionNotOpened)
	}
	if s.closed {
		return nil
	}

	ec := errorContextFor(ctx)
	defer ec.Reset()
	ec.Activity("closing session")

	err := s.exec.Close(ctx, s.commitOrRollbackRequired(false))
	s.closed = true
	s.dirty = false

	s.logger.Debug().Str("session_id", s.id).Msg("Closed session")
	if err != nil {
		return wrap(ec, err)
	}
	return nil
}

// Connection returns the session's connection, acquiring it if needed.
func (s *Session) Connection(ctx context.Context) (types.Connection, error) {
	if err := s.check("get connection", ""); err != nil {
		return nil, err
	}
	return s.exec.Transaction().Connection(ctx)
}

// GetMapper returns the proxy of a registered mapper.
func (s *Session) GetMapper(name string) (*MapperProxy, error) {
	if err := s.check("get mapper", ""); err != nil {
		return nil, err
	}
	m, ok := s.cfg.Mapper(name)
	if !ok {
		return nil, types.NewError(types.ErrUnknownStatement, "get mapper", fmt.Errorf("mapper %q is not registered", name))
	}
	return &MapperProxy{session: s, mapper: m}, nil
}

func (s *Session) commitOrRollbackRequired(force bool) bool {
	return (!s.autoCommit && s.dirty) || force
}

func wrap(ec *ErrorContext, err error) error {
	if ec.IsEmpty() {
		return err
	}
	return fmt.Errorf("error %s: %w", ec, err)
}

// SelectOneAs is SelectOne with the result converted to T. The bool is false when no row
// matched.
func SelectOneAs[T any](ctx context.Context, s *Session, id string, params any) (T, bool, error) {
	var zero T
	result, err := s.SelectOne(ctx, id, params)
	if err != nil || result == nil {
		return zero, false, err
	}
	v, ok := result.(T)
	if !ok {
		return zero, false, conversionError(id, result, zero)
	}
	return v, true, nil
}

// SelectListAs is SelectList with every result converted to T.
func SelectListAs[T any](ctx context.Context, s *Session, id string, params any) ([]T, error) {
	results, err := s.SelectList(ctx, id, params)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(results))
	for _, r := range results {
		v, ok := r.(T)
		if !ok {
			var zero T
			return nil, conversionError(id, r, zero)
		}
		out = append(out, v)
	}
	return out, nil
}

func conversionError(id string, got, want any) error {
	return types.NewError(types.ErrExecution, "convert result",
		fmt.Errorf("result of type %T is not %T", got, want)).WithStatement(id)
}
