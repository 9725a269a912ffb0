// Package executor runs mapped statements over a session's transaction.
//
// An executor is bound to one transaction for its whole life and never outlives it. The
// three kinds differ only in how statement handles are managed:
//
//   - Simple prepares, executes and closes a handle per call.
//   - Reuse caches handles by SQL text until the next flush, commit, rollback or close.
//   - Batch queues writes and executes them on flush, grouping consecutive writes that
//     share the same SQL text.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/logger"
	"github.com/gaborage/go-sqlsession/mapping"
	"github.com/gaborage/go-sqlsession/transaction"
)

// BatchUpdateReturnValue is the row count reported by Update on a batch executor, where the
// real count is only known after FlushStatements.
const BatchUpdateReturnValue = math.MinInt32 + 1002

// Kind selects an executor variant. The zero value defers to the configured default.
type Kind int

const (
	KindDefault Kind = iota
	KindSimple
	KindReuse
	KindBatch
)

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindReuse:
		return "reuse"
	case KindBatch:
		return "batch"
	default:
		return "default"
	}
}

// ParseKind parses the configuration spelling of an executor kind. An empty string yields
// KindDefault.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return KindDefault, nil
	case "simple":
		return KindSimple, nil
	case "reuse":
		return KindReuse, nil
	case "batch":
		return KindBatch, nil
	default:
		return KindDefault, fmt.Errorf("unknown executor kind: %s", s)
	}
}

// Resolve returns k, or fallback when k is KindDefault. A default fallback resolves to
// KindSimple.
func (k Kind) Resolve(fallback Kind) Kind {
	if k != KindDefault {
		return k
	}
	if fallback != KindDefault {
		return fallback
	}
	return KindSimple
}

// BatchResult describes one flushed batch: every parameter set executed with SQL and the
// row count each execution reported.
type BatchResult struct {
	StatementID   string
	SQL           string
	ParameterSets [][]any
	UpdateCounts  []int64
}

// Executor runs statements for one session.
// Executors are not safe for concurrent use.
type Executor interface {
	// Update executes a write and returns the affected row count.
	Update(ctx context.Context, ms *mapping.MappedStatement, params any) (int64, error)

	// Query executes a read and returns the mapped rows.
	Query(ctx context.Context, ms *mapping.MappedStatement, params any) ([]any, error)

	// FlushStatements executes queued work and releases cached handles.
	FlushStatements(ctx context.Context) ([]BatchResult, error)

	// Commit flushes and, when required, commits the transaction.
	Commit(ctx context.Context, required bool) error

	// Rollback discards queued work and, when required, rolls the transaction back.
	Rollback(ctx context.Context, required bool) error

	// Close runs queued statements, or discards them and rolls back when forced, then
	// closes the transaction. Closing twice is a no-op.
	Close(ctx context.Context, forceRollback bool) error

	// Transaction returns the transaction the executor is bound to.
	Transaction() transaction.Transaction

	// IsClosed reports whether Close was called.
	IsClosed() bool
}

// Option configures an executor.
type Option func(*executor)

// WithLogger sets the logger used for swallowed cleanup errors.
func WithLogger(log logger.Logger) Option {
	return func(e *executor) {
		if log != nil {
			e.logger = log
		}
	}
}

// WithDefaultTimeout sets the timeout applied to statements that declare none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *executor) {
		e.defaultTimeout = d
	}
}

// New creates an executor of kind over tx. KindDefault selects KindSimple.
func New(tx transaction.Transaction, kind Kind, opts ...Option) (Executor, error) {
	if tx == nil {
		return nil, fmt.Errorf("executor requires a transaction")
	}

	e := &executor{tx: tx, logger: logger.Nop()}
	for _, opt := range opts {
		opt(e)
	}

	switch kind.Resolve(KindSimple) {
	case KindSimple:
		e.policy = simplePolicy{}
	case KindReuse:
		e.policy = newReusePolicy(e.logger)
	case KindBatch:
		e.policy = &batchPolicy{}
	default:
		return nil, fmt.Errorf("unknown executor kind: %d", kind)
	}
	return e, nil
}

// policy is the part that differs between executor kinds: how handles are obtained,
// kept and released.
type policy interface {
	kind() Kind
	update(ctx context.Context, conn types.Connection, ms *mapping.MappedStatement, bound mapping.BoundSQL) (int64, error)
	query(ctx context.Context, conn types.Connection, ms *mapping.MappedStatement, bound mapping.BoundSQL) ([]any, error)
	flush(ctx context.Context, tx transaction.Transaction, rollback bool) ([]BatchResult, error)
}

// executor composes the shared transaction reference with a kind policy.
type executor struct {
	tx             transaction.Transaction
	policy         policy
	logger         logger.Logger
	defaultTimeout time.Duration
	closed         bool
}

func (e *executor) Update(ctx context.Context, ms *mapping.MappedStatement, params any) (int64, error) {
	if e.closed {
		return 0, types.NewError(types.ErrUsage, "update", types.ErrClosed).WithStatement(ms.ID)
	}

	ms = e.withDefaults(ms)
	conn, bound, err := e.prepareCall(ctx, ms, params)
	if err != nil {
		return 0, err
	}
	return e.policy.update(ctx, conn, ms, bound)
}

func (e *executor) Query(ctx context.Context, ms *mapping.MappedStatement, params any) ([]any, error) {
	if e.closed {
		return nil, types.NewError(types.ErrUsage, "query", types.ErrClosed).WithStatement(ms.ID)
	}
	if e.policy.kind() == KindBatch {
		return nil, types.NewError(types.ErrExecution, "query", fmt.Errorf("%w: batch executor does not run queries", types.ErrUnsupported)).WithStatement(ms.ID)
	}

	ms = e.withDefaults(ms)
	conn, bound, err := e.prepareCall(ctx, ms, params)
	if err != nil {
		return nil, err
	}
	return e.policy.query(ctx, conn, ms, bound)
}

// withDefaults returns ms, or a copy carrying the default timeout when ms declares none.
func (e *executor) withDefaults(ms *mapping.MappedStatement) *mapping.MappedStatement {
	if ms.Timeout > 0 || e.defaultTimeout <= 0 {
		return ms
	}
	c := *ms
	c.Timeout = e.defaultTimeout
	return &c
}

func (e *executor) prepareCall(ctx context.Context, ms *mapping.MappedStatement, params any) (types.Connection, mapping.BoundSQL, error) {
	conn, err := e.tx.Connection(ctx)
	if err != nil {
		return nil, mapping.BoundSQL{}, annotate(err, ms.ID)
	}
	bound, err := ms.Bind(conn.Vendor(), params)
	if err != nil {
		return nil, mapping.BoundSQL{}, types.NewError(types.ErrExecution, "bind parameters", err).WithStatement(ms.ID)
	}
	return conn, bound, nil
}

func (e *executor) FlushStatements(ctx context.Context) ([]BatchResult, error) {
	if e.closed {
		return nil, types.NewError(types.ErrUsage, "flush statements", types.ErrClosed)
	}
	return e.policy.flush(ctx, e.tx, false)
}

func (e *executor) Commit(ctx context.Context, required bool) error {
	if e.closed {
		return types.NewError(types.ErrUsage, "commit", types.ErrClosed)
	}
	if _, err := e.policy.flush(ctx, e.tx, false); err != nil {
		return err
	}
	if required {
		return e.tx.Commit(ctx)
	}
	return nil
}

func (e *executor) Rollback(ctx context.Context, required bool) error {
	if e.closed {
		return nil
	}
	if _, err := e.policy.flush(ctx, e.tx, true); err != nil {
		e.logger.Warn().Err(err).Msg("Error discarding statements before rollback")
	}
	if required {
		return e.tx.Rollback(ctx)
	}
	return nil
}

// Close ends the executor. Without forceRollback queued statements are executed first,
// so writes of an auto-commit session survive the close; with it they are discarded and
// the transaction is rolled back. The first failure is returned and later ones are logged.
func (e *executor) Close(ctx context.Context, forceRollback bool) error {
	if e.closed {
		return nil
	}

	var errs []error
	if !forceRollback {
		if _, err := e.policy.flush(ctx, e.tx, false); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.Rollback(ctx, forceRollback); err != nil {
		errs = append(errs, err)
	}
	if err := e.tx.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	e.closed = true

	if len(errs) == 0 {
		return nil
	}
	for _, err := range errs[1:] {
		e.logger.Warn().Err(err).Msg("Additional error while closing executor")
	}
	return errs[0]
}

func (e *executor) Transaction() transaction.Transaction {
	return e.tx
}

func (e *executor) IsClosed() bool {
	return e.closed
}

// annotate adds the statement id to a typed error that lacks one.
func annotate(err error, id string) error {
	var typed *types.Error
	if errors.As(err, &typed) && typed.StatementID == "" {
		typed.WithStatement(id)
	}
	return err
}

func execError(op, id string, err error) error {
	return types.NewError(types.ErrExecution, op, err).WithStatement(id)
}

// statementContext applies the statement timeout, if any.
func statementContext(ctx context.Context, ms *mapping.MappedStatement) (context.Context, context.CancelFunc) {
	if ms.Timeout > 0 {
		return context.WithTimeout(ctx, ms.Timeout)
	}
	return ctx, func() {}
}

func exec(ctx context.Context, stmt types.Statement, ms *mapping.MappedStatement, args []any) (int64, error) {
	res, err := stmt.Exec(ctx, args...)
	if err != nil {
		return 0, execError("execute update", ms.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, execError("read rows affected", ms.ID, err)
	}
	return n, nil
}

func query(ctx context.Context, stmt types.Statement, ms *mapping.MappedStatement, args []any) ([]any, error) {
	rows, err := stmt.Query(ctx, args...)
	if err != nil {
		return nil, execError("execute query", ms.ID, err)
	}
	defer rows.Close()

	results, err := ms.Mapper()(rows)
	if err != nil {
		return nil, execError("map results", ms.ID, err)
	}
	return results, nil
}
