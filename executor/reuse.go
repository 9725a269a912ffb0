package executor

import (
	"context"

	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/logger"
	"github.com/gaborage/go-sqlsession/mapping"
	"github.com/gaborage/go-sqlsession/transaction"
)

// reusePolicy caches one handle per SQL text. Handles prepared inside a driver transaction
// stop being valid when it ends, so every flush releases the whole cache.
type reusePolicy struct {
	logger     logger.Logger
	statements map[string]types.Statement
}

func newReusePolicy(log logger.Logger) *reusePolicy {
	return &reusePolicy{logger: log, statements: make(map[string]types.Statement)}
}

func (*reusePolicy) kind() Kind { return KindReuse }

// statement returns the cached handle for sql or prepares and caches a new one.
// A failed prepare caches nothing.
func (p *reusePolicy) statement(ctx context.Context, conn types.Connection, ms *mapping.MappedStatement, sql string) (types.Statement, error) {
	if stmt, ok := p.statements[sql]; ok {
		return stmt, nil
	}
	stmt, err := conn.Prepare(ctx, sql)
	if err != nil {
		return nil, execError("prepare statement", ms.ID, err)
	}
	p.statements[sql] = stmt
	return stmt, nil
}

func (p *reusePolicy) update(ctx context.Context, conn types.Connection, ms *mapping.MappedStatement, bound mapping.BoundSQL) (int64, error) {
	ctx, cancel := statementContext(ctx, ms)
	defer cancel()

	stmt, err := p.statement(ctx, conn, ms, bound.SQL)
	if err != nil {
		return 0, err
	}
	return exec(ctx, stmt, ms, bound.Args)
}

func (p *reusePolicy) query(ctx context.Context, conn types.Connection, ms *mapping.MappedStatement, bound mapping.BoundSQL) ([]any, error) {
	ctx, cancel := statementContext(ctx, ms)
	defer cancel()

	stmt, err := p.statement(ctx, conn, ms, bound.SQL)
	if err != nil {
		return nil, err
	}
	return query(ctx, stmt, ms, bound.Args)
}

func (p *reusePolicy) flush(context.Context, transaction.Transaction, bool) ([]BatchResult, error) {
	for sql, stmt := range p.statements {
		if err := stmt.Close(); err != nil {
			p.logger.Warn().Err(err).Str("sql", sql).Msg("Error closing cached statement")
		}
	}
	clear(p.statements)
	return nil, nil
}
