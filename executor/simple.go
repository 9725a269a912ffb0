package executor

import (
	"context"

	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/mapping"
	"github.com/gaborage/go-sqlsession/transaction"
)

// simplePolicy prepares a fresh handle for every call and closes it before returning.
type simplePolicy struct{}

func (simplePolicy) kind() Kind { return KindSimple }

func (simplePolicy) update(ctx context.Context, conn types.Connection, ms *mapping.MappedStatement, bound mapping.BoundSQL) (n int64, err error) {
	ctx, cancel := statementContext(ctx, ms)
	defer cancel()

	stmt, err := conn.Prepare(ctx, bound.SQL)
	if err != nil {
		return 0, execError("prepare statement", ms.ID, err)
	}
	defer closeStatement(stmt, ms.ID, &err)

	return exec(ctx, stmt, ms, bound.Args)
}

func (simplePolicy) query(ctx context.Context, conn types.Connection, ms *mapping.MappedStatement, bound mapping.BoundSQL) (results []any, err error) {
	ctx, cancel := statementContext(ctx, ms)
	defer cancel()

	stmt, err := conn.Prepare(ctx, bound.SQL)
	if err != nil {
		return nil, execError("prepare statement", ms.ID, err)
	}
	defer closeStatement(stmt, ms.ID, &err)

	return query(ctx, stmt, ms, bound.Args)
}

func (simplePolicy) flush(context.Context, transaction.Transaction, bool) ([]BatchResult, error) {
	return nil, nil
}

// closeStatement closes stmt and reports the failure through err unless err already holds
// the primary failure.
func closeStatement(stmt types.Statement, id string, err *error) {
	closeErr := stmt.Close()
	if closeErr == nil || *err != nil {
		return
	}
	*err = execError("close statement", id, closeErr)
}
