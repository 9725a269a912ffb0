package executor

import (
	"context"

	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/mapping"
	"github.com/gaborage/go-sqlsession/transaction"
)

// batch is a run of consecutive updates sharing the same SQL text.
type batch struct {
	ms   *mapping.MappedStatement
	sql  string
	args [][]any
}

// batchPolicy queues updates and runs them on flush. The connection is acquired on the
// first update to bind parameters for its vendor, but nothing is prepared or executed
// before the flush; each batch is prepared once and executed per parameter set.
type batchPolicy struct {
	batches []*batch
}

func (*batchPolicy) kind() Kind { return KindBatch }

func (p *batchPolicy) update(_ context.Context, _ types.Connection, ms *mapping.MappedStatement, bound mapping.BoundSQL) (int64, error) {
	if n := len(p.batches); n > 0 && p.batches[n-1].sql == bound.SQL {
		current := p.batches[n-1]
		current.args = append(current.args, bound.Args)
		return BatchUpdateReturnValue, nil
	}
	p.batches = append(p.batches, &batch{ms: ms, sql: bound.SQL, args: [][]any{bound.Args}})
	return BatchUpdateReturnValue, nil
}

func (p *batchPolicy) query(_ context.Context, _ types.Connection, ms *mapping.MappedStatement, _ mapping.BoundSQL) ([]any, error) {
	return nil, execError("query", ms.ID, types.ErrUnsupported)
}

// flush runs every queued batch in submission order. The queue is emptied whether or not
// the flush succeeds; on failure the results of the batches that completed are returned
// along with the error.
func (p *batchPolicy) flush(ctx context.Context, tx transaction.Transaction, rollback bool) ([]BatchResult, error) {
	batches := p.batches
	p.batches = nil

	if rollback || len(batches) == 0 {
		return nil, nil
	}

	conn, err := tx.Connection(ctx)
	if err != nil {
		return nil, annotate(err, batches[0].ms.ID)
	}

	results := make([]BatchResult, 0, len(batches))
	for _, b := range batches {
		result, err := b.run(ctx, conn)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (b *batch) run(ctx context.Context, conn types.Connection) (result BatchResult, err error) {
	stmt, err := conn.Prepare(ctx, b.sql)
	if err != nil {
		return BatchResult{}, execError("prepare batch", b.ms.ID, err)
	}
	defer closeStatement(stmt, b.ms.ID, &err)

	result = BatchResult{
		StatementID:   b.ms.ID,
		SQL:           b.sql,
		ParameterSets: b.args,
		UpdateCounts:  make([]int64, 0, len(b.args)),
	}
	for _, args := range b.args {
		n, err := b.exec(ctx, stmt, args)
		if err != nil {
			return BatchResult{}, err
		}
		result.UpdateCounts = append(result.UpdateCounts, n)
	}
	return result, nil
}

func (b *batch) exec(ctx context.Context, stmt types.Statement, args []any) (int64, error) {
	ctx, cancel := statementContext(ctx, b.ms)
	defer cancel()
	return exec(ctx, stmt, b.ms, args)
}
