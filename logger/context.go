package logger

import (
	"context"
	"sync/atomic"
	"time"
)

type dbStatsKey struct{}

// dbStats accumulates the physical statements issued while a context is in flight.
type dbStats struct {
	operations atomic.Int64
	elapsed    atomic.Int64
}

// WithDBStats returns a context that counts the database operations run under it.
func WithDBStats(ctx context.Context) context.Context {
	return context.WithValue(ctx, dbStatsKey{}, &dbStats{})
}

// RecordDBOperation adds one operation of the given duration. It is a no-op on contexts
// not prepared by WithDBStats.
func RecordDBOperation(ctx context.Context, elapsed time.Duration) {
	if s, ok := ctx.Value(dbStatsKey{}).(*dbStats); ok {
		s.operations.Add(1)
		s.elapsed.Add(int64(elapsed))
	}
}

// DBStatsFrom reports the operation count and total database time recorded on ctx.
func DBStatsFrom(ctx context.Context) (operations int64, elapsed time.Duration) {
	if s, ok := ctx.Value(dbStatsKey{}).(*dbStats); ok {
		return s.operations.Load(), time.Duration(s.elapsed.Load())
	}
	return 0, 0
}
