package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-sqlsession/logger"
)

// Transaction boundary markers passed as the query of TrackDBOperation.
const (
	OpBegin    = "BEGIN"
	OpCommit   = "COMMIT"
	OpRollback = "ROLLBACK"
)

const (
	defaultOperation  = "query"
	dbTracerName      = "go-sqlsession/database"
	maxDBQueryAttrLen = 2000
)

var (
	markerOperations = map[string]string{OpBegin: "begin", OpCommit: "commit", OpRollback: "rollback"}

	knownOperations = map[string]string{
		"select": "select", "with": "select",
		"insert": "insert", "update": "update", "delete": "delete", "merge": "merge",
		"create": "create", "drop": "drop", "alter": "alter", "truncate": "truncate",
	}

	vendorAliases = map[string]string{
		"postgres": "postgresql", "pgx": "postgresql", "postgresql": "postgresql",
		"oracle": "oracle",
		"mysql":  "mysql", "mariadb": "mysql",
		"sqlite": "sqlite", "sqlite3": "sqlite",
	}
)

// TrackDBOperation records one completed physical operation: it bumps the statistics on
// ctx, emits a client span and metrics, then logs the statement. Failures log at error
// (sql.ErrNoRows at debug), operations over the slow threshold at warn, the rest at debug.
// It does nothing when tc or its Logger is nil.
//
// rowsAffected is the write count of INSERT, UPDATE and DELETE statements; pass 0 for reads.
func TrackDBOperation(ctx context.Context, tc *Context, query string, args []any, start time.Time, rowsAffected int64, err error) {
	if tc == nil || tc.Logger == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	elapsed := time.Since(start)
	logger.RecordDBOperation(ctx, elapsed)
	createDBSpan(ctx, tc, query, start, err)
	recordDBMetrics(ctx, tc, query, elapsed, rowsAffected, err)

	maxLen := tc.Settings.MaxQueryLength()
	fields := map[string]any{
		"vendor":      tc.Vendor,
		"duration_ms": elapsed.Milliseconds(),
		"duration_ns": elapsed.Nanoseconds(),
		"query":       TruncateString(query, maxLen),
	}
	if tc.Settings.LogQueryParameters() && len(args) > 0 {
		fields["args"] = SanitizeArgs(args, maxLen)
	}
	log := tc.Logger.WithContext(ctx).WithFields(fields)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		log.Debug().Msg("Database operation returned no rows")
	case err != nil:
		log.Error().Err(err).Msg("Database operation error")
	case elapsed > tc.Settings.SlowQueryThreshold():
		log.Warn().Msgf("Slow database operation detected (%s)", elapsed)
	default:
		log.Debug().Msg("Database operation executed")
	}
}

// extractRowsAffected returns the write count of result, or 0 when it is unavailable.
func extractRowsAffected(result sql.Result, err error) int64 {
	if result == nil || err != nil {
		return 0
	}
	if n, affErr := result.RowsAffected(); affErr == nil {
		return n
	}
	return 0
}

// TruncateString shortens value to maxLen runes, ending in "..." when maxLen leaves room
// for it. maxLen <= 0 disables truncation.
func TruncateString(value string, maxLen int) string {
	if maxLen <= 0 {
		return value
	}
	r := []rune(value)
	switch {
	case len(r) <= maxLen:
		return value
	case maxLen <= 3:
		return string(r[:maxLen])
	default:
		return string(r[:maxLen-3]) + "..."
	}
}

// SanitizeArgs renders bound parameters for logging. Byte slices collapse to their
// length; everything else is printed and truncated to maxLen runes.
func SanitizeArgs(args []any, maxLen int) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case []byte:
			out[i] = fmt.Sprintf("<bytes len=%d>", len(v))
		case string:
			out[i] = TruncateString(v, maxLen)
		default:
			out[i] = TruncateString(fmt.Sprint(v), maxLen)
		}
	}
	return out
}

// createDBSpan emits a finished client span named db.<operation> covering start..now.
func createDBSpan(ctx context.Context, tc *Context, query string, start time.Time, err error) {
	operation := extractDBOperation(query)

	attrs := []attribute.KeyValue{
		attribute.String(attrDBSystem, normalizeDBVendor(tc.Vendor)),
		semconv.DBQueryText(TruncateString(query, maxDBQueryAttrLen)),
	}
	if operation != defaultOperation {
		attrs = append(attrs, semconv.DBOperationName(operation))
	}

	_, span := otel.Tracer(dbTracerName).Start(ctx, "db."+operation,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// extractDBOperation names the operation of a statement or transaction marker in
// lowercase, falling back to "query".
func extractDBOperation(query string) string {
	query = strings.TrimSpace(query)
	if op, ok := markerOperations[query]; ok {
		return op
	}
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return defaultOperation
	}
	if op, ok := knownOperations[strings.ToLower(fields[0])]; ok {
		return op
	}
	return defaultOperation
}

// normalizeDBVendor maps driver and vendor aliases onto the OpenTelemetry db.system values.
func normalizeDBVendor(vendor string) string {
	vendor = strings.ToLower(vendor)
	if system, ok := vendorAliases[vendor]; ok {
		return system
	}
	return vendor
}
