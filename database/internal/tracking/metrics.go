package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	dbMeterName = "go-sqlsession/database"

	metricDBCalls        = "db.client.calls"
	metricDBDuration     = "db.client.operation.duration"
	metricRowsAffected   = "db.rows.affected"
	metricTxCompleted    = "db.client.transactions"
	metricPoolActive     = "db.connection.pool.active"
	metricPoolIdle       = "db.connection.pool.idle"
	metricPoolTotal      = "db.connection.pool.total"
	attrDBSystem         = "db.system"
	attrDBOperation      = "db.operation.name"
	attrDBTable          = "db.sql.table"
	attrDBEnvironment    = "db.environment"
	attrTxOutcome        = "db.transaction.outcome"
	attrError            = "error"
	unknownTable         = "unknown"
	durationUnitMillisec = "ms"
)

// instruments holds the synchronous instruments of the database meter. Any of them may be
// nil when registration failed; recording then skips that instrument.
type instruments struct {
	meter        metric.Meter
	calls        metric.Int64Counter
	duration     metric.Float64Histogram
	rowsAffected metric.Int64Counter
	transactions metric.Int64Counter
}

var (
	instrumentsOnce sync.Once
	dbInstruments   *instruments
)

// warnMetric reports an instrument registration failure on stderr. Metrics never fail a
// database operation.
func warnMetric(name string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize metric %s: %v\n", name, err)
	}
}

// loadInstruments binds the instruments to the global meter provider on first use.
func loadInstruments() *instruments {
	instrumentsOnce.Do(func() {
		m := otel.Meter(dbMeterName)
		in := &instruments{meter: m}
		var err error

		in.calls, err = m.Int64Counter(metricDBCalls, metric.WithDescription("Physical statements sent to the database"))
		warnMetric(metricDBCalls, err)

		in.duration, err = m.Float64Histogram(metricDBDuration,
			metric.WithDescription("Duration of database operations"),
			metric.WithUnit(durationUnitMillisec))
		warnMetric(metricDBDuration, err)

		in.rowsAffected, err = m.Int64Counter(metricRowsAffected, metric.WithDescription("Rows written by insert, update and delete statements"))
		warnMetric(metricRowsAffected, err)

		in.transactions, err = m.Int64Counter(metricTxCompleted, metric.WithDescription("Transactions ended by commit or rollback"))
		warnMetric(metricTxCompleted, err)

		dbInstruments = in
	})
	return dbInstruments
}

// recordDBMetrics updates the call, duration and rows-affected instruments for one
// operation. Commit and rollback markers also count as completed transactions.
func recordDBMetrics(ctx context.Context, tc *Context, query string, duration time.Duration, rowsAffected int64, err error) {
	in := loadInstruments()
	failed := err != nil && !errors.Is(err, sql.ErrNoRows)
	operation := extractDBOperation(query)
	system := attribute.String(attrDBSystem, normalizeDBVendor(tc.Vendor))

	common := metric.WithAttributes(
		system,
		attribute.String(attrDBOperation, operation),
		attribute.String(attrDBTable, extractTableName(query)),
	)

	if in.calls != nil {
		in.calls.Add(ctx, 1, common, metric.WithAttributes(attribute.Bool(attrError, failed)))
	}
	if in.duration != nil {
		in.duration.Record(ctx, float64(duration)/float64(time.Millisecond), common)
	}
	if in.rowsAffected != nil && rowsAffected > 0 && !failed {
		in.rowsAffected.Add(ctx, rowsAffected, common)
	}
	if in.transactions != nil && (query == OpCommit || query == OpRollback) {
		in.transactions.Add(ctx, 1, metric.WithAttributes(
			system,
			attribute.String(attrTxOutcome, operation),
			attribute.Bool(attrError, failed),
		))
	}
}

// tablePatterns locate the primary table per statement keyword. Identifiers may be quoted
// and schema-qualified.
var tablePatterns = map[string]*regexp.Regexp{
	"SELECT": regexp.MustCompile("(?i)FROM\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?"),
	"INSERT": regexp.MustCompile("(?i)INSERT\\s+INTO\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?"),
	"UPDATE": regexp.MustCompile("(?i)UPDATE\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?"),
	"DELETE": regexp.MustCompile("(?i)DELETE\\s+FROM\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?"),
}

// extractTableName returns the lowercase primary table of a DML statement, or "unknown".
// With joins the first table wins.
func extractTableName(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return unknownTable
	}
	keyword := strings.ToUpper(fields[0])
	if keyword == "WITH" {
		keyword = "SELECT"
	}
	pattern, ok := tablePatterns[keyword]
	if !ok {
		return unknownTable
	}
	if m := pattern.FindStringSubmatch(query); len(m) > 1 {
		return strings.ToLower(m[1])
	}
	return unknownTable
}

// StatsSource reports database/sql pool statistics, typically *sql.DB.
type StatsSource interface {
	Stats() sql.DBStats
}

// RegisterConnectionPoolMetrics exports the pool of src as observable gauges tagged with
// the data source environment. The returned function unregisters them and is always safe
// to call.
func RegisterConnectionPoolMetrics(src StatsSource, vendor, environment string) func() {
	meter := loadInstruments().meter
	attrs := metric.WithAttributes(
		attribute.String(attrDBSystem, normalizeDBVendor(vendor)),
		attribute.String(attrDBEnvironment, environment),
	)

	type gauge struct {
		name, desc string
		value      func(sql.DBStats) int
		inst       metric.Int64ObservableGauge
	}
	gauges := []*gauge{
		{name: metricPoolActive, desc: "Connections currently in use", value: func(s sql.DBStats) int { return s.InUse }},
		{name: metricPoolIdle, desc: "Idle connections", value: func(s sql.DBStats) int { return s.Idle }},
		{name: metricPoolTotal, desc: "Maximum open connections configured", value: func(s sql.DBStats) int { return s.MaxOpenConnections }},
	}

	var observables []metric.Observable
	var registered []*gauge
	for _, g := range gauges {
		inst, err := meter.Int64ObservableGauge(g.name, metric.WithDescription(g.desc))
		warnMetric(g.name, err)
		if err != nil || inst == nil {
			continue
		}
		g.inst = inst
		registered = append(registered, g)
		observables = append(observables, inst)
	}
	if len(observables) == 0 {
		return func() {}
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := src.Stats()
		for _, g := range registered {
			o.ObserveInt64(g.inst, int64(g.value(stats)), attrs)
		}
		return nil
	}, observables...)
	if err != nil {
		warnMetric("pool_metrics_callback", err)
		return func() {}
	}

	return func() {
		if err := registration.Unregister(); err != nil {
			warnMetric("pool_metrics_unregister", err)
		}
	}
}
