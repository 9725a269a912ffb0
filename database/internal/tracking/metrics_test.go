package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/gaborage/go-sqlsession/logger"
)

func resetMeter() {
	instrumentsOnce = sync.Once{}
	dbInstruments = nil
}

// setupTestMeterProvider installs a meter provider backed by a manual reader.
func setupTestMeterProvider(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()

	original := otel.GetMeterProvider()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	resetMeter()

	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		otel.SetMeterProvider(original)
		resetMeter()
	})
	return reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestRecordDBMetrics(t *testing.T) {
	reader := setupTestMeterProvider(t)
	tc := &Context{Logger: logger.Nop(), Vendor: "sqlite", Settings: NewSettings(nil)}

	TrackDBOperation(context.Background(), tc, testQueryInsertUsers, nil, time.Now(), 3, nil)
	TrackDBOperation(context.Background(), tc, testQueryInsertUsers, nil, time.Now(), 0, errors.New("constraint"))

	metrics := collect(t, reader)

	calls, ok := metrics[metricDBCalls].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range calls.DataPoints {
		total += dp.Value
		table, _ := dp.Attributes.Value(attrDBTable)
		assert.Equal(t, "users", table.AsString())
	}
	assert.Equal(t, int64(2), total)
	assert.Len(t, calls.DataPoints, 2, "success and error are separate series")

	rows, ok := metrics[metricRowsAffected].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, rows.DataPoints, 1)
	assert.Equal(t, int64(3), rows.DataPoints[0].Value)

	duration, ok := metrics[metricDBDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.Equal(t, uint64(2), duration.DataPoints[0].Count)
}

func TestTransactionOutcomeMetrics(t *testing.T) {
	reader := setupTestMeterProvider(t)
	tc := &Context{Logger: logger.Nop(), Vendor: "pgx", Settings: NewSettings(nil)}

	TrackDBOperation(context.Background(), tc, OpBegin, nil, time.Now(), 0, nil)
	TrackDBOperation(context.Background(), tc, OpCommit, nil, time.Now(), 0, nil)
	TrackDBOperation(context.Background(), tc, OpRollback, nil, time.Now(), 0, nil)
	TrackDBOperation(context.Background(), tc, OpCommit, nil, time.Now(), 0, errors.New("serialization failure"))

	txs, ok := collect(t, reader)[metricTxCompleted].Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byOutcome := map[string]int64{}
	for _, dp := range txs.DataPoints {
		outcome, _ := dp.Attributes.Value(attrTxOutcome)
		system, _ := dp.Attributes.Value(attrDBSystem)
		assert.Equal(t, "postgresql", system.AsString())
		byOutcome[outcome.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"commit": 2, "rollback": 1}, byOutcome)
}

func TestRegisterConnectionPoolMetrics(t *testing.T) {
	reader := setupTestMeterProvider(t)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(7)

	cleanup := RegisterConnectionPoolMetrics(db, "postgresql", "reporting")
	defer cleanup()

	metrics := collect(t, reader)
	total, ok := metrics[metricPoolTotal].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, total.DataPoints, 1)
	assert.Equal(t, int64(7), total.DataPoints[0].Value)

	env, _ := total.DataPoints[0].Attributes.Value(attrDBEnvironment)
	assert.Equal(t, "reporting", env.AsString())

	cleanup()
	metrics = collect(t, reader)
	if m, ok := metrics[metricPoolTotal]; ok {
		gauge := m.Data.(metricdata.Gauge[int64])
		assert.Empty(t, gauge.DataPoints)
	}
}
