package tracking

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/gaborage/go-sqlsession/config"
	"github.com/gaborage/go-sqlsession/logger"
)

const (
	testQuerySelectUsers = "SELECT id, name FROM users WHERE id = ?"
	testQueryInsertUsers = "INSERT INTO users (name) VALUES (?)"
)

// setupTestTracerProvider installs an in-memory tracer provider for the duration of the test.
func setupTestTracerProvider(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	original := otel.GetTracerProvider()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(original)
	})
	return exporter
}

func decodeLogLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		maxLen int
		want   string
	}{
		{name: "no_limit", value: "abcdef", maxLen: 0, want: "abcdef"},
		{name: "fits", value: "abc", maxLen: 3, want: "abc"},
		{name: "short_limit", value: "abcdef", maxLen: 2, want: "ab"},
		{name: "ellipsis", value: "abcdefgh", maxLen: 6, want: "abc..."},
		{name: "multibyte", value: "héllo wörld", maxLen: 5, want: "hé..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateString(tt.value, tt.maxLen))
		})
	}
}

func TestSanitizeArgs(t *testing.T) {
	assert.Nil(t, SanitizeArgs(nil, 10))

	got := SanitizeArgs([]any{"a long string value", []byte{1, 2, 3}, 42}, 8)
	assert.Equal(t, []any{"a lon...", "<bytes len=3>", "42"}, got)
}

func TestExtractDBOperation(t *testing.T) {
	tests := map[string]string{
		testQuerySelectUsers:                   "select",
		"  insert into t values (1)":           "insert",
		"WITH x AS (SELECT 1) SELECT * FROM x": "select",
		OpCommit:                               "commit",
		OpRollback:                             "rollback",
		OpBegin:                                "begin",
		"CALL proc()":                          "query",
		"":                                     "query",
	}
	for query, want := range tests {
		assert.Equal(t, want, extractDBOperation(query), query)
	}
}

func TestExtractTableName(t *testing.T) {
	tests := map[string]string{
		testQuerySelectUsers:                  "users",
		testQueryInsertUsers:                  "users",
		`UPDATE "app"."orders" SET total = 1`: "orders",
		"DELETE FROM `items` WHERE id = 1":    "items",
		OpCommit:                              "unknown",
		"":                                    "unknown",
	}
	for query, want := range tests {
		assert.Equal(t, want, extractTableName(query), query)
	}
}

func TestNormalizeDBVendor(t *testing.T) {
	assert.Equal(t, "postgresql", normalizeDBVendor("Postgres"))
	assert.Equal(t, "sqlite", normalizeDBVendor("sqlite3"))
	assert.Equal(t, "mysql", normalizeDBVendor("mariadb"))
	assert.Equal(t, "oracle", normalizeDBVendor("oracle"))
	assert.Equal(t, "db2", normalizeDBVendor("DB2"))
}

func TestTrackDBOperationNilContextIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		TrackDBOperation(context.Background(), nil, testQuerySelectUsers, nil, time.Now(), 0, nil)
		TrackDBOperation(context.Background(), &Context{}, testQuerySelectUsers, nil, time.Now(), 0, nil)
	})
}

func TestTrackDBOperationLogs(t *testing.T) {
	var buf bytes.Buffer
	tc := &Context{
		Logger: logger.NewWithWriter(&buf, "debug", nil),
		Vendor: "sqlite",
		Settings: NewSettings(&config.DatabaseConfig{
			Query: config.QueryConfig{LogParameters: true, MaxLength: 20},
		}),
	}

	ctx := logger.WithDBStats(context.Background())
	TrackDBOperation(ctx, tc, testQueryInsertUsers, []any{"alice"}, time.Now(), 1, nil)

	lines := decodeLogLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "sqlite", lines[0]["vendor"])
	assert.Equal(t, "INSERT INTO users...", lines[0]["query"])
	assert.Equal(t, []any{"alice"}, lines[0]["args"])
	ops, _ := logger.DBStatsFrom(ctx)
	assert.Equal(t, int64(1), ops)
}

func TestTrackDBOperationLevels(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *config.DatabaseConfig
		start     time.Time
		err       error
		wantLevel string
	}{
		{name: "error", start: time.Now(), err: errors.New("boom"), wantLevel: "error"},
		{name: "no_rows", start: time.Now(), err: sql.ErrNoRows, wantLevel: "debug"},
		{
			name:      "slow",
			cfg:       &config.DatabaseConfig{Query: config.QueryConfig{SlowThreshold: time.Millisecond}},
			start:     time.Now().Add(-time.Second),
			wantLevel: "warn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tc := &Context{Logger: logger.NewWithWriter(&buf, "debug", nil), Vendor: "postgresql", Settings: NewSettings(tt.cfg)}

			TrackDBOperation(context.Background(), tc, testQuerySelectUsers, nil, tt.start, 0, tt.err)

			lines := decodeLogLines(t, &buf)
			require.Len(t, lines, 1)
			assert.Equal(t, tt.wantLevel, lines[0]["level"])
			assert.NotContains(t, lines[0], "args")
		})
	}
}

func TestTrackDBOperationCreatesSpan(t *testing.T) {
	exporter := setupTestTracerProvider(t)
	tc := &Context{Logger: logger.Nop(), Vendor: "postgres", Settings: NewSettings(nil)}

	TrackDBOperation(context.Background(), tc, testQueryInsertUsers, nil, time.Now().Add(-5*time.Millisecond), 1, nil)
	TrackDBOperation(context.Background(), tc, OpRollback, nil, time.Now(), 0, errors.New("connection reset"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "db.insert", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "postgresql", attrs["db.system"])
	assert.Equal(t, testQueryInsertUsers, attrs["db.query.text"])
	assert.Equal(t, "insert", attrs["db.operation.name"])

	assert.Equal(t, "db.rollback", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "connection reset", spans[1].Status.Description)
}

func TestNewSettingsDefaults(t *testing.T) {
	s := NewSettings(nil)
	assert.Equal(t, DefaultSlowQueryThreshold, s.SlowQueryThreshold())
	assert.Equal(t, DefaultMaxQueryLength, s.MaxQueryLength())
	assert.False(t, s.LogQueryParameters())

	s = NewSettings(&config.DatabaseConfig{Query: config.QueryConfig{SlowThreshold: time.Second, MaxLength: 50, LogParameters: true}})
	assert.Equal(t, time.Second, s.SlowQueryThreshold())
	assert.Equal(t, 50, s.MaxQueryLength())
	assert.True(t, s.LogQueryParameters())
}
