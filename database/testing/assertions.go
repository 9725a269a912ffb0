package testing

import (
	"fmt"
	"strings"
	"testing"
)

// AssertAllReleased asserts that every connection handed out by ds was closed exactly once.
//
//	ds := NewFakeDataSource(dbtypes.PostgreSQL)
//	// ... open and close sessions ...
//	AssertAllReleased(t, ds)
func AssertAllReleased(t *testing.T, ds *FakeDataSource) {
	t.Helper()
	for i, conn := range ds.Connections() {
		if n := conn.Closes(); n != 1 {
			t.Errorf("connection %d closed %d times, expected exactly once", i, n)
		}
	}
}

// AssertNoOpenStatements asserts that every statement prepared on conn was closed.
func AssertNoOpenStatements(t *testing.T, conn *FakeConnection) {
	t.Helper()
	if n := conn.OpenStatements(); n != 0 {
		t.Errorf("expected all statements closed, %d still open\nPrepared:\n%s", n, formatSQL(conn.Prepares()))
	}
}

// AssertCommittedCount asserts that exactly n writes matching sqlPattern were committed.
func AssertCommittedCount(t *testing.T, conn *FakeConnection, sqlPattern string, n int) {
	t.Helper()
	committed := conn.Committed()
	count := 0
	for _, call := range committed {
		if strings.Contains(call.SQL, sqlPattern) {
			count++
		}
	}
	if count != n {
		t.Errorf("expected %d committed writes matching %q, found %d\nCommitted:\n%s",
			n, sqlPattern, count, formatCalls(committed))
	}
}

// AssertNothingCommitted asserts that no write reached the committed log.
func AssertNothingCommitted(t *testing.T, conn *FakeConnection) {
	t.Helper()
	if committed := conn.Committed(); len(committed) > 0 {
		t.Errorf("expected no committed writes, found:\n%s", formatCalls(committed))
	}
}

func formatSQL(statements []string) string {
	if len(statements) == 0 {
		return "  (none)"
	}
	var b strings.Builder
	for i, s := range statements {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s)
	}
	return b.String()
}

func formatCalls(calls []ExecCall) string {
	if len(calls) == 0 {
		return "  (none)"
	}
	var b strings.Builder
	for i, c := range calls {
		fmt.Fprintf(&b, "  %d. %s %v\n", i+1, c.SQL, c.Args)
	}
	return b.String()
}
