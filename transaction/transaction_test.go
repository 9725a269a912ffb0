package transaction

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbtest "github.com/gaborage/go-sqlsession/database/testing"
	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/logger"
)

var errBoom = errors.New("boom")

func TestFactoriesImplementInterface(t *testing.T) {
	var _ Factory = NewManagedFactory()
	var _ Factory = NewSelfManagedFactory()
}

func TestConnectionIsLazyAndIdempotent(t *testing.T) {
	ctx := context.Background()
	factories := map[string]Factory{
		"managed":      NewManagedFactory(),
		"self_managed": NewSelfManagedFactory(),
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ds := dbtest.NewFakeDataSource(types.PostgreSQL)
			tx := factory.NewTransaction(ds, types.IsolationSerializable, false)
			assert.Equal(t, 0, ds.Opened())

			first, err := tx.Connection(ctx)
			require.NoError(t, err)
			second, err := tx.Connection(ctx)
			require.NoError(t, err)

			assert.Same(t, first, second)
			assert.Equal(t, 1, ds.Opened())

			conn := ds.Last()
			assert.Equal(t, types.IsolationSerializable, conn.IsolationLevel())
			assert.Equal(t, []bool{false}, conn.AutoCommitCalls())

			require.NoError(t, tx.Close(ctx))
			dbtest.AssertAllReleased(t, ds)
		})
	}
}

func TestAutoCommitNotSwitchedWhenAlreadyMatching(t *testing.T) {
	ctx := context.Background()
	ds := dbtest.NewFakeDataSource(types.SQLite)
	tx := NewSelfManagedFactory().NewTransaction(ds, types.IsolationUnset, true)

	_, err := tx.Connection(ctx)
	require.NoError(t, err)

	conn := ds.Last()
	assert.Empty(t, conn.AutoCommitCalls())
	assert.Equal(t, types.IsolationUnset, conn.IsolationLevel())
}

func TestAcquisitionFailure(t *testing.T) {
	ctx := context.Background()
	ds := dbtest.NewFakeDataSource(types.MySQL).FailOpen(errBoom)

	for _, factory := range []Factory{NewManagedFactory(), NewSelfManagedFactory()} {
		tx := factory.NewTransaction(ds, types.IsolationUnset, false)
		_, err := tx.Connection(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrAcquisition)
		assert.ErrorIs(t, err, errBoom)
		assert.NoError(t, tx.Close(ctx))
	}
}

func TestSettingsFailureReleasesConnection(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		op   dbtest.Op
	}{
		{name: "isolation", op: dbtest.OpSetIsolation},
		{name: "auto_commit", op: dbtest.OpSetAutoCommit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := dbtest.NewFakeDataSource(types.Oracle).WithSetup(func(c *dbtest.FakeConnection) {
				c.FailOn(tt.op, errBoom)
			})
			tx := NewSelfManagedFactory().NewTransaction(ds, types.IsolationReadCommitted, false)

			_, err := tx.Connection(ctx)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrAcquisition)
			dbtest.AssertAllReleased(t, ds)
		})
	}
}

func TestManagedCommitAndRollbackAreNoOps(t *testing.T) {
	ctx := context.Background()
	ds := dbtest.NewFakeDataSource(types.PostgreSQL)
	tx := NewManagedFactory().NewTransaction(ds, types.IsolationUnset, false)

	_, err := tx.Connection(ctx)
	require.NoError(t, err)

	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	conn := ds.Last()
	assert.Equal(t, 0, conn.Commits())
	assert.Equal(t, 0, conn.Rollbacks())
}

func TestManagedCloseConnectionFlag(t *testing.T) {
	ctx := context.Background()

	t.Run("default_releases", func(t *testing.T) {
		ds := dbtest.NewFakeDataSource(types.PostgreSQL)
		tx := NewManagedFactory().NewTransaction(ds, types.IsolationUnset, true)
		_, err := tx.Connection(ctx)
		require.NoError(t, err)

		require.NoError(t, tx.Close(ctx))
		require.NoError(t, tx.Close(ctx))
		assert.Equal(t, 1, ds.Last().Closes())
	})

	t.Run("disabled_keeps_connection", func(t *testing.T) {
		conn := dbtest.NewFakeConnection(types.PostgreSQL)
		tx := NewManagedFactory(WithCloseConnection(false)).NewTransactionFromConnection(conn)

		got, err := tx.Connection(ctx)
		require.NoError(t, err)
		assert.Same(t, conn, got)

		require.NoError(t, tx.Close(ctx))
		assert.False(t, conn.IsClosed())
	})
}

func TestManagedCloseFailure(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewFakeConnection(types.SQLite).FailOn(dbtest.OpClose, errBoom)
	tx := NewManagedFactory().NewTransactionFromConnection(conn)

	err := tx.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransaction)
	assert.ErrorIs(t, err, errBoom)
}

func TestSelfManagedCommitsWhenManual(t *testing.T) {
	ctx := context.Background()
	ds := dbtest.NewFakeDataSource(types.PostgreSQL)
	tx := NewSelfManagedFactory().NewTransaction(ds, types.IsolationUnset, false)

	conn, err := tx.Connection(ctx)
	require.NoError(t, err)
	stmt, err := conn.Prepare(ctx, "INSERT INTO orders (id) VALUES (?)")
	require.NoError(t, err)
	_, err = stmt.Exec(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, stmt.Close())

	require.NoError(t, tx.Commit(ctx))
	fake := ds.Last()
	assert.Equal(t, 1, fake.Commits())
	dbtest.AssertCommittedCount(t, fake, "INSERT INTO orders", 1)

	require.NoError(t, tx.Rollback(ctx))
	assert.Equal(t, 1, fake.Rollbacks())
}

func TestSelfManagedSkipsBoundariesInAutoCommit(t *testing.T) {
	ctx := context.Background()
	ds := dbtest.NewFakeDataSource(types.PostgreSQL)
	tx := NewSelfManagedFactory().NewTransaction(ds, types.IsolationUnset, true)

	_, err := tx.Connection(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	fake := ds.Last()
	assert.Equal(t, 0, fake.Commits())
	assert.Equal(t, 0, fake.Rollbacks())
}

func TestSelfManagedBoundariesWithoutConnection(t *testing.T) {
	ctx := context.Background()
	ds := dbtest.NewFakeDataSource(types.PostgreSQL)
	tx := NewSelfManagedFactory().NewTransaction(ds, types.IsolationUnset, false)

	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Close(ctx))
	assert.Equal(t, 0, ds.Opened())
}

func TestSelfManagedUnreadableAutoCommitStillCommits(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewFakeConnection(types.Oracle).FailOn(dbtest.OpAutoCommit, errBoom)
	tx := NewSelfManagedFactory().NewTransactionFromConnection(conn)

	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))
	assert.Equal(t, 1, conn.Commits())
	assert.Equal(t, 1, conn.Rollbacks())
}

func TestSelfManagedCommitFailure(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewFakeConnection(types.MySQL)
	require.NoError(t, conn.SetAutoCommit(ctx, false))
	conn.FailOn(dbtest.OpCommit, errBoom).FailOn(dbtest.OpRollback, errBoom)
	tx := NewSelfManagedFactory().NewTransactionFromConnection(conn)

	err := tx.Commit(ctx)
	assert.ErrorIs(t, err, types.ErrTransaction)
	assert.ErrorIs(t, err, errBoom)

	err = tx.Rollback(ctx)
	assert.ErrorIs(t, err, types.ErrTransaction)
}

func TestSelfManagedCloseResetsAutoCommit(t *testing.T) {
	ctx := context.Background()
	ds := dbtest.NewFakeDataSource(types.PostgreSQL)
	tx := NewSelfManagedFactory().NewTransaction(ds, types.IsolationUnset, false)

	_, err := tx.Connection(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Close(ctx))

	fake := ds.Last()
	assert.Equal(t, []bool{false, true}, fake.AutoCommitCalls())
	assert.True(t, fake.IsClosed())
}

func TestSelfManagedSkipAutoCommitReset(t *testing.T) {
	ctx := context.Background()
	ds := dbtest.NewFakeDataSource(types.PostgreSQL)
	tx := NewSelfManagedFactory(WithSkipAutoCommitReset(true)).NewTransaction(ds, types.IsolationUnset, false)

	_, err := tx.Connection(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Close(ctx))

	fake := ds.Last()
	assert.Equal(t, []bool{false}, fake.AutoCommitCalls())
	assert.True(t, fake.IsClosed())
}

func TestSelfManagedCloseSwallowsResetError(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "debug", nil)

	conn := dbtest.NewFakeConnection(types.PostgreSQL)
	require.NoError(t, conn.SetAutoCommit(ctx, false))
	conn.FailOn(dbtest.OpSetAutoCommit, errBoom)

	tx := NewSelfManagedFactory(WithLogger(log)).NewTransactionFromConnection(conn)
	require.NoError(t, tx.Close(ctx))
	assert.True(t, conn.IsClosed())
	assert.True(t, strings.Contains(buf.String(), "Error resetting auto-commit"))
}

func TestSelfManagedCloseReturnsPhysicalError(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewFakeConnection(types.PostgreSQL).FailOn(dbtest.OpClose, errBoom)
	tx := NewSelfManagedFactory().NewTransactionFromConnection(conn)

	err := tx.Close(ctx)
	assert.ErrorIs(t, err, types.ErrTransaction)
	assert.ErrorIs(t, err, errBoom)

	assert.NoError(t, tx.Close(ctx))
	assert.Equal(t, 1, conn.Closes())
}

func TestOperationsAfterCloseAreUsageErrors(t *testing.T) {
	ctx := context.Background()

	for _, factory := range []Factory{NewManagedFactory(), NewSelfManagedFactory()} {
		tx := factory.NewTransactionFromConnection(dbtest.NewFakeConnection(types.SQLite))
		require.NoError(t, tx.Close(ctx))

		_, err := tx.Connection(ctx)
		assert.ErrorIs(t, err, types.ErrUsage)
		assert.ErrorIs(t, tx.Commit(ctx), types.ErrUsage)
		assert.ErrorIs(t, tx.Rollback(ctx), types.ErrUsage)
		assert.NoError(t, tx.Close(ctx))
	}
}

func TestDebugLogging(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "debug", nil)

	ds := dbtest.NewFakeDataSource(types.PostgreSQL)
	tx := NewSelfManagedFactory(WithLogger(log)).NewTransaction(ds, types.IsolationUnset, false)
	_, err := tx.Connection(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Close(ctx))

	out := buf.String()
	assert.Contains(t, out, "Opening connection")
	assert.Contains(t, out, "Committing connection")
	assert.Contains(t, out, "Closing connection")
}

func TestMissingDataSourceIsAcquisitionError(t *testing.T) {
	ctx := context.Background()
	for _, factory := range []Factory{NewManagedFactory(), NewSelfManagedFactory()} {
		tx := factory.NewTransaction(nil, types.IsolationUnset, false)
		_, err := tx.Connection(ctx)
		assert.ErrorIs(t, err, types.ErrAcquisition)
		assert.ErrorIs(t, err, errNoDataSource)
		assert.NoError(t, tx.Close(ctx))
	}
}
