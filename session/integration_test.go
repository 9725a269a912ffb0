//go:build integration

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-sqlsession/config"
	"github.com/gaborage/go-sqlsession/database"
	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/executor"
	"github.com/gaborage/go-sqlsession/logger"
	"github.com/gaborage/go-sqlsession/testing/containers"
	"github.com/gaborage/go-sqlsession/transaction"
)

func TestPostgreSQLSessions(t *testing.T) {
	ctx := context.Background()
	pg := containers.MustStartPostgreSQLContainer(ctx, t, nil)

	ds, err := database.NewDataSource(ctx, config.DefaultEnvironment, pg.DatabaseConfig(), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	_, err = ds.DB().ExecContext(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)")
	require.NoError(t, err)

	t.Run("managed rollback", func(t *testing.T) {
		factory := newDataSourceFactory(t, ds, transaction.NewManagedFactory())

		s, err := factory.OpenSession(ctx, WithAutoCommit(false))
		require.NoError(t, err)
		n, err := s.Update(ctx, "users.insertUser", map[string]any{"id": 1, "name": "a"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		row, err := s.SelectOne(ctx, "users.selectById", map[string]any{"id": 1})
		require.NoError(t, err)
		assert.Equal(t, "a", row.(map[string]any)["name"])

		require.NoError(t, s.Rollback(ctx, false))
		require.NoError(t, s.Close(ctx))

		s, err = factory.OpenSession(ctx)
		require.NoError(t, err)
		defer s.Close(ctx)
		row, err = s.SelectOne(ctx, "users.selectById", 1)
		require.NoError(t, err)
		assert.Nil(t, row)
	})

	for _, kind := range []executor.Kind{executor.KindSimple, executor.KindReuse, executor.KindBatch} {
		t.Run("self managed "+kind.String(), func(t *testing.T) {
			_, err := ds.DB().ExecContext(ctx, "DELETE FROM users")
			require.NoError(t, err)
			factory := newDataSourceFactory(t, ds, transaction.NewSelfManagedFactory())

			s, err := factory.OpenSession(ctx, WithExecutorKind(kind), WithIsolationLevel(types.IsolationSerializable))
			require.NoError(t, err)
			_, err = s.Insert(ctx, "users.insertUser", map[string]any{"id": 10, "name": "kept"})
			require.NoError(t, err)
			require.NoError(t, s.Commit(ctx, false))
			_, err = s.Insert(ctx, "users.insertUser", map[string]any{"id": 11, "name": "dropped"})
			require.NoError(t, err)
			require.NoError(t, s.Rollback(ctx, false))
			require.NoError(t, s.Close(ctx))

			var count int
			require.NoError(t, ds.DB().QueryRowContext(ctx, "SELECT count(*) FROM users").Scan(&count))
			assert.Equal(t, 1, count)
		})
	}
}
