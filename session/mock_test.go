package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/mapping"
	"github.com/gaborage/go-sqlsession/testing/mocks"
)

func newMockedFactory(t *testing.T, ds types.DataSource, txf *mocks.MockTransactionFactory) *Factory {
	t.Helper()
	env, err := mapping.NewEnvironment("mocked", ds, txf)
	require.NoError(t, err)
	cfg := NewConfiguration(env)
	registerUsers(t, cfg)
	return NewFactory(cfg)
}

func TestOpenSessionHandsOptionsToTransactionFactory(t *testing.T) {
	ctx := context.Background()
	ds := &mocks.MockDataSource{}

	tx := &mocks.MockTransaction{}
	tx.On("Rollback", mock.Anything).Return(nil).Once()
	tx.On("Close", mock.Anything).Return(nil).Once()

	txf := &mocks.MockTransactionFactory{}
	txf.On("NewTransaction", ds, types.IsolationSerializable, false).Return(tx).Once()

	factory := newMockedFactory(t, ds, txf)
	s, err := factory.OpenSession(ctx, WithIsolationLevel(types.IsolationSerializable))
	require.NoError(t, err)
	assert.False(t, s.AutoCommit())

	require.NoError(t, s.Rollback(ctx, false))
	require.NoError(t, s.Rollback(ctx, true))
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))

	txf.AssertExpectations(t)
	tx.AssertExpectations(t)
	tx.AssertNotCalled(t, "Connection", mock.Anything)
	ds.AssertNotCalled(t, "Open", mock.Anything)
}

func TestOpenSessionOnCallerConnection(t *testing.T) {
	ctx := context.Background()
	conn := &mocks.MockConnection{}
	conn.On("AutoCommit").Return(true, nil)

	tx := &mocks.MockTransaction{}
	tx.On("Close", mock.Anything).Return(nil).Once()

	txf := &mocks.MockTransactionFactory{}
	txf.On("NewTransactionFromConnection", conn).Return(tx).Once()

	factory := newMockedFactory(t, &mocks.MockDataSource{}, txf)
	s, err := factory.OpenSession(ctx, WithConnection(conn), WithAutoCommit(false))
	require.NoError(t, err)
	assert.True(t, s.AutoCommit())

	require.NoError(t, s.Close(ctx))
	txf.AssertExpectations(t)
	tx.AssertExpectations(t)
	txf.AssertNotCalled(t, "NewTransaction", mock.Anything, mock.Anything, mock.Anything)
}
