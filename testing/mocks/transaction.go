package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/transaction"
)

// MockTransaction provides a testify-based mock implementation of transaction.Transaction.
//
// Example usage:
//
//	tx := &mocks.MockTransaction{}
//	tx.ExpectConnection(conn)
//	tx.On("Commit", mock.Anything).Return(nil)
type MockTransaction struct {
	mock.Mock
}

var _ transaction.Transaction = (*MockTransaction)(nil)

// Connection implements transaction.Transaction
func (m *MockTransaction) Connection(ctx context.Context) (types.Connection, error) {
	arguments := m.Called(ctx)
	if arguments.Get(0) == nil {
		return nil, arguments.Error(1)
	}
	return arguments.Get(0).(types.Connection), arguments.Error(1)
}

// Commit implements transaction.Transaction
func (m *MockTransaction) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Rollback implements transaction.Transaction
func (m *MockTransaction) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Close implements transaction.Transaction
func (m *MockTransaction) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// ExpectConnection makes every Connection call return conn.
func (m *MockTransaction) ExpectConnection(conn types.Connection) *mock.Call {
	return m.On("Connection", mock.Anything).Return(conn, nil)
}

// ExpectLifecycle sets up Commit, Rollback and Close to succeed any number of times.
func (m *MockTransaction) ExpectLifecycle() {
	m.On("Commit", mock.Anything).Return(nil).Maybe()
	m.On("Rollback", mock.Anything).Return(nil).Maybe()
	m.On("Close", mock.Anything).Return(nil).Maybe()
}

// MockTransactionFactory provides a testify-based mock implementation of transaction.Factory.
type MockTransactionFactory struct {
	mock.Mock
}

var _ transaction.Factory = (*MockTransactionFactory)(nil)

// NewTransaction implements transaction.Factory
func (m *MockTransactionFactory) NewTransaction(ds types.DataSource, level types.IsolationLevel, autoCommit bool) transaction.Transaction {
	return m.Called(ds, level, autoCommit).Get(0).(transaction.Transaction)
}

// NewTransactionFromConnection implements transaction.Factory
func (m *MockTransactionFactory) NewTransactionFromConnection(conn types.Connection) transaction.Transaction {
	return m.Called(conn).Get(0).(transaction.Transaction)
}
