package mocks

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/go-sqlsession/database/types"
)

// MockConnection provides a testify-based mock implementation of types.Connection.
type MockConnection struct {
	mock.Mock
}

var _ types.Connection = (*MockConnection)(nil)

// Prepare implements types.Connection
func (m *MockConnection) Prepare(ctx context.Context, query string) (types.Statement, error) {
	arguments := m.Called(ctx, query)
	if arguments.Get(0) == nil {
		return nil, arguments.Error(1)
	}
	return arguments.Get(0).(types.Statement), arguments.Error(1)
}

// AutoCommit implements types.Connection
func (m *MockConnection) AutoCommit() (bool, error) {
	arguments := m.Called()
	return arguments.Bool(0), arguments.Error(1)
}

// SetAutoCommit implements types.Connection
func (m *MockConnection) SetAutoCommit(ctx context.Context, autoCommit bool) error {
	return m.Called(ctx, autoCommit).Error(0)
}

// SetIsolationLevel implements types.Connection
func (m *MockConnection) SetIsolationLevel(level types.IsolationLevel) error {
	return m.Called(level).Error(0)
}

// Commit implements types.Connection
func (m *MockConnection) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Rollback implements types.Connection
func (m *MockConnection) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Close implements types.Connection
func (m *MockConnection) Close() error {
	return m.Called().Error(0)
}

// Vendor implements types.Connection
func (m *MockConnection) Vendor() string {
	return m.Called().String(0)
}

// ExpectPrepare sets up a Prepare expectation for query returning stmt.
func (m *MockConnection) ExpectPrepare(query string, stmt types.Statement) *mock.Call {
	return m.On("Prepare", mock.Anything, query).Return(stmt, nil)
}

// MockStatement provides a testify-based mock implementation of types.Statement.
type MockStatement struct {
	mock.Mock
}

var _ types.Statement = (*MockStatement)(nil)

// Query implements types.Statement
func (m *MockStatement) Query(ctx context.Context, args ...any) (*sql.Rows, error) {
	arguments := m.Called(append([]any{ctx}, args...)...)
	if arguments.Get(0) == nil {
		return nil, arguments.Error(1)
	}
	return arguments.Get(0).(*sql.Rows), arguments.Error(1)
}

// Exec implements types.Statement
func (m *MockStatement) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	arguments := m.Called(append([]any{ctx}, args...)...)
	if arguments.Get(0) == nil {
		return nil, arguments.Error(1)
	}
	return arguments.Get(0).(sql.Result), arguments.Error(1)
}

// Close implements types.Statement
func (m *MockStatement) Close() error {
	return m.Called().Error(0)
}

// MockDataSource provides a testify-based mock implementation of types.DataSource.
type MockDataSource struct {
	mock.Mock
}

var _ types.DataSource = (*MockDataSource)(nil)

// Open implements types.DataSource
func (m *MockDataSource) Open(ctx context.Context) (types.Connection, error) {
	arguments := m.Called(ctx)
	if arguments.Get(0) == nil {
		return nil, arguments.Error(1)
	}
	return arguments.Get(0).(types.Connection), arguments.Error(1)
}

// Vendor implements types.DataSource
func (m *MockDataSource) Vendor() string {
	return m.Called().String(0)
}
