package mapping

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int64
	Name string
}

func TestResultMappers(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	columns := []string{"id", "name"}
	mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(
		sqlmock.NewRows(columns).AddRow(int64(1), []byte("ann")).AddRow(int64(2), "bo"),
	)
	mock.ExpectQuery("SELECT name FROM users").WillReturnRows(
		sqlmock.NewRows([]string{"name"}).AddRow([]byte("ann")).AddRow("bo"),
	)
	mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(
		sqlmock.NewRows(columns).AddRow(int64(3), "cy"),
	)

	rows, err := db.Query("SELECT id, name FROM users")
	require.NoError(t, err)
	got, err := MapRows(rows)
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	assert.Equal(t, []any{
		map[string]any{"id": int64(1), "name": "ann"},
		map[string]any{"id": int64(2), "name": "bo"},
	}, got)

	rows, err = db.Query("SELECT name FROM users")
	require.NoError(t, err)
	got, err = MapScalar(rows)
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	assert.Equal(t, []any{"ann", "bo"}, got)

	rows, err = db.Query("SELECT id, name FROM users")
	require.NoError(t, err)
	got, err = RowsOf(func(s Scanner) (user, error) {
		var u user
		err := s.Scan(&u.ID, &u.Name)
		return u, err
	})(rows)
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	assert.Equal(t, []any{user{ID: 3, Name: "cy"}}, got)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMappedStatementDefaults(t *testing.T) {
	ms := NewMappedStatement("", "ping", KindSelect, "SELECT #{v}")
	assert.Equal(t, "ping", ms.ID)
	assert.NotNil(t, ms.Mapper())

	bound, err := ms.Bind("postgresql", 1)
	require.NoError(t, err)
	assert.Equal(t, "SELECT $1", bound.SQL)
}
