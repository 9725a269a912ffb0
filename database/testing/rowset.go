package testing

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// RowSet is an in-memory result set served by FakeConn for matching queries.
//
//	rows := NewRowSet("id", "name").
//	    AddRow(1, "Alice").
//	    AddRow(2, "Bob")
//
//	conn.WillReturnRows("FROM users", rows)
//
// Integer values are widened to int64 and pointers are dereferenced, the way a driver
// reports them.
type RowSet struct {
	columns []string
	rows    [][]driver.Value
}

// NewRowSet creates a RowSet with the given column names.
func NewRowSet(columns ...string) *RowSet {
	return &RowSet{columns: columns}
}

// AddRow appends one row. It panics when the value count does not match the columns or a
// value has no driver representation.
func (rs *RowSet) AddRow(values ...any) *RowSet {
	if len(values) != len(rs.columns) {
		panic(fmt.Sprintf("AddRow: expected %d values for columns %v, got %d", len(rs.columns), rs.columns, len(values)))
	}
	row := make([]driver.Value, len(values))
	for i, v := range values {
		dv, err := driverValue(v)
		if err != nil {
			panic(fmt.Sprintf("AddRow: column %s: %v", rs.columns[i], err))
		}
		row[i] = dv
	}
	rs.rows = append(rs.rows, row)
	return rs
}

// AddRows appends count rows produced by gen.
func (rs *RowSet) AddRows(count int, gen func(i int) []any) *RowSet {
	for i := range count {
		rs.AddRow(gen(i)...)
	}
	return rs
}

// RowCount returns the number of rows.
func (rs *RowSet) RowCount() int {
	return len(rs.rows)
}

// Columns returns the column names.
func (rs *RowSet) Columns() []string {
	return append([]string(nil), rs.columns...)
}

// toSQLRows serves the RowSet as *sql.Rows from a private sqlmock connection. The mock
// database is closed right away; the rows keep their connection until they are closed.
func (rs *RowSet) toSQLRows() (*sql.Rows, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows := mock.NewRows(rs.columns)
	for _, row := range rs.rows {
		rows.AddRow(row...)
	}
	mock.ExpectQuery(".*").WillReturnRows(rows)
	mock.ExpectClose()

	return db.Query("rowset")
}

func driverValue(v any) (driver.Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return append([]byte(nil), val...), nil
	case time.Time:
		return val, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return driverValue(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	}

	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}
