package mapping

import (
	"database/sql"
	"fmt"
)

// ResultMapper converts every row of rows. It must not close rows.
type ResultMapper func(rows *sql.Rows) ([]any, error)

// Scanner is the subset of *sql.Rows a row function needs.
type Scanner interface {
	Scan(dest ...any) error
}

// MapRows maps each row to a map[string]any keyed by column name.
// []byte values are converted to string.
func MapRows(rows *sql.Rows) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var results []any
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// MapScalar maps each row to the value of its first column.
func MapScalar(rows *sql.Rows) ([]any, error) {
	var results []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// RowsOf builds a ResultMapper from a typed row function.
func RowsOf[T any](fn func(Scanner) (T, error)) ResultMapper {
	return func(rows *sql.Rows) ([]any, error) {
		var results []any
		for rows.Next() {
			v, err := fn(rows)
			if err != nil {
				return nil, fmt.Errorf("failed to map row: %w", err)
			}
			results = append(results, v)
		}
		return results, rows.Err()
	}
}
