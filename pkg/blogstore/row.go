package blogstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Row is an untyped column/value projection of a single record. Values are
// rendered to strings; NULL columns render as "".
type Row map[string]string

// Get returns the named column. Asking for a column the projection does
// not contain is a schema-level programming error and panics rather than
// returning a recoverable failure.
func (r Row) Get(field string) string {
	value, ok := r[field]
	if !ok {
		panic(fmt.Sprintf("blogstore: projected row has no column %q", field))
	}
	return value
}

// Has reports whether the projection contains the named column.
func (r Row) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// UserRow returns the full users row for the named user as an untyped
// projection, or nil if no such user exists.
func (s *Store) UserRow(ctx context.Context, username string) (Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM users WHERE username = ?`, username)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	values := make([]sql.NullString, len(columns))
	scan := make([]any, len(columns))
	for i := range values {
		scan[i] = &values[i]
	}
	if err = rows.Scan(scan...); err != nil {
		// Numeric columns scan cleanly into NullString with the sqlite
		// drivers; anything else here is a real failure.
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	row := make(Row, len(columns))
	for i, col := range columns {
		row[col] = values[i].String
	}
	return row, nil
}
