package postgres

import (
	"context"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// cursor is a named server-side prepared statement.
type cursor struct {
	session *Session
	spec    dbms.CursorSpec
	name    string

	rows    [][]any
	current int
}

func (c *cursor) Execute(ctx context.Context, args []any) error {
	_ = c.Reset()
	s := c.session
	if s.closed() {
		return notOpen()
	}

	if c.spec.Outputs == 0 {
		_, err := s.conn.Exec(ctx, c.name, args...)
		return toNative(err, s.closed())
	}

	rows, err := s.conn.Query(ctx, c.name, args...)
	if err != nil {
		return toNative(err, s.closed())
	}
	defer rows.Close()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return toNative(err, s.closed())
		}
		c.rows = append(c.rows, values)
	}
	if err := rows.Err(); err != nil {
		c.rows = nil
		return toNative(err, s.closed())
	}
	if len(c.rows) == 0 {
		return noData()
	}
	return nil
}

func (c *cursor) Next(context.Context) (bool, error) {
	if c.current >= len(c.rows) {
		_ = c.Reset()
		return false, nil
	}
	c.current++
	return true, nil
}

// Scan copies the current row into *any destinations.
func (c *cursor) Scan(dest []any) error {
	if c.current == 0 || c.current > len(c.rows) {
		return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeUnknown, Message: "scan without a current row"}
	}
	row := c.rows[c.current-1]
	for i, d := range dest {
		p, ok := d.(*any)
		if !ok {
			return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeUnknown, Message: "destination must be *any"}
		}
		if i < len(row) {
			*p = row[i]
		}
	}
	return nil
}

func (c *cursor) Reset() error {
	c.rows = nil
	c.current = 0
	return nil
}

func (c *cursor) Close() error {
	_ = c.Reset()
	s := c.session
	if s.closed() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return toNative(s.conn.Deallocate(ctx, c.name), s.closed())
}
