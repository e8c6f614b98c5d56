package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// cursor is a prepared SQLite statement. Statements with outputs run as
// queries and prefetch their first row; others run as exec.
type cursor struct {
	spec       dbms.CursorSpec
	stmt       *sql.Stmt
	preparedAt time.Time

	rows     *sql.Rows
	pending  bool
	affected int64
}

func (c *cursor) Execute(ctx context.Context, args []any) error {
	_ = c.Reset()
	c.affected = 0

	if c.spec.Outputs == 0 {
		res, err := c.stmt.ExecContext(ctx, args...)
		if err != nil {
			return toNative(err)
		}
		if n, err := res.RowsAffected(); err == nil {
			c.affected = n
		}
		return nil
	}

	rows, err := c.stmt.QueryContext(ctx, args...)
	if err != nil {
		return toNative(err)
	}
	if !rows.Next() {
		err := rows.Err()
		rows.Close() //nolint:errcheck // Nothing to read
		if err != nil {
			return toNative(err)
		}
		return noData()
	}
	c.rows = rows
	c.pending = true
	return nil
}

func (c *cursor) Next(context.Context) (bool, error) {
	if c.rows == nil {
		return false, nil
	}
	if c.pending {
		c.pending = false
		return true, nil
	}
	if c.rows.Next() {
		return true, nil
	}
	err := c.rows.Err()
	_ = c.Reset()
	return false, toNative(err)
}

func (c *cursor) Scan(dest []any) error {
	if c.rows == nil {
		return &dbms.NativeError{Backend: BackendName, Code: CodeMisuse, Message: "scan without a current row"}
	}
	return toNative(c.rows.Scan(dest...))
}

// RowsAffected returns the row count of the last exec.
func (c *cursor) RowsAffected() int64 { return c.affected }

func (c *cursor) Reset() error {
	if c.rows == nil {
		return nil
	}
	err := c.rows.Close()
	c.rows = nil
	c.pending = false
	return toNative(err)
}

func (c *cursor) Close() error {
	_ = c.Reset()
	return toNative(c.stmt.Close())
}
