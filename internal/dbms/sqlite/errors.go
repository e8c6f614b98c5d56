package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// toNative converts a database/sql or go-sqlite3 error to a
// *dbms.NativeError carrying the SQLite primary result code.
func toNative(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return &dbms.NativeError{Backend: BackendName, Code: int(se.Code), Message: se.Error(), Err: err}
	}
	if IsDatabaseClosed(err) {
		return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeDisconnected, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeUnknown, Err: err}
}

func noData() error {
	return &dbms.NativeError{Backend: BackendName, Code: CodeDone, Message: "no rows"}
}

// IsDatabaseClosed reports whether err means the session's handle is gone.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	// Fallback: errors that reach us as plain text from database/sql.
	msg := err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "connection is already closed")
}
