package postgres

import (
	"context"
	"io"
	"net"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// toNative converts a pgx error into a *dbms.NativeError carrying the
// folded SQLSTATE. closed reports whether the session's connection is gone.
func toNative(err error, closed bool) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &dbms.NativeError{Backend: BackendName, Code: Code(pgErr.Code), Message: pgErr.Message, Err: err}
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return &dbms.NativeError{Backend: BackendName, Code: Code(StateUnableToConnect), Message: "unable to connect", Err: err}
	}
	if closed || isDisconnect(err) {
		return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeDisconnected, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeUnknown, Err: err}
}

func isDisconnect(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func notOpen() error {
	return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeDisconnected, Message: "session not open"}
}

func noData() error {
	return &dbms.NativeError{Backend: BackendName, Code: Code(StateNoData), Message: "no rows"}
}
