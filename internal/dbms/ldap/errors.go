package ldap

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/go-ldap/ldap/v3"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// Expression errors. Use errors.Is() to check for these errors in calling code.
var (
	// ErrBadExpression is returned when a statement expression cannot be parsed.
	ErrBadExpression = errors.New("ldap: bad statement expression")

	// ErrPlaceholder is returned when a {n} placeholder has no bound input.
	ErrPlaceholder = errors.New("ldap: placeholder out of range")
)

// toNative converts a go-ldap error into a *dbms.NativeError carrying
// the LDAP result code.
func toNative(err error, closed bool) error {
	if err == nil {
		return nil
	}
	var le *ldap.Error
	if errors.As(err, &le) {
		code := int(le.ResultCode)
		if closed && code != CodeNetwork {
			code = dbms.CodeDisconnected
		}
		return &dbms.NativeError{Backend: BackendName, Code: code, Message: ldap.LDAPResultCodeMap[le.ResultCode], Err: err}
	}
	if closed {
		return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeDisconnected, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeUnknown, Err: err}
}

func notOpen() error {
	return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeDisconnected, Message: "session not open"}
}

func noData() error {
	return &dbms.NativeError{Backend: BackendName, Code: CodeNoSuchObject, Message: "no entries"}
}
