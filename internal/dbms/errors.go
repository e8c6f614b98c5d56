package dbms

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for pool and statement handling.
//
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrLostConnection matches a *DatabaseError whose native code was
	// classified LostConnection.
	ErrLostConnection = errors.New("dbms: lost connection")

	// ErrLocked matches a *DatabaseError whose native code was classified
	// Locked. Execute itself reports Locked as a ResultCode, not an error.
	ErrLocked = errors.New("dbms: resource locked")

	// ErrClosed is returned when using a closed database.
	ErrClosed = errors.New("dbms: database closed")

	// ErrNoConnection is returned when no connection could be opened or leased.
	ErrNoConnection = errors.New("dbms: no connection available")

	// ErrRecoveryExhausted is returned by checkout when every connection is
	// Broken and has used up its recovery budget.
	ErrRecoveryExhausted = errors.New("dbms: recovery attempts exhausted")

	// ErrStatementNotFound is returned when a statement name is not registered.
	ErrStatementNotFound = errors.New("dbms: statement not registered")

	// ErrDuplicateStatement is returned when registering a name twice.
	ErrDuplicateStatement = errors.New("dbms: statement already registered")

	// ErrStatementInUse is returned when a statement is already leased on
	// the same connection.
	ErrStatementInUse = errors.New("dbms: statement already leased")

	// ErrNotExecuted is returned by Fetch before a successful Execute.
	ErrNotExecuted = errors.New("dbms: statement not executed")

	// ErrFetchExhausted is returned by Fetch after it has reported the end
	// of the result.
	ErrFetchExhausted = errors.New("dbms: fetch after end of result")

	// ErrTransactionActive is returned by Begin inside a transaction.
	ErrTransactionActive = errors.New("dbms: transaction already active")

	// ErrNotLOB is returned by WriteLOB when the output cannot stream a large object.
	ErrNotLOB = errors.New("dbms: output is not a large object")

	// ErrReleased is returned when a guard is used after Release.
	ErrReleased = errors.New("dbms: lease already released")

	// ErrDuplicateDatabase is returned when a registry already holds the name.
	ErrDuplicateDatabase = errors.New("dbms: database already registered")

	// ErrDatabaseNotFound is returned when a registry has no database of that name.
	ErrDatabaseNotFound = errors.New("dbms: database not registered")
)

// Synthetic native codes shared by backends.
const (
	// CodeUnknown is used for failures that carry no native code.
	CodeUnknown = -1
	// CodeDisconnected is used by backends for client-side connection
	// failures (closed handle, network error) that have no server code.
	CodeDisconnected = -2
)

// NativeError is a failure reported by a backend, carrying its native code.
type NativeError struct {
	Backend string
	Code    int
	Message string
	Err     error
}

func (e *NativeError) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("%s: code %d: %v", e.Backend, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: code %d: %s", e.Backend, e.Code, e.Message)
}

func (e *NativeError) Unwrap() error { return e.Err }

// DatabaseError is returned for classified failures. It carries enough
// identity to locate the failing call: backend, database, connection,
// statement and native code.
type DatabaseError struct {
	Op         string
	Backend    string
	Database   string
	Connection string
	Statement  string
	Result     ResultCode
	Err        error
}

func (e *DatabaseError) Error() string {
	var b strings.Builder
	b.WriteString("dbms: ")
	b.WriteString(e.Op)
	if e.Database != "" {
		b.WriteString(" ")
		b.WriteString(e.Database)
		if e.Connection != "" {
			b.WriteString("/")
			b.WriteString(e.Connection)
		}
	}
	if e.Statement != "" {
		fmt.Fprintf(&b, " statement %q", e.Statement)
	}
	fmt.Fprintf(&b, ": %s code %d (%s)", e.Backend, e.Result.Code, e.Result.Outcome)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// Is matches ErrLostConnection and ErrLocked by outcome.
func (e *DatabaseError) Is(target error) bool {
	switch target {
	case ErrLostConnection:
		return e.Result.Outcome == OutcomeLostConnection
	case ErrLocked:
		return e.Result.Outcome == OutcomeLocked
	}
	return false
}

// Code returns the native code of the failure.
func (e *DatabaseError) Code() int { return e.Result.Code }

// nativeCode extracts the native code and message carried by err.
func nativeCode(err error) (code int, message string, ok bool) {
	var ne *NativeError
	if errors.As(err, &ne) {
		msg := ne.Message
		if msg == "" && ne.Err != nil {
			msg = ne.Err.Error()
		}
		return ne.Code, msg, true
	}
	return CodeUnknown, err.Error(), false
}
