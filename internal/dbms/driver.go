package dbms

import (
	"context"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
)

// Driver is implemented by each backend. It is the only backend type the
// core sees at construction; everything else is reached through it.
type Driver interface {
	// Name identifies the backend in errors and logs ("sqlite", "postgres", ...).
	Name() string
	// Interpreter returns the backend's native code classification.
	Interpreter() ErrorCodeInterpreter
	// NewSession returns an unopened session. name is the owning connection's name.
	NewSession(name string) Session
	// NewInput returns a binder encoding v into a native call.
	NewInput(v datatype.Value) Input
	// NewOutput returns a binder decoding a native column into v.
	NewOutput(v datatype.Value) Output
}

// Session is one native session. Failures should be returned as
// *NativeError so they can be classified; any other error classifies as
// OutcomeOther.
type Session interface {
	Open(ctx context.Context) error
	// Close must be safe to call on a session that never opened or was lost.
	Close() error

	// Backends without transactions return nil from all three.
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Prepare(ctx context.Context, spec CursorSpec) (Cursor, error)
}

// CursorSpec describes what a statement needs from a cursor.
type CursorSpec struct {
	// Name is the statement name, usable as a server-side identifier.
	Name       string
	Expression string
	// Inputs and Outputs are the number of bound binders in each direction.
	Inputs  int
	Outputs int
}

// Cursor is a prepared native statement.
type Cursor interface {
	// Execute runs the statement with encoded input arguments. A statement
	// with outputs that yields no row must fail with the backend's no-data
	// code.
	Execute(ctx context.Context, args []any) error
	// Next advances to the next row. The first call after Execute returns
	// the first row.
	Next(ctx context.Context) (bool, error)
	// Scan copies the current row into the output destinations.
	Scan(dest []any) error
	// Reset discards any pending result so the session is free again.
	Reset() error
	Close() error
}
