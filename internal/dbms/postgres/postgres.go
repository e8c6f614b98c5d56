package postgres

import (
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// BackendName identifies this backend in errors and configuration.
const BackendName = "postgres"

// DefaultConnectTimeout bounds opening one session.
const DefaultConnectTimeout = 10 * time.Second

// sqlStateLen is the length of every SQLSTATE.
const sqlStateLen = 5

// SQLSTATE values the interpreter classifies.
const (
	StateSuccess              = "00000"
	StateNoData               = "02000"
	StateNoDataFound          = "P0002"
	StateLockNotAvailable     = "55P03"
	StateDeadlockDetected     = "40P01"
	StateSerializationFailure = "40001"
	StateUnableToConnect      = "08001"
	StateAdminShutdown        = "57P01"
	StateCrashShutdown        = "57P02"
	StateCannotConnectNow     = "57P03"
)

// Code folds a SQLSTATE into the integer carried by dbms.ResultCode. An
// invalid state returns dbms.CodeUnknown.
func Code(state string) int {
	if len(state) != sqlStateLen {
		return dbms.CodeUnknown
	}
	n, err := strconv.ParseInt(state, 36, 64)
	if err != nil {
		return dbms.CodeUnknown
	}
	return int(n)
}

// SQLState is the inverse of Code.
func SQLState(code int) string {
	if code < 0 {
		return ""
	}
	s := strings.ToUpper(strconv.FormatInt(int64(code), 36))
	if len(s) < sqlStateLen {
		s = strings.Repeat("0", sqlStateLen-len(s)) + s
	}
	return s
}

// Interpreter classifies folded SQLSTATE codes.
var Interpreter = dbms.InterpreterFunc(func(code int) dbms.Outcome {
	if code == dbms.CodeDisconnected {
		return dbms.OutcomeLostConnection
	}
	state := SQLState(code)
	switch state {
	case StateSuccess:
		return dbms.OutcomeSuccessful
	case StateNoData, StateNoDataFound:
		return dbms.OutcomeNotFound
	case StateLockNotAvailable, StateDeadlockDetected, StateSerializationFailure:
		return dbms.OutcomeLocked
	case StateAdminShutdown, StateCrashShutdown, StateCannotConnectNow:
		return dbms.OutcomeLostConnection
	}
	if strings.HasPrefix(state, "08") {
		return dbms.OutcomeLostConnection
	}
	return dbms.OutcomeOther
})

// Config contains PostgreSQL session options.
type Config struct {
	// DSN is a libpq connection string or postgres:// URL.
	DSN string
	// ConnectTimeout bounds opening one session; zero uses DefaultConnectTimeout.
	ConnectTimeout time.Duration
}

// Driver implements dbms.Driver for PostgreSQL.
type Driver struct {
	cfg Config
}

// New creates a PostgreSQL driver.
func New(cfg Config) *Driver {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return &Driver{cfg: cfg}
}

func (d *Driver) Name() string                           { return BackendName }
func (d *Driver) Interpreter() dbms.ErrorCodeInterpreter { return Interpreter }

// NewSession implements dbms.Driver.
func (d *Driver) NewSession(name string) dbms.Session {
	return &Session{driver: d, name: name}
}

// NewInput implements dbms.Driver.
func (d *Driver) NewInput(v datatype.Value) dbms.Input { return dbms.NewGenericInput(v) }

// NewOutput implements dbms.Driver. Long blocks get a large-object binder.
func (d *Driver) NewOutput(v datatype.Value) dbms.Output {
	if v.Kind() == datatype.KindLongBlock {
		return newLOBOutput(v)
	}
	return dbms.NewGenericOutput(v)
}
