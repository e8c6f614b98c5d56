package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// BackendName identifies this backend in errors and configuration.
const BackendName = "sqlite"

// Native result codes used for classification.
const (
	CodeOK       = 0
	CodeBusy     = 5
	CodeLocked   = 6
	CodeIOErr    = 10
	CodeCantOpen = 14
	CodeMisuse   = 21
	CodeNotADB   = 26
	CodeDone     = 101
)

// Session configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout bounds opening and verifying one session.
	connectionTimeout = 5 * time.Second

	// memoryPath opens a private in-memory database per session.
	memoryPath = ":memory:"
)

// Interpreter classifies SQLite result codes.
var Interpreter = dbms.CodeTable{
	CodeOK:                dbms.OutcomeSuccessful,
	CodeDone:              dbms.OutcomeNotFound,
	CodeBusy:              dbms.OutcomeLocked,
	CodeLocked:            dbms.OutcomeLocked,
	CodeIOErr:             dbms.OutcomeLostConnection,
	CodeCantOpen:          dbms.OutcomeLostConnection,
	CodeNotADB:            dbms.OutcomeLostConnection,
	dbms.CodeDisconnected: dbms.OutcomeLostConnection,
}

// Config contains SQLite session options.
type Config struct {
	// Path is the filesystem path to the database file, or ":memory:".
	// The directory will be created if it doesn't exist.
	Path string

	// WALMode enables Write-Ahead Logging for better concurrent access.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int
}

// Opener opens the *sql.DB behind one session.
type Opener func(dsn string) (*sql.DB, error)

// Option configures a Driver.
type Option func(*Driver)

// WithOpener replaces sql.Open, for example with a go-sqlmock database.
func WithOpener(open Opener) Option {
	return func(d *Driver) { d.open = open }
}

// Driver implements dbms.Driver for SQLite.
type Driver struct {
	cfg  Config
	open Opener
}

// New creates a SQLite driver.
func New(cfg Config, opts ...Option) *Driver {
	d := &Driver{
		cfg: cfg,
		open: func(dsn string) (*sql.DB, error) {
			return sql.Open("sqlite3", dsn)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Name() string                           { return BackendName }
func (d *Driver) Interpreter() dbms.ErrorCodeInterpreter { return Interpreter }

// NewSession implements dbms.Driver.
func (d *Driver) NewSession(name string) dbms.Session {
	return &Session{driver: d, name: name}
}

// NewInput implements dbms.Driver. go-sqlite3 accepts every raw kind as is.
func (d *Driver) NewInput(v datatype.Value) dbms.Input { return dbms.NewGenericInput(v) }

// NewOutput implements dbms.Driver.
func (d *Driver) NewOutput(v datatype.Value) dbms.Output { return dbms.NewGenericOutput(v) }

// dsn builds the connection string with pragmas.
// See: https://github.com/mattn/go-sqlite3#connection-string
func (d *Driver) dsn() string {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		d.cfg.Path,
		d.cfg.BusyTimeout*msPerSecond,
	)
	if d.cfg.WALMode && d.cfg.Path != memoryPath {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return dsn
}
