// Package dbmstest provides a scripted in-memory backend for testing code
// built on package dbms.
//
// Statements are answered by handlers registered per expression. Sessions
// can be told to fail their next opens or to lose their connection, and
// every native call, including each input encode and output decode, is
// appended to an event log that tests can inspect for ordering.
package dbmstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// Native codes understood by Interpreter.
const (
	CodeOK           = 0
	CodeNoData       = 100
	CodeBusy         = 200
	CodeDisconnected = 300
	CodeFailed       = 400
)

// Interpreter classifies the scripted codes.
var Interpreter = dbms.CodeTable{
	CodeOK:                dbms.OutcomeSuccessful,
	CodeNoData:            dbms.OutcomeNotFound,
	CodeBusy:              dbms.OutcomeLocked,
	CodeDisconnected:      dbms.OutcomeLostConnection,
	dbms.CodeDisconnected: dbms.OutcomeLostConnection,
}

// Result is the scripted answer to one execution.
type Result struct {
	Rows    [][]any
	Code    int
	Message string
}

// Handler answers an execution given the encoded arguments.
type Handler func(args []any) Result

// Driver is the scripted backend.
type Driver struct {
	mu           sync.Mutex
	handlers     map[string]Handler
	openFailures map[string]int
	sessions     map[string]*Session
	events       []string
}

// New creates a driver with no handlers. Unhandled expressions succeed
// with no rows.
func New() *Driver {
	return &Driver{
		handlers:     make(map[string]Handler),
		openFailures: make(map[string]int),
		sessions:     make(map[string]*Session),
	}
}

func (d *Driver) Name() string                           { return "dbmstest" }
func (d *Driver) Interpreter() dbms.ErrorCodeInterpreter { return Interpreter }

// NewSession implements dbms.Driver.
func (d *Driver) NewSession(name string) dbms.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &Session{driver: d, name: name}
	d.sessions[name] = s
	return s
}

// NewInput implements dbms.Driver with a recording input.
func (d *Driver) NewInput(v datatype.Value) dbms.Input {
	return &input{GenericInput: dbms.NewGenericInput(v), driver: d}
}

// NewOutput implements dbms.Driver with a recording output.
func (d *Driver) NewOutput(v datatype.Value) dbms.Output {
	return &output{GenericOutput: dbms.NewGenericOutput(v), driver: d}
}

// Handle answers executions of expression with h.
func (d *Driver) Handle(expression string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[expression] = h
}

// Respond answers every execution of expression with res.
func (d *Driver) Respond(expression string, res Result) {
	d.Handle(expression, func([]any) Result { return res })
}

// FailOpens makes the next n opens of the named session fail with
// CodeDisconnected.
func (d *Driver) FailOpens(session string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openFailures[session] = n
}

// Sever drops the named session's connection. Its next native call fails
// with CodeDisconnected.
func (d *Driver) Sever(session string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.sessions[session]; ok {
		s.open = false
	}
}

// Session returns the named session.
func (d *Driver) Session(name string) *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[name]
}

// Events returns a copy of the event log.
func (d *Driver) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

// Count returns how many logged events equal event.
func (d *Driver) Count(event string) int {
	n := 0
	for _, e := range d.Events() {
		if e == event {
			n++
		}
	}
	return n
}

// ResetEvents clears the event log.
func (d *Driver) ResetEvents() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

func (d *Driver) record(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, fmt.Sprintf(format, args...))
}

func native(code int, msg string) error {
	return &dbms.NativeError{Backend: "dbmstest", Code: code, Message: msg}
}

// Session is a scripted session.
type Session struct {
	driver *Driver
	name   string
	open   bool
	inTx   bool
}

// IsOpen reports whether the session is open.
func (s *Session) IsOpen() bool {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	return s.open
}

// InTransaction reports whether the session has an active transaction.
func (s *Session) InTransaction() bool {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	return s.inTx
}

// check fails with CodeDisconnected when the session is not open.
func (s *Session) check() error {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	if !s.open {
		return native(CodeDisconnected, "session "+s.name+" is not connected")
	}
	return nil
}

func (s *Session) Open(context.Context) error {
	d := s.driver
	d.mu.Lock()
	if n := d.openFailures[s.name]; n > 0 {
		d.openFailures[s.name] = n - 1
		d.mu.Unlock()
		d.record("open-fail %s", s.name)
		return native(CodeDisconnected, "connection refused")
	}
	s.open = true
	s.inTx = false
	d.mu.Unlock()
	d.record("open %s", s.name)
	return nil
}

func (s *Session) Close() error {
	s.driver.mu.Lock()
	s.open = false
	s.inTx = false
	s.driver.mu.Unlock()
	s.driver.record("close %s", s.name)
	return nil
}

func (s *Session) Begin(context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	s.setTx(true)
	s.driver.record("begin %s", s.name)
	return nil
}

func (s *Session) Commit(context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	s.setTx(false)
	s.driver.record("commit %s", s.name)
	return nil
}

func (s *Session) Rollback(context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	s.setTx(false)
	s.driver.record("rollback %s", s.name)
	return nil
}

func (s *Session) setTx(active bool) {
	s.driver.mu.Lock()
	s.inTx = active
	s.driver.mu.Unlock()
}

// Prepare implements dbms.Session.
func (s *Session) Prepare(_ context.Context, spec dbms.CursorSpec) (dbms.Cursor, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.driver.record("prepare %s %s", s.name, spec.Name)
	return &Cursor{session: s, spec: spec, pos: -1}, nil
}

// Cursor is a scripted prepared statement.
type Cursor struct {
	session *Session
	spec    dbms.CursorSpec
	rows    [][]any
	pos     int
	closed  bool
}

// Execute implements dbms.Cursor.
func (c *Cursor) Execute(_ context.Context, args []any) error {
	s := c.session
	if err := s.check(); err != nil {
		return err
	}
	if c.closed {
		return native(CodeFailed, "cursor closed")
	}
	d := s.driver
	d.record("execute %s %s", s.name, c.spec.Name)

	d.mu.Lock()
	h := d.handlers[c.spec.Expression]
	d.mu.Unlock()

	res := Result{}
	if h != nil {
		res = h(args)
	}
	c.rows, c.pos = nil, -1
	if res.Code == CodeDisconnected {
		d.Sever(s.name)
	}
	if res.Code != CodeOK {
		return native(res.Code, res.Message)
	}
	if c.spec.Outputs > 0 && len(res.Rows) == 0 {
		return native(CodeNoData, "no data")
	}
	c.rows = res.Rows
	return nil
}

// Next implements dbms.Cursor.
func (c *Cursor) Next(context.Context) (bool, error) {
	if err := c.session.check(); err != nil {
		return false, err
	}
	if c.pos+1 >= len(c.rows) {
		c.pos = len(c.rows)
		return false, nil
	}
	c.pos++
	return true, nil
}

// Scan implements dbms.Cursor. Destinations must be *any.
func (c *Cursor) Scan(dest []any) error {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return native(CodeFailed, "no current row")
	}
	row := c.rows[c.pos]
	if len(dest) > len(row) {
		return native(CodeFailed, fmt.Sprintf("row has %d columns, %d requested", len(row), len(dest)))
	}
	for i, d := range dest {
		p, ok := d.(*any)
		if !ok {
			return native(CodeFailed, fmt.Sprintf("unsupported destination %T", d))
		}
		*p = row[i]
	}
	return nil
}

// Reset implements dbms.Cursor.
func (c *Cursor) Reset() error {
	c.rows, c.pos = nil, -1
	return nil
}

// Close implements dbms.Cursor.
func (c *Cursor) Close() error {
	c.closed = true
	c.rows = nil
	return nil
}

type input struct {
	*dbms.GenericInput
	driver *Driver
}

func (b *input) Encode() (any, error) {
	b.driver.record("encode %s", b.Value().Name())
	return b.GenericInput.Encode()
}

type output struct {
	*dbms.GenericOutput
	driver *Driver
}

func (b *output) Decode(ctx context.Context) error {
	b.driver.record("decode %s", b.Value().Name())
	return b.GenericOutput.Decode(ctx)
}
