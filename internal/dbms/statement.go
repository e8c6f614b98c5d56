package dbms

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
)

// ActionOnError selects what Execute does to the owning transaction when
// the statement fails.
type ActionOnError int

const (
	// ActionIgnore leaves the transaction to the caller.
	ActionIgnore ActionOnError = iota
	// ActionRollback rolls the active transaction back on any failure
	// except NotFound.
	ActionRollback
)

func (a ActionOnError) String() string {
	if a == ActionRollback {
		return "rollback"
	}
	return "ignore"
}

// StatementState is the execution state of a Statement.
type StatementState string

const (
	StatementUnprepared StatementState = "unprepared"
	StatementPrepared   StatementState = "prepared"
	StatementExecuted   StatementState = "executed"
	StatementFetching   StatementState = "fetching"
	StatementFetched    StatementState = "fetched"
)

// template is a registered statement definition.
type template struct {
	name       string
	expression string
	action     ActionOnError
}

// Statement is one prepared operation bound to a single Connection for its
// whole life. It is reached only through a GuardStatement.
type Statement struct {
	conn   *Connection
	tmpl   template
	leased bool

	inputs  []Input
	outputs []Output

	cursor     Cursor
	spec       CursorSpec
	generation uint64
	prepared   bool
	bound      bool
	state      StatementState
	empty      bool
}

func newStatement(c *Connection, tmpl template) *Statement {
	return &Statement{conn: c, tmpl: tmpl, state: StatementUnprepared}
}

func (s *Statement) Name() string                 { return s.tmpl.name }
func (s *Statement) Expression() string           { return s.tmpl.expression }
func (s *Statement) ActionOnError() ActionOnError { return s.tmpl.action }
func (s *Statement) Connection() *Connection      { return s.conn }
func (s *Statement) State() StatementState        { return s.state }

// Inputs returns the number of bound inputs.
func (s *Statement) Inputs() int { return len(s.inputs) }

// Outputs returns the number of bound outputs.
func (s *Statement) Outputs() int { return len(s.outputs) }

func (s *Statement) bindInput(v datatype.Value) error {
	if v == nil {
		return errors.AssertionFailedf("dbms: nil input bound to statement %q", s.tmpl.name)
	}
	s.inputs = append(s.inputs, s.conn.db.driver.NewInput(v))
	s.bound = false
	return nil
}

func (s *Statement) bindOutput(v datatype.Value) error {
	if v == nil {
		return errors.AssertionFailedf("dbms: nil output bound to statement %q", s.tmpl.name)
	}
	s.outputs = append(s.outputs, s.conn.db.driver.NewOutput(v))
	s.bound = false
	return nil
}

func (s *Statement) wasPrepared() bool { return s.prepared }

func (s *Statement) currentSpec() CursorSpec {
	return CursorSpec{
		Name:       s.tmpl.name,
		Expression: s.tmpl.expression,
		Inputs:     len(s.inputs),
		Outputs:    len(s.outputs),
	}
}

// prepare compiles the statement for the current binder shape. It is a
// no-op when already prepared for that shape on the current session.
func (s *Statement) prepare(ctx context.Context) error {
	spec := s.currentSpec()
	if s.cursor != nil && s.spec == spec && s.generation == s.conn.Generation() {
		return nil
	}
	return s.prepareSpec(ctx, spec)
}

func (s *Statement) prepareSpec(ctx context.Context, spec CursorSpec) error {
	s.dropCursor()
	cur, err := s.conn.session.Prepare(ctx, spec)
	if err != nil {
		return err
	}
	s.cursor = cur
	s.spec = spec
	s.generation = s.conn.Generation()
	s.prepared = true
	s.state = StatementPrepared
	return nil
}

// dropCursor closes the native cursor and detaches binders from it.
func (s *Statement) dropCursor() {
	if s.cursor == nil {
		return
	}
	if err := s.cursor.Close(); err != nil {
		s.conn.db.logger.Debug("closing cursor failed",
			"connection", s.conn.name,
			"statement", s.tmpl.name,
			"error", err,
		)
	}
	s.cursor = nil
	s.bound = false
	s.state = StatementUnprepared
	s.empty = false
}

// attach prepares every binder against the cursor, once per cursor and shape.
func (s *Statement) attach() error {
	if s.bound {
		return nil
	}
	for i, in := range s.inputs {
		if err := in.Prepare(s.cursor, i); err != nil {
			return errors.Wrapf(err, "dbms: prepare input %d of %q", i, s.tmpl.name)
		}
	}
	for i, out := range s.outputs {
		if err := out.Prepare(s.cursor, i); err != nil {
			return errors.Wrapf(err, "dbms: prepare output %d of %q", i, s.tmpl.name)
		}
	}
	s.bound = true
	return nil
}

func (s *Statement) execute(ctx context.Context) (ResultCode, error) {
	db := s.conn.db
	if err := s.prepare(ctx); err != nil {
		return s.failure(ctx, "prepare", err)
	}
	if err := s.attach(); err != nil {
		return ResultCode{}, err
	}

	args := make([]any, len(s.inputs))
	for i, in := range s.inputs {
		a, err := in.Encode()
		if err != nil {
			return ResultCode{}, errors.Wrapf(err, "dbms: encode input %d of %q", i, s.tmpl.name)
		}
		args[i] = a
	}

	if s.state != StatementPrepared {
		if err := s.cursor.Reset(); err != nil {
			db.logger.Debug("cursor reset failed", "statement", s.tmpl.name, "error", err)
		}
	}
	s.state = StatementPrepared
	s.empty = false

	err := s.cursor.Execute(ctx, args)
	s.conn.touch()
	rc := classify(db.interp, err)
	switch rc.Outcome {
	case OutcomeSuccessful:
		s.state = StatementExecuted
		return rc, nil
	case OutcomeNotFound:
		s.state = StatementExecuted
		s.empty = true
		return rc, nil
	}
	return s.failure(ctx, "execute", err)
}

// failure applies the rollback policy and classifies err. Locked is
// returned as a value; every other outcome is returned as an error.
func (s *Statement) failure(ctx context.Context, op string, err error) (ResultCode, error) {
	db := s.conn.db
	rc := classify(db.interp, err)
	if s.tmpl.action == ActionRollback && rc.Failed() && !rc.LostConnection() && s.conn.InTransaction() {
		if rbErr := s.conn.rollback(context.WithoutCancel(ctx)); rbErr != nil {
			db.logger.Warn("rollback after statement failure failed",
				"database", db.cfg.Name,
				"connection", s.conn.name,
				"statement", s.tmpl.name,
				"error", rbErr,
			)
		} else {
			db.logger.Debug("rolled back after statement failure",
				"connection", s.conn.name,
				"statement", s.tmpl.name,
				"outcome", rc.Outcome,
			)
		}
	}
	ferr := db.failWith(ctx, s.conn, s.tmpl.name, op, rc, err)
	if rc.Locked() && op == "execute" {
		return rc, nil
	}
	return rc, ferr
}

func (s *Statement) fetch(ctx context.Context) (bool, error) {
	switch s.state {
	case StatementExecuted, StatementFetching:
	case StatementFetched:
		return false, errors.Wrapf(ErrFetchExhausted, "statement %q", s.tmpl.name)
	default:
		return false, errors.Wrapf(ErrNotExecuted, "statement %q", s.tmpl.name)
	}
	if s.empty || len(s.outputs) == 0 {
		s.state = StatementFetched
		return false, nil
	}

	ok, err := s.cursor.Next(ctx)
	if err != nil {
		s.state = StatementPrepared
		_, ferr := s.failure(ctx, "fetch", err)
		return false, ferr
	}
	if !ok {
		s.state = StatementFetched
		return false, nil
	}

	dest := make([]any, len(s.outputs))
	for i, out := range s.outputs {
		dest[i] = out.Destination()
	}
	if err := s.cursor.Scan(dest); err != nil {
		s.state = StatementPrepared
		_, ferr := s.failure(ctx, "fetch", err)
		return false, ferr
	}
	for i, out := range s.outputs {
		if err := out.Decode(ctx); err != nil {
			if _, _, native := nativeCode(err); native {
				_, ferr := s.failure(ctx, "decode", err)
				return false, ferr
			}
			return false, errors.Wrapf(err, "dbms: decode output %d of %q", i, s.tmpl.name)
		}
	}
	s.state = StatementFetching
	return true, nil
}

func (s *Statement) writeLOB(ctx context.Context, name string) error {
	if s.state != StatementFetching {
		return errors.Wrapf(ErrNotExecuted, "statement %q has no current row", s.tmpl.name)
	}
	for _, out := range s.outputs {
		if out.Value().Name() != name {
			continue
		}
		w, ok := out.(LOBWriter)
		if !ok || out.Value().Kind() != datatype.KindLongBlock {
			return errors.Wrapf(ErrNotLOB, "output %q of %q", name, s.tmpl.name)
		}
		if err := w.Write(ctx); err != nil {
			if _, _, native := nativeCode(err); native {
				_, ferr := s.failure(ctx, "write-lob", err)
				return ferr
			}
			return errors.Wrapf(err, "dbms: write large object %q", name)
		}
		s.conn.touch()
		return nil
	}
	return errors.Wrapf(datatype.ErrNoSuchValue, "output %q of %q", name, s.tmpl.name)
}

// resetBindings releases every binder and discards the pending result.
// The cursor stays prepared for the next lease.
func (s *Statement) resetBindings() {
	if s.cursor != nil && s.state != StatementPrepared && s.state != StatementUnprepared {
		if err := s.cursor.Reset(); err != nil {
			s.conn.db.logger.Debug("cursor reset failed", "statement", s.tmpl.name, "error", err)
		}
		s.state = StatementPrepared
	}
	for _, in := range s.inputs {
		in.Release()
	}
	for _, out := range s.outputs {
		out.Release()
	}
	s.inputs = nil
	s.outputs = nil
	s.bound = false
	s.empty = false
}
