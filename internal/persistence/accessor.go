package persistence

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// Accessor is the wiring shared by Loader and Recorder: the statement
// name and the object values bound at each input and output position.
type Accessor struct {
	statement string
	inputs    []string
	outputs   []string
}

// Statement returns the registered statement name.
func (a *Accessor) Statement() string { return a.statement }

// Inputs returns the value names bound as inputs, by position.
func (a *Accessor) Inputs() []string { return append([]string(nil), a.inputs...) }

// Outputs returns the value names bound as outputs, by position.
func (a *Accessor) Outputs() []string { return append([]string(nil), a.outputs...) }

// resolve returns the object's values for names, in order.
func resolve(obj *Object, names []string) ([]datatype.Value, error) {
	values := make([]datatype.Value, 0, len(names))
	for _, name := range names {
		v, err := obj.Get(name)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// bindInputs binds the object's values at the accessor's input positions.
func (a *Accessor) bindInputs(gs *dbms.GuardStatement, obj *Object) error {
	values, err := resolve(obj, a.inputs)
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := gs.BindInput(v); err != nil {
			return errors.Wrapf(err, "statement %q input %q", a.statement, v.Name())
		}
	}
	return nil
}

// acquire leases the accessor's statement from db.
func (a *Accessor) acquire(ctx context.Context, db *dbms.Database) (*dbms.GuardStatement, error) {
	return db.AcquireStatement(ctx, a.statement)
}

// Option configures the column mapping of a Loader or Recorder.
type Option func(*Accessor)

// WithInputs overrides the value names bound as inputs, by position.
func WithInputs(names ...string) Option {
	return func(a *Accessor) { a.inputs = append([]string(nil), names...) }
}

// WithOutputs overrides the value names decoded from the row, by position.
func WithOutputs(names ...string) Option {
	return func(a *Accessor) { a.outputs = append([]string(nil), names...) }
}

func checkColumns(c *Class, names []string) error {
	for _, name := range names {
		if !c.members.Has(name) && !c.key.Has(name) {
			return errors.Wrapf(ErrUnknownColumn, "class %q has no value %q", c.name, name)
		}
	}
	return nil
}
