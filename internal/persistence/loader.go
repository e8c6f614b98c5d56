package persistence

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// StalenessFunc decides whether obj must be loaded again. It is the
// caller's policy, for example comparing a version column or LoadedAt
// against a TTL.
type StalenessFunc func(ctx context.Context, obj *Object) (bool, error)

// Loader reads one row keyed by an object's primary key into the object.
// By default the key values are the inputs and the members are the
// outputs, both in class order.
type Loader struct {
	Accessor
	class *Class
	stale StalenessFunc
}

// NewLoader creates a loader for objects of class c using the SELECT
// statement registered as statement.
func NewLoader(c *Class, statement string, opts ...Option) (*Loader, error) {
	l := &Loader{
		Accessor: Accessor{statement: statement, inputs: c.KeyNames(), outputs: c.MemberNames()},
		class:    c,
	}
	for _, opt := range opts {
		opt(&l.Accessor)
	}
	if err := checkColumns(c, l.inputs); err != nil {
		return nil, err
	}
	if err := checkColumns(c, l.outputs); err != nil {
		return nil, err
	}
	return l, nil
}

// SetStaleness installs the HasToRefresh policy.
func (l *Loader) SetStaleness(fn StalenessFunc) { l.stale = fn }

// HasToRefresh reports whether obj should be loaded again. Without a
// policy only objects that were never loaded need a refresh.
func (l *Loader) HasToRefresh(ctx context.Context, obj *Object) (bool, error) {
	if l.stale == nil {
		return !obj.Loaded(), nil
	}
	return l.stale(ctx, obj)
}

// Apply runs the leased statement gs for obj's key and decodes the row
// into obj. NotFound, Locked and any failure leave obj untouched. Bindings
// already on gs are dropped, so one lease can load many objects.
func (l *Loader) Apply(ctx context.Context, gs *dbms.GuardStatement, obj *Object) (dbms.ResultCode, error) {
	if obj.class != l.class {
		return dbms.ResultCode{}, errors.Wrapf(ErrKeyMismatch, "loader for %q given a %q", l.class.name, obj.class.name)
	}
	gs.Reset()
	if err := l.bindInputs(gs, obj); err != nil {
		return dbms.ResultCode{}, err
	}

	targets, err := resolve(obj, l.outputs)
	if err != nil {
		return dbms.ResultCode{}, err
	}
	scratch := make([]datatype.Value, len(targets))
	for i, v := range targets {
		scratch[i] = v.Clone()
		if err := gs.BindOutput(scratch[i]); err != nil {
			return dbms.ResultCode{}, errors.Wrapf(err, "statement %q output %q", l.statement, v.Name())
		}
	}

	rc, err := gs.Execute(ctx)
	if err != nil || !rc.Successful() {
		return rc, err
	}
	ok, err := gs.Fetch(ctx)
	if err != nil {
		return rc, err
	}
	if !ok {
		return rc, errors.AssertionFailedf("persistence: statement %q succeeded without a row", l.statement)
	}

	for i, v := range targets {
		if err := datatype.Copy(v, scratch[i]); err != nil {
			return rc, err
		}
	}
	obj.loadedAt = time.Now()
	return rc, nil
}

// Load leases the loader's statement from db and applies it to obj.
func (l *Loader) Load(ctx context.Context, db *dbms.Database, obj *Object) (dbms.ResultCode, error) {
	gs, err := l.acquire(ctx, db)
	if err != nil {
		return dbms.ResultCode{}, err
	}
	defer gs.Release()
	return l.Apply(ctx, gs, obj)
}
