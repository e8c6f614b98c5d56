package persistence

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// Shape is the kind of write a Recorder performs. It fixes the default
// input order.
type Shape int

const (
	// Insert binds key values then members.
	Insert Shape = iota + 1
	// Update binds members then key values, matching SET ... WHERE ...
	Update
	// Delete binds key values.
	Delete
)

func (s Shape) String() string {
	switch s {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// Recorder writes one object through one statement shape.
type Recorder struct {
	Accessor
	shape  Shape
	object *Object
}

// NewRecorder creates a recorder writing obj with the statement
// registered as statement.
func NewRecorder(shape Shape, statement string, obj *Object, opts ...Option) (*Recorder, error) {
	if obj == nil {
		return nil, errors.AssertionFailedf("persistence: recorder needs an object")
	}
	c := obj.class
	var inputs []string
	switch shape {
	case Insert:
		inputs = append(c.KeyNames(), c.MemberNames()...)
	case Update:
		inputs = append(c.MemberNames(), c.KeyNames()...)
	case Delete:
		inputs = c.KeyNames()
	default:
		return nil, errors.Wrapf(ErrUnknownShape, "%d", int(shape))
	}

	r := &Recorder{Accessor: Accessor{statement: statement, inputs: inputs}, shape: shape, object: obj}
	for _, opt := range opts {
		opt(&r.Accessor)
	}
	if len(r.outputs) > 0 {
		return nil, errors.Newf("persistence: %s recorder %q cannot decode outputs", shape, statement)
	}
	if err := checkColumns(c, r.inputs); err != nil {
		return nil, err
	}
	return r, nil
}

// Shape returns the write the recorder performs.
func (r *Recorder) Shape() Shape { return r.shape }

// Object returns the object the recorder writes.
func (r *Recorder) Object() *Object { return r.object }

// Apply encodes the object's current values into the leased statement
// gs and executes it. Bindings already on gs are dropped first.
func (r *Recorder) Apply(ctx context.Context, gs *dbms.GuardStatement) (dbms.ResultCode, error) {
	gs.Reset()
	if err := r.bindInputs(gs, r.object); err != nil {
		return dbms.ResultCode{}, err
	}
	return gs.Execute(ctx)
}

// Record leases the recorder's statement from db and applies it.
func (r *Recorder) Record(ctx context.Context, db *dbms.Database) (dbms.ResultCode, error) {
	gs, err := r.acquire(ctx, db)
	if err != nil {
		return dbms.ResultCode{}, err
	}
	defer gs.Release()
	return r.Apply(ctx, gs)
}
