package datatype

import (
	"github.com/cockroachdb/errors"
)

// nullText is how a null value renders in String().
const nullText = "<null>"

// Nullable is implemented by every value.
type Nullable interface {
	// IsNull reports whether the value currently holds null.
	IsNull() bool
	// IsNullable reports whether the value was declared CanBeNull.
	IsNullable() bool
	// Clear resets the value to its kind's default and marks it null.
	Clear()
}

// Comparable is implemented by every value.
type Comparable interface {
	// Compare returns -1, 0 or +1. Null sorts before any non-null value.
	// Comparing against another kind is a programming error and returns an
	// assertion failure marked with ErrKindMismatch.
	Compare(other Value) (int, error)
}

// Bindable exposes a value to a binder for the duration of one native call.
type Bindable interface {
	// Raw returns the value as a plain Go value (int64, float64, string,
	// time.Time or []byte), or nil when null. Blocks are returned as copies,
	// so the result stays valid after the value changes.
	Raw() any
	// Assign stores a native Go value, converting it to the value's kind.
	// A nil src clears the value, or fails with ErrNullNotAllowed.
	Assign(src any) error
}

// Value is the closed set of typed, nullable scalars.
type Value interface {
	Nullable
	Comparable
	Bindable

	// Name is the bind key of the value.
	Name() string
	// Kind never changes after construction.
	Kind() Kind
	// Clone returns a fully independent copy.
	Clone() Value
	String() string

	sealed()
}

// base holds the fields shared by all kinds.
type base struct {
	name     string
	kind     Kind
	nullable bool
	null     bool
}

func newBase(name string, kind Kind, c Constraint) base {
	return base{
		name:     name,
		kind:     kind,
		nullable: c == CanBeNull,
		null:     c == CanBeNull,
	}
}

func (b *base) Name() string     { return b.name }
func (b *base) Kind() Kind       { return b.kind }
func (b *base) IsNull() bool     { return b.null }
func (b *base) IsNullable() bool { return b.nullable }
func (b *base) sealed()          {}

// Constraint returns the nullability the value was declared with.
func (b *base) Constraint() Constraint {
	if b.nullable {
		return CanBeNull
	}
	return CanNotBeNull
}

func (b *base) errNull() error {
	return errors.Wrapf(ErrNullValue, "%s %q", b.kind, b.name)
}

// assignNull handles a nil source for Assign.
func (b *base) assignNull(clear func()) error {
	if !b.nullable {
		return errors.Wrapf(ErrNullNotAllowed, "%s %q", b.kind, b.name)
	}
	clear()
	return nil
}

// compareNulls orders two values by null state. done is true when the
// result is decided without looking at the payloads.
func compareNulls(a, b Value) (result int, done bool) {
	switch {
	case a.IsNull() && b.IsNull():
		return 0, true
	case a.IsNull():
		return -1, true
	case b.IsNull():
		return 1, true
	}
	return 0, false
}

func kindMismatch(op string, v Value, other Value) error {
	otherKind := "nil"
	otherName := ""
	if other != nil {
		otherKind = other.Kind().String()
		otherName = other.Name()
	}
	return errors.Mark(
		errors.AssertionFailedf("datatype: cannot %s %s %q with %s %q", op, v.Kind(), v.Name(), otherKind, otherName),
		ErrKindMismatch,
	)
}

// narrow is the checked downcast shared by the As* helpers.
func narrow[T Value](v Value, kinds ...Kind) (T, error) {
	var zero T
	if v == nil {
		return zero, errors.Wrap(ErrKindMismatch, "nil value")
	}
	for _, k := range kinds {
		if v.Kind() == k {
			if t, ok := v.(T); ok {
				return t, nil
			}
		}
	}
	return zero, errors.Wrapf(ErrKindMismatch, "%q is %s, want %v", v.Name(), v.Kind(), kinds)
}

// AsInteger narrows v to *Integer.
func AsInteger(v Value) (*Integer, error) { return narrow[*Integer](v, KindInteger) }

// AsFloat narrows v to *Float.
func AsFloat(v Value) (*Float, error) { return narrow[*Float](v, KindFloat) }

// AsString narrows v to *String.
func AsString(v Value) (*String, error) { return narrow[*String](v, KindString) }

// AsDate narrows v to *Date. Both KindDate and KindTimestamp match.
func AsDate(v Value) (*Date, error) { return narrow[*Date](v, KindDate, KindTimestamp) }

// AsBlock narrows v to *Block. Both KindShortBlock and KindLongBlock match.
func AsBlock(v Value) (*Block, error) { return narrow[*Block](v, KindShortBlock, KindLongBlock) }

// Copy assigns the current content of src to dst. Both must share a kind.
func Copy(dst, src Value) error {
	if dst == nil || src == nil || dst.Kind() != src.Kind() {
		return errors.Wrapf(ErrKindMismatch, "copy %v into %v", describe(src), describe(dst))
	}
	return dst.Assign(src.Raw())
}

func describe(v Value) string {
	if v == nil {
		return "nil"
	}
	return v.Kind().String() + " " + v.Name()
}
