package persistence

import (
	"github.com/cockroachdb/errors"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
)

// PrimaryKey identifies one object of a class. Its values are ordered as
// they were added to the builder.
type PrimaryKey struct {
	values *datatype.Set
}

// PrimaryKeyBuilder assembles a PrimaryKey. The first error is kept and
// returned by Build.
type PrimaryKeyBuilder struct {
	values *datatype.Set
	err    error
	built  bool
}

// NewPrimaryKeyBuilder returns an empty builder.
func NewPrimaryKeyBuilder() *PrimaryKeyBuilder {
	return &PrimaryKeyBuilder{values: &datatype.Set{}}
}

// Add appends v to the key.
func (b *PrimaryKeyBuilder) Add(v datatype.Value) *PrimaryKeyBuilder {
	if b.built {
		b.err = ErrBuilderSpent
		return b
	}
	if b.err != nil {
		return b
	}
	if v == nil {
		b.err = errors.AssertionFailedf("persistence: nil primary key value")
		return b
	}
	if err := b.values.Add(v); err != nil {
		b.err = errors.Wrap(err, "persistence: primary key")
	}
	return b
}

// Build returns the key. The builder cannot be used afterwards.
func (b *PrimaryKeyBuilder) Build() (*PrimaryKey, error) {
	if b.built {
		return nil, ErrBuilderSpent
	}
	b.built = true
	if b.err != nil {
		return nil, b.err
	}
	if b.values.Len() == 0 {
		return nil, ErrEmptyPrimaryKey
	}
	return &PrimaryKey{values: b.values}, nil
}

// Len returns the number of key values.
func (k *PrimaryKey) Len() int { return k.values.Len() }

// Names returns the key value names in order.
func (k *PrimaryKey) Names() []string { return k.values.Names() }

// Values returns the key values in order. They are the key's own values.
func (k *PrimaryKey) Values() []datatype.Value { return k.values.Values() }

// Get returns the key value named name.
func (k *PrimaryKey) Get(name string) (datatype.Value, error) { return k.values.Get(name) }

// Has reports whether name is part of the key.
func (k *PrimaryKey) Has(name string) bool { return k.values.Has(name) }

// Clone returns an independent copy.
func (k *PrimaryKey) Clone() *PrimaryKey { return &PrimaryKey{values: k.values.Clone()} }

// Compare orders keys value by value. Keys of different shapes are an
// assertion failure marked with datatype.ErrKindMismatch.
func (k *PrimaryKey) Compare(other *PrimaryKey) (int, error) {
	return k.values.Compare(other.values)
}

// Equal reports whether both keys have the same shape and values.
func (k *PrimaryKey) Equal(other *PrimaryKey) bool {
	if other == nil {
		return false
	}
	c, err := k.Compare(other)
	return err == nil && c == 0
}

// String renders the key as name=value pairs, usable as a cache key.
func (k *PrimaryKey) String() string { return k.values.String() }

// sameShape reports whether other has the same names and kinds in order.
func (k *PrimaryKey) sameShape(other *PrimaryKey) bool {
	if other == nil || k.Len() != other.Len() {
		return false
	}
	for i := range k.Len() {
		a, b := k.values.At(i), other.values.At(i)
		if a.Name() != b.Name() || a.Kind() != b.Kind() {
			return false
		}
	}
	return true
}
