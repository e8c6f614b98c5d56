package persistence

import (
	"github.com/cockroachdb/errors"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
)

// Class describes a persistent type: a primary key shape and member
// templates. It is immutable once built.
type Class struct {
	name    string
	key     *PrimaryKey
	members *datatype.Set
}

// ClassBuilder assembles a Class. The first error is kept and returned by
// Build.
type ClassBuilder struct {
	name    string
	key     *PrimaryKey
	members *datatype.Set
	err     error
	built   bool
}

// NewClassBuilder starts a class named name.
func NewClassBuilder(name string) *ClassBuilder {
	return &ClassBuilder{name: name, members: &datatype.Set{}}
}

func (b *ClassBuilder) fail(err error) *ClassBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Add appends a member template.
func (b *ClassBuilder) Add(v datatype.Value) *ClassBuilder {
	switch {
	case b.built:
		return b.fail(ErrBuilderSpent)
	case b.err != nil:
		return b
	case v == nil:
		return b.fail(errors.AssertionFailedf("persistence: nil member in class %q", b.name))
	case b.key != nil && b.key.Has(v.Name()):
		return b.fail(errors.Wrapf(ErrMemberInPrimaryKey, "class %q member %q", b.name, v.Name()))
	case b.members.Has(v.Name()):
		return b.fail(errors.Wrapf(ErrDuplicateMember, "class %q member %q", b.name, v.Name()))
	}
	if err := b.members.Add(v.Clone()); err != nil {
		return b.fail(err)
	}
	return b
}

// SetPrimaryKey sets the key shape. Members already added must not use
// any of its names.
func (b *ClassBuilder) SetPrimaryKey(pk *PrimaryKey) *ClassBuilder {
	switch {
	case b.built:
		return b.fail(ErrBuilderSpent)
	case b.err != nil:
		return b
	case pk == nil:
		return b.fail(errors.Wrapf(ErrNoPrimaryKey, "class %q", b.name))
	}
	for _, name := range pk.Names() {
		if b.members.Has(name) {
			return b.fail(errors.Wrapf(ErrMemberInPrimaryKey, "class %q member %q", b.name, name))
		}
	}
	b.key = pk.Clone()
	return b
}

// Build returns the class. The builder cannot be used afterwards.
func (b *ClassBuilder) Build() (*Class, error) {
	if b.built {
		return nil, ErrBuilderSpent
	}
	b.built = true
	switch {
	case b.err != nil:
		return nil, b.err
	case b.name == "":
		return nil, errors.New("persistence: class name is required")
	case b.key == nil:
		return nil, errors.Wrapf(ErrNoPrimaryKey, "class %q", b.name)
	case b.members.Len() == 0:
		return nil, errors.Wrapf(ErrNoMembers, "class %q", b.name)
	}
	return &Class{name: b.name, key: b.key, members: b.members}, nil
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// KeyNames returns the primary key value names in order.
func (c *Class) KeyNames() []string { return c.key.Names() }

// MemberNames returns the member names in order.
func (c *Class) MemberNames() []string { return c.members.Names() }

// NewPrimaryKey builds a key of this class's shape from plain Go values,
// converted as datatype.Bindable.Assign does.
func (c *Class) NewPrimaryKey(values ...any) (*PrimaryKey, error) {
	if len(values) != c.key.Len() {
		return nil, errors.Wrapf(ErrKeyMismatch, "class %q: %d key values for %d columns", c.name, len(values), c.key.Len())
	}
	b := NewPrimaryKeyBuilder()
	for i, tmpl := range c.key.Values() {
		v := tmpl.Clone()
		if err := v.Assign(values[i]); err != nil {
			return nil, errors.Wrapf(err, "class %q key %q", c.name, v.Name())
		}
		b.Add(v)
	}
	return b.Build()
}

// CreateObject returns a new object identified by pk. The members are
// fresh clones of the class templates.
func (c *Class) CreateObject(pk *PrimaryKey) (*Object, error) {
	if !c.key.sameShape(pk) {
		return nil, errors.Wrapf(ErrKeyMismatch, "class %q", c.name)
	}
	return &Object{class: c, key: pk.Clone(), members: c.members.Clone()}, nil
}
