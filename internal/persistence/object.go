package persistence

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
)

// Object is one instance of a Class.
type Object struct {
	class    *Class
	key      *PrimaryKey
	members  *datatype.Set
	loadedAt time.Time
}

func (o *Object) Class() *Class { return o.class }

// Key returns the object's primary key.
func (o *Object) Key() *PrimaryKey { return o.key }

// Members returns the object's member values in class order.
func (o *Object) Members() *datatype.Set { return o.members }

// Get returns the value named name, looking at members then key values.
func (o *Object) Get(name string) (datatype.Value, error) {
	if v, ok := o.members.Find(name); ok {
		return v, nil
	}
	if o.key.Has(name) {
		return o.key.Get(name)
	}
	return nil, errors.Wrapf(ErrUnknownColumn, "%s has no value %q", o.class.name, name)
}

// LoadedAt returns when a Loader last filled the object, or zero.
func (o *Object) LoadedAt() time.Time { return o.loadedAt }

// Loaded reports whether a Loader has filled the object.
func (o *Object) Loaded() bool { return !o.loadedAt.IsZero() }

// Reset clears every member and forgets the last load.
func (o *Object) Reset() {
	o.members.Clear()
	o.loadedAt = time.Time{}
}

func (o *Object) String() string {
	var b strings.Builder
	b.WriteString(o.class.name)
	b.WriteByte('[')
	b.WriteString(o.key.String())
	b.WriteString("]{")
	b.WriteString(o.members.String())
	b.WriteByte('}')
	return b.String()
}
