package datatype

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Set is an ordered collection of values with unique names.
type Set struct {
	values []Value
	index  map[string]int
}

// NewSet creates a set holding values in order.
func NewSet(values ...Value) (*Set, error) {
	s := &Set{index: make(map[string]int, len(values))}
	for _, v := range values {
		if err := s.Add(v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends v. Names must be unique within the set.
func (s *Set) Add(v Value) error {
	if v == nil {
		return errors.AssertionFailedf("datatype: cannot add nil value to set")
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, exists := s.index[v.Name()]; exists {
		return errors.Wrapf(ErrDuplicateName, "%q", v.Name())
	}
	s.index[v.Name()] = len(s.values)
	s.values = append(s.values, v)
	return nil
}

// Len returns the number of values.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// At returns the value at position i.
func (s *Set) At(i int) Value { return s.values[i] }

// Has reports whether a value named name exists.
func (s *Set) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Find returns the value named name.
func (s *Set) Find(name string) (Value, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.values[i], true
}

// Get returns the value named name, or ErrNoSuchValue.
func (s *Set) Get(name string) (Value, error) {
	v, ok := s.Find(name)
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchValue, "%q", name)
	}
	return v, nil
}

// Names returns the value names in order.
func (s *Set) Names() []string {
	names := make([]string, len(s.values))
	for i, v := range s.values {
		names[i] = v.Name()
	}
	return names
}

// Values returns the values in order. The slice is a copy; the values are not.
func (s *Set) Values() []Value {
	return append([]Value(nil), s.values...)
}

// Clone returns a deep copy. No value is shared with the original.
func (s *Set) Clone() *Set {
	c := &Set{
		values: make([]Value, len(s.values)),
		index:  make(map[string]int, len(s.values)),
	}
	for i, v := range s.values {
		c.values[i] = v.Clone()
		c.index[v.Name()] = i
	}
	return c
}

// Clear clears every value in the set.
func (s *Set) Clear() {
	for _, v := range s.values {
		v.Clear()
	}
}

// Compare orders two sets position by position. Sets of different shape
// (length, names or kinds) are a programming error.
func (s *Set) Compare(other *Set) (int, error) {
	if other == nil || s.Len() != other.Len() {
		return 0, errors.Mark(errors.AssertionFailedf("datatype: cannot compare sets of different length"), ErrKindMismatch)
	}
	for i, v := range s.values {
		o := other.values[i]
		if v.Name() != o.Name() {
			return 0, errors.Mark(
				errors.AssertionFailedf("datatype: cannot compare set member %q with %q", v.Name(), o.Name()),
				ErrKindMismatch,
			)
		}
		r, err := v.Compare(o)
		if err != nil {
			return 0, err
		}
		if r != 0 {
			return r, nil
		}
	}
	return 0, nil
}

// String renders the set as name=value pairs.
func (s *Set) String() string {
	var b strings.Builder
	for i, v := range s.values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(v.Name())
		b.WriteByte('=')
		b.WriteString(v.String())
	}
	return b.String()
}
