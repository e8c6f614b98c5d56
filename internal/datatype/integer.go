package datatype

import (
	"cmp"
	"strconv"
)

// Integer holds a signed 64-bit integer.
type Integer struct {
	base
	value int64
}

// NewInteger creates an integer value.
func NewInteger(name string, c Constraint) *Integer {
	return &Integer{base: newBase(name, KindInteger, c)}
}

// Value returns the integer, or ErrNullValue.
func (v *Integer) Value() (int64, error) {
	if v.null {
		return 0, v.errNull()
	}
	return v.value, nil
}

// Set stores x and clears the null flag.
func (v *Integer) Set(x int64) {
	v.value = x
	v.null = false
}

// Clear resets to 0 and marks the value null.
func (v *Integer) Clear() {
	v.value = 0
	v.null = true
}

// Compare implements Comparable.
func (v *Integer) Compare(other Value) (int, error) {
	o, ok := other.(*Integer)
	if !ok {
		return 0, kindMismatch("compare", v, other)
	}
	if r, done := compareNulls(v, o); done {
		return r, nil
	}
	return cmp.Compare(v.value, o.value), nil
}

// Clone implements Value.
func (v *Integer) Clone() Value {
	c := *v
	return &c
}

// Raw implements Bindable.
func (v *Integer) Raw() any {
	if v.null {
		return nil
	}
	return v.value
}

// Assign implements Bindable.
func (v *Integer) Assign(src any) error {
	if src == nil {
		return v.assignNull(v.Clear)
	}
	n, err := toInt64(v.name, src)
	if err != nil {
		return err
	}
	v.Set(n)
	return nil
}

func (v *Integer) String() string {
	if v.null {
		return nullText
	}
	return strconv.FormatInt(v.value, 10)
}
