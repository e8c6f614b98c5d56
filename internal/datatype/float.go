package datatype

import (
	"cmp"
	"strconv"
)

// Float holds a 64-bit floating point number.
type Float struct {
	base
	value float64
}

// NewFloat creates a float value.
func NewFloat(name string, c Constraint) *Float {
	return &Float{base: newBase(name, KindFloat, c)}
}

// Value returns the number, or ErrNullValue.
func (v *Float) Value() (float64, error) {
	if v.null {
		return 0, v.errNull()
	}
	return v.value, nil
}

// Set stores x and clears the null flag.
func (v *Float) Set(x float64) {
	v.value = x
	v.null = false
}

// Clear resets to 0 and marks the value null.
func (v *Float) Clear() {
	v.value = 0
	v.null = true
}

// Compare implements Comparable. NaN sorts before every other number.
func (v *Float) Compare(other Value) (int, error) {
	o, ok := other.(*Float)
	if !ok {
		return 0, kindMismatch("compare", v, other)
	}
	if r, done := compareNulls(v, o); done {
		return r, nil
	}
	return cmp.Compare(v.value, o.value), nil
}

// Clone implements Value.
func (v *Float) Clone() Value {
	c := *v
	return &c
}

// Raw implements Bindable.
func (v *Float) Raw() any {
	if v.null {
		return nil
	}
	return v.value
}

// Assign implements Bindable.
func (v *Float) Assign(src any) error {
	if src == nil {
		return v.assignNull(v.Clear)
	}
	f, err := toFloat64(v.name, src)
	if err != nil {
		return err
	}
	v.Set(f)
	return nil
}

func (v *Float) String() string {
	if v.null {
		return nullText
	}
	return strconv.FormatFloat(v.value, 'g', -1, 64)
}
