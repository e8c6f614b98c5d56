package datatype

import (
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// String holds text, optionally bounded to a maximum number of characters.
type String struct {
	base
	value   string
	maxSize int
}

// NewString creates a string value. A maxSize of 0 means unbounded.
func NewString(name string, maxSize int, c Constraint) *String {
	return &String{base: newBase(name, KindString, c), maxSize: maxSize}
}

// MaxSize returns the declared bound, 0 when unbounded.
func (v *String) MaxSize() int { return v.maxSize }

// Value returns the text, or ErrNullValue.
func (v *String) Value() (string, error) {
	if v.null {
		return "", v.errNull()
	}
	return v.value, nil
}

// Set stores s and clears the null flag. Text longer than MaxSize is
// rejected with ErrTooLong and leaves the value unchanged.
func (v *String) Set(s string) error {
	if v.maxSize > 0 && utf8.RuneCountInString(s) > v.maxSize {
		return errors.Wrapf(ErrTooLong, "string %q: %d > %d characters", v.name, utf8.RuneCountInString(s), v.maxSize)
	}
	v.value = s
	v.null = false
	return nil
}

// Clear resets to "" and marks the value null.
func (v *String) Clear() {
	v.value = ""
	v.null = true
}

// Compare implements Comparable.
func (v *String) Compare(other Value) (int, error) {
	o, ok := other.(*String)
	if !ok {
		return 0, kindMismatch("compare", v, other)
	}
	if r, done := compareNulls(v, o); done {
		return r, nil
	}
	return strings.Compare(v.value, o.value), nil
}

// Clone implements Value.
func (v *String) Clone() Value {
	c := *v
	return &c
}

// Raw implements Bindable.
func (v *String) Raw() any {
	if v.null {
		return nil
	}
	return v.value
}

// Assign implements Bindable.
func (v *String) Assign(src any) error {
	if src == nil {
		return v.assignNull(v.Clear)
	}
	s, err := toText(v.name, src)
	if err != nil {
		return err
	}
	return v.Set(s)
}

func (v *String) String() string {
	if v.null {
		return nullText
	}
	return v.value
}
