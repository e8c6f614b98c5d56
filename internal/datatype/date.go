package datatype

import (
	"time"
)

// Date holds a point in time. KindDate values are truncated to the second;
// KindTimestamp values keep nanosecond precision.
type Date struct {
	base
	value time.Time
}

// NewDate creates a second-precision date value.
func NewDate(name string, c Constraint) *Date {
	return &Date{base: newBase(name, KindDate, c)}
}

// NewTimestamp creates a nanosecond-precision timestamp value.
func NewTimestamp(name string, c Constraint) *Date {
	return &Date{base: newBase(name, KindTimestamp, c)}
}

// Value returns the time, or ErrNullValue.
func (v *Date) Value() (time.Time, error) {
	if v.null {
		return time.Time{}, v.errNull()
	}
	return v.value, nil
}

// Set stores t and clears the null flag.
func (v *Date) Set(t time.Time) {
	if v.kind == KindDate {
		t = t.Truncate(time.Second)
	}
	v.value = t
	v.null = false
}

// Clear resets to the zero time and marks the value null.
func (v *Date) Clear() {
	v.value = time.Time{}
	v.null = true
}

// Compare implements Comparable. Dates only compare with dates and
// timestamps only with timestamps.
func (v *Date) Compare(other Value) (int, error) {
	o, ok := other.(*Date)
	if !ok || o.kind != v.kind {
		return 0, kindMismatch("compare", v, other)
	}
	if r, done := compareNulls(v, o); done {
		return r, nil
	}
	return v.value.Compare(o.value), nil
}

// Clone implements Value.
func (v *Date) Clone() Value {
	c := *v
	return &c
}

// Raw implements Bindable.
func (v *Date) Raw() any {
	if v.null {
		return nil
	}
	return v.value
}

// Assign implements Bindable.
func (v *Date) Assign(src any) error {
	if src == nil {
		return v.assignNull(v.Clear)
	}
	t, err := toTime(v.name, v.kind, src)
	if err != nil {
		return err
	}
	v.Set(t)
	return nil
}

func (v *Date) String() string {
	if v.null {
		return nullText
	}
	if v.kind == KindDate {
		return v.value.Format(time.DateTime)
	}
	return v.value.Format(time.RFC3339Nano)
}
