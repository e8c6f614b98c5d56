package datatype

import (
	"bytes"
	"encoding/hex"

	"github.com/cockroachdb/errors"
)

// Block holds binary data. Short blocks are bounded by a maximum size; long
// blocks are unbounded and map to large objects on backends that have them.
type Block struct {
	base
	value   []byte
	maxSize int
}

// NewShortBlock creates a bounded binary value.
func NewShortBlock(name string, maxSize int, c Constraint) *Block {
	return &Block{base: newBase(name, KindShortBlock, c), maxSize: maxSize}
}

// NewLongBlock creates an unbounded binary value.
func NewLongBlock(name string, c Constraint) *Block {
	return &Block{base: newBase(name, KindLongBlock, c)}
}

// MaxSize returns the declared bound, 0 when unbounded.
func (v *Block) MaxSize() int { return v.maxSize }

// Len returns the number of bytes held.
func (v *Block) Len() int { return len(v.value) }

// Value returns a copy of the bytes, or ErrNullValue.
func (v *Block) Value() ([]byte, error) {
	if v.null {
		return nil, v.errNull()
	}
	return append([]byte(nil), v.value...), nil
}

// Set copies b into the value and clears the null flag.
func (v *Block) Set(b []byte) error {
	if v.maxSize > 0 && len(b) > v.maxSize {
		return errors.Wrapf(ErrTooLong, "block %q: %d > %d bytes", v.name, len(b), v.maxSize)
	}
	v.value = append(v.value[:0:0], b...)
	v.null = false
	return nil
}

// Clear drops the content and marks the value null.
func (v *Block) Clear() {
	v.value = nil
	v.null = true
}

// Compare implements Comparable. Short and long blocks do not compare with
// each other.
func (v *Block) Compare(other Value) (int, error) {
	o, ok := other.(*Block)
	if !ok || o.kind != v.kind {
		return 0, kindMismatch("compare", v, other)
	}
	if r, done := compareNulls(v, o); done {
		return r, nil
	}
	return bytes.Compare(v.value, o.value), nil
}

// Clone implements Value.
func (v *Block) Clone() Value {
	c := *v
	c.value = append([]byte(nil), v.value...)
	return &c
}

// Raw implements Bindable.
func (v *Block) Raw() any {
	if v.null {
		return nil
	}
	return append([]byte(nil), v.value...)
}

// Assign implements Bindable.
func (v *Block) Assign(src any) error {
	if src == nil {
		return v.assignNull(v.Clear)
	}
	b, err := toBytes(v.name, v.kind, src)
	if err != nil {
		return err
	}
	return v.Set(b)
}

func (v *Block) String() string {
	if v.null {
		return nullText
	}
	if len(v.value) > 32 {
		return hex.EncodeToString(v.value[:32]) + "..."
	}
	return hex.EncodeToString(v.value)
}
