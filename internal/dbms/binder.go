package dbms

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
)

// Input carries one value into a native call. Inputs never decode.
type Input interface {
	Value() datatype.Value
	// Prepare attaches the binder to cursor at a 0-based position. Backends
	// that count from 1 translate internally.
	Prepare(cursor Cursor, position int) error
	// Encode returns the value's native representation, valid for one call.
	Encode() (any, error)
	Release()
}

// Output carries one native column back into a value. Outputs never encode.
type Output interface {
	Value() datatype.Value
	Prepare(cursor Cursor, position int) error
	// Destination is the scan target for the column.
	Destination() any
	// Decode stores the scanned column into the value.
	Decode(ctx context.Context) error
	Release()
}

// LOBWriter is implemented by outputs that can stream their value back
// into a large object located by a previous fetch.
type LOBWriter interface {
	Write(ctx context.Context) error
}

// GenericInput is an Input encoding through datatype.Bindable. Backends
// whose client accepts plain Go values use it directly or embed it.
type GenericInput struct {
	value    datatype.Value
	cursor   Cursor
	position int
}

// NewGenericInput creates an input for v.
func NewGenericInput(v datatype.Value) *GenericInput {
	return &GenericInput{value: v, position: -1}
}

func (b *GenericInput) Value() datatype.Value { return b.value }

// Prepare implements Input.
func (b *GenericInput) Prepare(cursor Cursor, position int) error {
	b.cursor = cursor
	b.position = position
	return nil
}

// Cursor returns the cursor the binder is attached to, or nil.
func (b *GenericInput) Cursor() Cursor { return b.cursor }

// Position returns the 0-based position, or -1 before Prepare.
func (b *GenericInput) Position() int { return b.position }

// Encode implements Input. A null value declared CanNotBeNull is rejected.
func (b *GenericInput) Encode() (any, error) {
	if b.value.IsNull() && !b.value.IsNullable() {
		return nil, errors.Wrapf(datatype.ErrNullNotAllowed, "input %q", b.value.Name())
	}
	return b.value.Raw(), nil
}

// Release implements Input.
func (b *GenericInput) Release() {
	b.cursor = nil
	b.position = -1
}

// GenericOutput is an Output scanning into an untyped destination and
// decoding through datatype.Bindable.
type GenericOutput struct {
	value    datatype.Value
	cursor   Cursor
	position int
	dest     any
}

// NewGenericOutput creates an output for v.
func NewGenericOutput(v datatype.Value) *GenericOutput {
	return &GenericOutput{value: v, position: -1}
}

func (b *GenericOutput) Value() datatype.Value { return b.value }

// Prepare implements Output.
func (b *GenericOutput) Prepare(cursor Cursor, position int) error {
	b.cursor = cursor
	b.position = position
	return nil
}

// Cursor returns the cursor the binder is attached to, or nil.
func (b *GenericOutput) Cursor() Cursor { return b.cursor }

// Position returns the 0-based position, or -1 before Prepare.
func (b *GenericOutput) Position() int { return b.position }

// Destination implements Output.
func (b *GenericOutput) Destination() any { return &b.dest }

// Scanned returns the raw column scanned by the last fetch.
func (b *GenericOutput) Scanned() any { return b.dest }

// Decode implements Output.
func (b *GenericOutput) Decode(context.Context) error {
	if err := b.value.Assign(b.dest); err != nil {
		return errors.Wrapf(err, "output %q", b.value.Name())
	}
	return nil
}

// Release implements Output.
func (b *GenericOutput) Release() {
	b.cursor = nil
	b.position = -1
	b.dest = nil
}
