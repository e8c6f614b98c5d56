package datatype

import "fmt"

// Kind identifies the scalar type held by a Value.
type Kind int

// Supported kinds.
const (
	KindInteger Kind = iota + 1
	KindFloat
	KindString
	KindDate
	KindTimestamp
	KindShortBlock
	KindLongBlock
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	case KindShortBlock:
		return "short-block"
	case KindLongBlock:
		return "long-block"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsBlock reports whether the kind holds binary data.
func (k Kind) IsBlock() bool {
	return k == KindShortBlock || k == KindLongBlock
}

// IsTime reports whether the kind holds a point in time.
func (k Kind) IsTime() bool {
	return k == KindDate || k == KindTimestamp
}

// Constraint declares whether a value may hold null.
type Constraint int

const (
	// CanNotBeNull values start non-null and reject null on assignment and encoding.
	CanNotBeNull Constraint = iota
	// CanBeNull values start null.
	CanBeNull
)

func (c Constraint) String() string {
	if c == CanBeNull {
		return "can-be-null"
	}
	return "can-not-be-null"
}
