package datatype

import "github.com/cockroachdb/errors"

// Sentinel errors for value handling.
//
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNullValue is returned when reading a value that is null.
	ErrNullValue = errors.New("datatype: value is null")

	// ErrKindMismatch is returned when a value is narrowed or compared
	// against the wrong kind.
	ErrKindMismatch = errors.New("datatype: kind mismatch")

	// ErrNullNotAllowed is returned when a null is stored into, or encoded
	// from, a value declared CanNotBeNull.
	ErrNullNotAllowed = errors.New("datatype: null not allowed")

	// ErrTooLong is returned when a string or short block exceeds its maximum size.
	ErrTooLong = errors.New("datatype: value exceeds maximum size")

	// ErrUnsupportedSource is returned when Assign receives a Go type it cannot convert.
	ErrUnsupportedSource = errors.New("datatype: unsupported source type")

	// ErrDuplicateName is returned when a Set already holds a value with the same name.
	ErrDuplicateName = errors.New("datatype: duplicate value name")

	// ErrNoSuchValue is returned when a Set has no value with the requested name.
	ErrNoSuchValue = errors.New("datatype: no such value")
)
