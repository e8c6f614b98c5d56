// Package datatype provides the typed, nullable values exchanged between
// callers and database backends.
//
// Every value carries a name (its bind key), a kind fixed at construction and
// a nullability constraint. The same value type is used as a statement input
// (encoded into a native call) and as a statement output (decoded from a
// native row).
//
// # Kinds
//
// The set of kinds is closed:
//   - Integer   (int64)
//   - Float     (float64)
//   - String    (bounded or unbounded text)
//   - Date      (second precision) and Timestamp (nanosecond precision)
//   - ShortBlock (bounded binary) and LongBlock (unbounded binary, large objects)
//
// Value is a sealed interface, so code outside this package cannot add kinds.
// Narrowing a Value to its concrete type goes through the checked helpers
// AsInteger, AsFloat, AsString, AsDate and AsBlock, which return
// ErrKindMismatch instead of reinterpreting the value.
//
// # Null handling
//
// Reading a null value fails with ErrNullValue. Setting a value always clears
// the null flag. Clear resets the value to the kind's default and marks it
// null. A value built with CanNotBeNull starts non-null at the default.
//
// # Sets
//
// Set is an ordered collection of values indexed by name. It is used both as a
// statement's parameter list and as an object's field list.
//
// Thread Safety:
//   - Values and Sets are not safe for concurrent mutation. Ownership passes
//     with the lease of the statement they are bound to.
package datatype
