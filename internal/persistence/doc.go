// Package persistence maps rows identified by a primary key onto
// in-memory objects whose fields are datatype values.
//
// A Class is built once with ClassBuilder: its primary key shape (a
// PrimaryKey built with PrimaryKeyBuilder) and its member templates. Both
// builders are one-shot and fail fast; they never return a partial class.
// Class.CreateObject clones the templates for each new Object.
//
// Reading and writing go through a registered dbms statement:
//
//	Loader    SELECT-shaped, keyed by the object's primary key; decodes one row
//	Recorder  INSERT/UPDATE/DELETE-shaped; encodes the object's current values
//
// Both share an Accessor: the statement name plus the mapping between the
// object's values and the statement's input and output positions.
//
// Result codes are returned as classified by the backend. NotFound from a
// Loader is a normal outcome and leaves the object untouched; so does any
// failure while decoding, because rows are decoded into scratch copies
// first.
//
// Thread Safety:
//
// Classes and primary keys are immutable once built and may be shared.
// Objects, Loaders and Recorders are not safe for concurrent use; the
// caller that holds an object owns it.
package persistence
