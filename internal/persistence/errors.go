package persistence

import "github.com/cockroachdb/errors"

// Schema and mapping errors.
//
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrBuilderSpent is returned when a builder is used after Build.
	ErrBuilderSpent = errors.New("persistence: builder already built")

	// ErrEmptyPrimaryKey is returned when a primary key has no values.
	ErrEmptyPrimaryKey = errors.New("persistence: primary key has no values")

	// ErrNoPrimaryKey is returned when a class is built without a primary key.
	ErrNoPrimaryKey = errors.New("persistence: class has no primary key")

	// ErrNoMembers is returned when a class is built without members.
	ErrNoMembers = errors.New("persistence: class has no members")

	// ErrMemberInPrimaryKey is returned when a member name is already used by the primary key.
	ErrMemberInPrimaryKey = errors.New("persistence: member is part of the primary key")

	// ErrDuplicateMember is returned when two members share a name.
	ErrDuplicateMember = errors.New("persistence: duplicate member")

	// ErrKeyMismatch is returned when a primary key does not have the class's key shape.
	ErrKeyMismatch = errors.New("persistence: primary key does not match class")

	// ErrUnknownColumn is returned when a mapping names a value the object does not have.
	ErrUnknownColumn = errors.New("persistence: unknown column")

	// ErrUnknownShape is returned for a Recorder shape outside Insert, Update and Delete.
	ErrUnknownShape = errors.New("persistence: unknown statement shape")
)
