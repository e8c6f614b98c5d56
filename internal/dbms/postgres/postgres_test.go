package postgres

import (
	"context"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

func TestCodeRoundTrip(t *testing.T) {
	for _, state := range []string{
		StateSuccess, StateNoData, StateNoDataFound, StateLockNotAvailable,
		StateDeadlockDetected, StateUnableToConnect, "23505", "42P01",
	} {
		code := Code(state)
		require.GreaterOrEqual(t, code, 0, state)
		assert.Equal(t, state, SQLState(code))
	}
	assert.Equal(t, 0, Code(StateSuccess))
	assert.Equal(t, dbms.CodeUnknown, Code("bad"))
	assert.Equal(t, dbms.CodeUnknown, Code("!!!!!"))
	assert.Empty(t, SQLState(dbms.CodeDisconnected))
}

func TestInterpreter(t *testing.T) {
	tests := []struct {
		state string
		want  dbms.Outcome
	}{
		{StateSuccess, dbms.OutcomeSuccessful},
		{StateNoData, dbms.OutcomeNotFound},
		{StateNoDataFound, dbms.OutcomeNotFound},
		{StateLockNotAvailable, dbms.OutcomeLocked},
		{StateDeadlockDetected, dbms.OutcomeLocked},
		{StateSerializationFailure, dbms.OutcomeLocked},
		{StateUnableToConnect, dbms.OutcomeLostConnection},
		{"08006", dbms.OutcomeLostConnection},
		{StateAdminShutdown, dbms.OutcomeLostConnection},
		{"23505", dbms.OutcomeOther},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpreter.Classify(Code(tt.state)))
		})
	}
	assert.Equal(t, dbms.OutcomeLostConnection, Interpreter.Classify(dbms.CodeDisconnected))
	assert.Equal(t, dbms.OutcomeOther, Interpreter.Classify(dbms.CodeUnknown))
}

func TestToNative(t *testing.T) {
	assert.NoError(t, toNative(nil, false))

	var native *dbms.NativeError
	err := toNative(errors.Wrap(&pgconn.PgError{Code: "23505", Message: "duplicate key"}, "exec"), false)
	require.ErrorAs(t, err, &native)
	assert.Equal(t, Code("23505"), native.Code)
	assert.Equal(t, "duplicate key", native.Message)

	err = toNative(io.ErrUnexpectedEOF, false)
	require.ErrorAs(t, err, &native)
	assert.Equal(t, dbms.CodeDisconnected, native.Code)

	err = toNative(errors.New("whatever"), true)
	require.ErrorAs(t, err, &native)
	assert.Equal(t, dbms.CodeDisconnected, native.Code)

	assert.ErrorIs(t, toNative(context.Canceled, false), context.Canceled)
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "find_user", identifier("find-user"))
	assert.Equal(t, "users_by_name_2", identifier("users.by name_2"))
}

func TestNewOutputKinds(t *testing.T) {
	d := New(Config{DSN: "postgres://localhost/x"})
	assert.Equal(t, DefaultConnectTimeout, d.cfg.ConnectTimeout)

	out := d.NewOutput(datatype.NewLongBlock("body", datatype.CanBeNull))
	_, ok := out.(dbms.LOBWriter)
	assert.True(t, ok)

	out = d.NewOutput(datatype.NewShortBlock("thumb", 64, datatype.CanBeNull))
	_, ok = out.(dbms.LOBWriter)
	assert.False(t, ok)
}

func TestCursorServesBufferedRows(t *testing.T) {
	c := &cursor{rows: [][]any{{int64(1), "a"}, {int64(2), "b"}}}
	var id, name any
	dest := []any{&id, &name}

	assert.Error(t, c.Scan(dest))
	ok, err := c.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, c.Scan(dest))
	assert.Equal(t, "a", name)

	ok, _ = c.Next(context.Background())
	require.True(t, ok)
	require.NoError(t, c.Scan(dest))
	assert.Equal(t, int64(2), id)

	ok, _ = c.Next(context.Background())
	assert.False(t, ok)
	assert.Nil(t, c.rows)
}

func TestLOBWriteBeforeFetch(t *testing.T) {
	b := newLOBOutput(datatype.NewLongBlock("body", datatype.CanBeNull))
	assert.ErrorIs(t, b.Write(context.Background()), dbms.ErrNotExecuted)
}
