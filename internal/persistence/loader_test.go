package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms/dbmstest"
	"github.com/nerrad567/gray-logic-dbms/internal/persistence"
)

const selectUser = "SELECT name, email, quota, created FROM users WHERE id = ?"

func scriptedDB(t *testing.T) (*dbms.Database, *dbmstest.Driver) {
	t.Helper()
	drv := dbmstest.New()
	cfg := dbms.DefaultConfig("main")
	cfg.RecoveryInterval = 0
	db, err := dbms.New(cfg, drv)
	require.NoError(t, err)
	require.NoError(t, db.Open(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.RegisterStatement("load-user", selectUser, dbms.ActionIgnore))

	created := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	drv.Handle(selectUser, func(args []any) dbmstest.Result {
		switch args[0] {
		case int64(1):
			return dbmstest.Result{Rows: [][]any{{"alice", "alice@example.org", 1.5, created}}}
		case int64(2):
			return dbmstest.Result{Rows: [][]any{{"bob", nil, "not a number", nil}}}
		case int64(3):
			return dbmstest.Result{Rows: [][]any{{"carol", "carol@example.org", 2.0, created}}}
		}
		return dbmstest.Result{}
	})
	return db, drv
}

func newUser(t *testing.T, c *persistence.Class, id int64) *persistence.Object {
	t.Helper()
	pk, err := c.NewPrimaryKey(id)
	require.NoError(t, err)
	obj, err := c.CreateObject(pk)
	require.NoError(t, err)
	return obj
}

func TestLoaderApply(t *testing.T) {
	ctx := context.Background()
	db, _ := scriptedDB(t)
	c := userClass(t)
	loader, err := persistence.NewLoader(c, "load-user")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, loader.Inputs())
	assert.Equal(t, "load-user", loader.Statement())

	obj := newUser(t, c, 1)
	refresh, err := loader.HasToRefresh(ctx, obj)
	require.NoError(t, err)
	assert.True(t, refresh)

	gs, err := db.AcquireStatement(ctx, "load-user")
	require.NoError(t, err)
	rc, err := loader.Apply(ctx, gs, obj)
	gs.Release()
	require.NoError(t, err)
	require.True(t, rc.Successful())

	assert.Equal(t, "user[id=1]{name=alice,email=alice@example.org,quota=1.5,created=2026-03-04T05:06:07Z}", obj.String())
	assert.True(t, obj.Loaded())
	refresh, err = loader.HasToRefresh(ctx, obj)
	require.NoError(t, err)
	assert.False(t, refresh)
}

func TestLoaderReusesLease(t *testing.T) {
	ctx := context.Background()
	db, _ := scriptedDB(t)
	c := userClass(t)
	loader, err := persistence.NewLoader(c, "load-user")
	require.NoError(t, err)

	gs, err := db.AcquireStatement(ctx, "load-user")
	require.NoError(t, err)
	defer gs.Release()

	alice := newUser(t, c, 1)
	carol := newUser(t, c, 3)
	missing := newUser(t, c, 99)

	rc, err := loader.Apply(ctx, gs, alice)
	require.NoError(t, err)
	require.True(t, rc.Successful())
	rc, err = loader.Apply(ctx, gs, carol)
	require.NoError(t, err)
	require.True(t, rc.Successful())
	rc, err = loader.Apply(ctx, gs, missing)
	require.NoError(t, err)
	assert.True(t, rc.NotFound())

	assert.Equal(t, "user[id=1]{name=alice,email=alice@example.org,quota=1.5,created=2026-03-04T05:06:07Z}", alice.String())
	assert.Equal(t, "user[id=3]{name=carol,email=carol@example.org,quota=2,created=2026-03-04T05:06:07Z}", carol.String())
	assert.False(t, missing.Loaded())
}

func TestLoaderNotFoundLeavesObjectUntouched(t *testing.T) {
	ctx := context.Background()
	db, _ := scriptedDB(t)
	c := userClass(t)
	loader, err := persistence.NewLoader(c, "load-user")
	require.NoError(t, err)

	obj := newUser(t, c, 99)
	name, err := obj.Get("name")
	require.NoError(t, err)
	require.NoError(t, name.Assign("cached"))
	before := obj.String()

	rc, err := loader.Load(ctx, db, obj)
	require.NoError(t, err)
	assert.True(t, rc.NotFound())
	assert.Equal(t, before, obj.String())
	assert.False(t, obj.Loaded())
}

func TestLoaderDecodeFailureLeavesObjectUntouched(t *testing.T) {
	ctx := context.Background()
	db, _ := scriptedDB(t)
	c := userClass(t)
	loader, err := persistence.NewLoader(c, "load-user")
	require.NoError(t, err)

	obj := newUser(t, c, 2)
	before := obj.String()
	_, err = loader.Load(ctx, db, obj)
	require.Error(t, err)
	assert.Equal(t, before, obj.String())
}

func TestLoaderCustomOutputs(t *testing.T) {
	ctx := context.Background()
	db, drv := scriptedDB(t)
	const selectName = "SELECT name FROM users WHERE id = ?"
	require.NoError(t, db.RegisterStatement("load-name", selectName, dbms.ActionIgnore))
	drv.Respond(selectName, dbmstest.Result{Rows: [][]any{{"carol"}}})

	c := userClass(t)
	loader, err := persistence.NewLoader(c, "load-name", persistence.WithOutputs("name"))
	require.NoError(t, err)
	obj := newUser(t, c, 3)
	rc, err := loader.Load(ctx, db, obj)
	require.NoError(t, err)
	require.True(t, rc.Successful())
	assert.Equal(t, "user[id=3]{name=carol,email=<null>,quota=<null>,created=<null>}", obj.String())

	_, err = persistence.NewLoader(c, "load-name", persistence.WithOutputs("nickname"))
	assert.ErrorIs(t, err, persistence.ErrUnknownColumn)
}

func TestLoaderStaleness(t *testing.T) {
	ctx := context.Background()
	db, _ := scriptedDB(t)
	c := userClass(t)
	loader, err := persistence.NewLoader(c, "load-user")
	require.NoError(t, err)

	ttl := time.Hour
	now := time.Now()
	loader.SetStaleness(func(_ context.Context, obj *persistence.Object) (bool, error) {
		return now.Sub(obj.LoadedAt()) > ttl, nil
	})

	obj := newUser(t, c, 1)
	refresh, err := loader.HasToRefresh(ctx, obj)
	require.NoError(t, err)
	assert.True(t, refresh)

	_, err = loader.Load(ctx, db, obj)
	require.NoError(t, err)
	refresh, err = loader.HasToRefresh(ctx, obj)
	require.NoError(t, err)
	assert.False(t, refresh)

	now = now.Add(2 * ttl)
	refresh, err = loader.HasToRefresh(ctx, obj)
	require.NoError(t, err)
	assert.True(t, refresh)
}

func TestLoaderRejectsOtherClass(t *testing.T) {
	ctx := context.Background()
	db, _ := scriptedDB(t)
	loader, err := persistence.NewLoader(userClass(t), "load-user")
	require.NoError(t, err)

	obj := newUser(t, userClass(t), 1)
	_, err = loader.Load(ctx, db, obj)
	assert.ErrorIs(t, err, persistence.ErrKeyMismatch)
}

func TestRecorderShapes(t *testing.T) {
	ctx := context.Background()
	db, drv := scriptedDB(t)
	c := userClass(t)
	obj := newUser(t, c, 5)
	name, err := obj.Get("name")
	require.NoError(t, err)
	require.NoError(t, name.Assign("dave"))

	var got []any
	record := func(args []any) dbmstest.Result {
		got = args
		return dbmstest.Result{}
	}

	tests := []struct {
		shape persistence.Shape
		expr  string
		want  []any
	}{
		{persistence.Insert, "INSERT INTO users (id, name, email, quota, created) VALUES (?, ?, ?, ?, ?)", []any{int64(5), "dave", nil, nil, nil}},
		{persistence.Update, "UPDATE users SET name = ?, email = ?, quota = ?, created = ? WHERE id = ?", []any{"dave", nil, nil, nil, int64(5)}},
		{persistence.Delete, "DELETE FROM users WHERE id = ?", []any{int64(5)}},
	}
	for _, tt := range tests {
		t.Run(tt.shape.String(), func(t *testing.T) {
			require.NoError(t, db.RegisterStatement(tt.shape.String()+"-user", tt.expr, dbms.ActionRollback))
			drv.Handle(tt.expr, record)

			r, err := persistence.NewRecorder(tt.shape, tt.shape.String()+"-user", obj)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, r.Shape())
			assert.Same(t, obj, r.Object())

			rc, err := r.Record(ctx, db)
			require.NoError(t, err)
			assert.True(t, rc.Successful())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecorderRejects(t *testing.T) {
	c := userClass(t)
	obj := newUser(t, c, 1)

	_, err := persistence.NewRecorder(persistence.Shape(0), "x", obj)
	assert.ErrorIs(t, err, persistence.ErrUnknownShape)
	_, err = persistence.NewRecorder(persistence.Insert, "x", obj, persistence.WithInputs("id", "nickname"))
	assert.ErrorIs(t, err, persistence.ErrUnknownColumn)
	_, err = persistence.NewRecorder(persistence.Insert, "x", obj, persistence.WithOutputs("name"))
	assert.Error(t, err)
}

func TestRecorderFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	db, drv := scriptedDB(t)
	const insert = "INSERT INTO users (id) VALUES (?)"
	require.NoError(t, db.RegisterStatement("insert-id", insert, dbms.ActionIgnore))
	drv.Respond(insert, dbmstest.Result{Code: dbmstest.CodeFailed, Message: "constraint"})

	c := userClass(t)
	r, err := persistence.NewRecorder(persistence.Insert, "insert-id", newUser(t, c, 1), persistence.WithInputs("id"))
	require.NoError(t, err)
	rc, err := r.Record(ctx, db)
	require.Error(t, err)
	assert.True(t, rc.Failed())
	assert.Equal(t, dbmstest.CodeFailed, rc.Code)
}
