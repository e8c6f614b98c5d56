package sqlite_test

import (
	"context"
	"embed"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms/sqlite"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

const (
	insertUser = "INSERT INTO users (id, name, email, created) VALUES (?, ?, ?, ?)"
	findUser   = "SELECT name, email, created FROM users WHERE id = ?"
)

func openDatabase(t *testing.T, connections int, busyTimeout int) (*dbms.Database, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "test.db")

	cfg := dbms.DefaultConfig("main")
	cfg.Connections = connections
	cfg.RecoveryInterval = 0

	db, err := dbms.New(cfg, sqlite.New(sqlite.Config{Path: path, WALMode: true, BusyTimeout: busyTimeout}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Open(ctx))

	gc, err := db.AcquireConnection(ctx)
	require.NoError(t, err)
	session, err := sqlite.SessionOf(gc.Connection())
	require.NoError(t, err)
	require.NoError(t, session.Migrate(ctx, sqlite.NewMigrator(testMigrationsFS, "testdata")))
	gc.Release()

	require.NoError(t, db.RegisterStatement("insert-user", insertUser, dbms.ActionRollback))
	require.NoError(t, db.RegisterStatement("find-user", findUser, dbms.ActionIgnore))
	return db, path
}

func insert(t *testing.T, gs *dbms.GuardStatement, id int64, name string) dbms.ResultCode {
	t.Helper()
	idv := datatype.NewInteger("id", datatype.CanNotBeNull)
	idv.Set(id)
	namev := datatype.NewString("name", 64, datatype.CanNotBeNull)
	require.NoError(t, namev.Set(name))
	email := datatype.NewString("email", 128, datatype.CanBeNull)
	created := datatype.NewTimestamp("created", datatype.CanBeNull)
	created.Set(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	set, err := datatype.NewSet(idv, namev, email, created)
	require.NoError(t, err)
	require.NoError(t, gs.BindInputs(set))

	rc, err := gs.Execute(context.Background())
	require.NoError(t, err)
	return rc
}

func TestOpenCreatesFile(t *testing.T) {
	db, path := openDatabase(t, 2, 5)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, "sqlite", db.Backend())
	assert.Equal(t, 2, db.Stats().Open)
}

func TestInsertAndFind(t *testing.T) {
	ctx := context.Background()
	db, _ := openDatabase(t, 1, 5)

	gs, err := db.AcquireStatement(ctx, "insert-user")
	require.NoError(t, err)
	assert.True(t, insert(t, gs, 1, "alice").Successful())
	gs.Release()

	gs, err = db.AcquireStatement(ctx, "find-user")
	require.NoError(t, err)
	defer gs.Release()

	id := datatype.NewInteger("id", datatype.CanNotBeNull)
	id.Set(1)
	name := datatype.NewString("name", 64, datatype.CanBeNull)
	email := datatype.NewString("email", 128, datatype.CanBeNull)
	created := datatype.NewTimestamp("created", datatype.CanBeNull)
	require.NoError(t, gs.BindInput(id))
	require.NoError(t, gs.BindOutput(name))
	require.NoError(t, gs.BindOutput(email))
	require.NoError(t, gs.BindOutput(created))

	rc, err := gs.Execute(ctx)
	require.NoError(t, err)
	require.True(t, rc.Successful())

	ok, err := gs.Fetch(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", name.String())
	assert.True(t, email.IsNull())
	when, err := created.Value()
	require.NoError(t, err)
	assert.True(t, when.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	ok, err = gs.Fetch(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	db, _ := openDatabase(t, 1, 5)

	gs, err := db.AcquireStatement(ctx, "find-user")
	require.NoError(t, err)
	defer gs.Release()

	id := datatype.NewInteger("id", datatype.CanNotBeNull)
	id.Set(99)
	name := datatype.NewString("name", 64, datatype.CanBeNull)
	require.NoError(t, name.Set("unchanged"))
	require.NoError(t, gs.BindInput(id))
	require.NoError(t, gs.BindOutput(name))
	require.NoError(t, gs.BindOutput(datatype.NewString("email", 128, datatype.CanBeNull)))
	require.NoError(t, gs.BindOutput(datatype.NewTimestamp("created", datatype.CanBeNull)))

	rc, err := gs.Execute(ctx)
	require.NoError(t, err)
	assert.True(t, rc.NotFound())
	assert.Equal(t, sqlite.CodeDone, rc.Code)

	ok, err := gs.Fetch(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "unchanged", name.String())
}

func TestConstraintViolationRollsBack(t *testing.T) {
	ctx := context.Background()
	db, _ := openDatabase(t, 1, 5)

	gc, err := db.AcquireConnection(ctx)
	require.NoError(t, err)
	defer gc.Release()
	require.NoError(t, gc.Begin(ctx))

	gs, err := gc.Statement("insert-user")
	require.NoError(t, err)
	assert.True(t, insert(t, gs, 1, "alice").Successful())
	gs.Release()

	gs, err = gc.Statement("insert-user")
	require.NoError(t, err)
	idv := datatype.NewInteger("id", datatype.CanNotBeNull)
	idv.Set(1)
	require.NoError(t, gs.BindInput(idv))
	for _, v := range []datatype.Value{
		datatype.NewString("name", 64, datatype.CanBeNull),
		datatype.NewString("email", 128, datatype.CanBeNull),
		datatype.NewTimestamp("created", datatype.CanBeNull),
	} {
		require.NoError(t, gs.BindInput(v))
	}
	_, err = gs.Execute(ctx)
	require.Error(t, err)
	gs.Release()

	// The failure rolled the transaction back, taking the first row with it.
	assert.False(t, gc.Connection().InTransaction())
	find, err := gc.Statement("find-user")
	require.NoError(t, err)
	id := datatype.NewInteger("id", datatype.CanNotBeNull)
	id.Set(1)
	require.NoError(t, find.BindInput(id))
	require.NoError(t, find.BindOutput(datatype.NewString("name", 64, datatype.CanBeNull)))
	rc, err := find.Execute(ctx)
	require.NoError(t, err)
	assert.True(t, rc.NotFound())
	find.Release()
}

func TestConcurrentWriterIsLocked(t *testing.T) {
	ctx := context.Background()
	db, _ := openDatabase(t, 2, 0)

	first, err := db.AcquireConnection(ctx)
	require.NoError(t, err)
	defer first.Release()
	require.NoError(t, first.Begin(ctx))
	gs, err := first.Statement("insert-user")
	require.NoError(t, err)
	require.True(t, insert(t, gs, 1, "alice").Successful())
	gs.Release()

	second, err := db.AcquireStatement(ctx, "insert-user")
	require.NoError(t, err)
	defer second.Release()
	rc := insert(t, second, 2, "bob")
	assert.True(t, rc.Locked(), "got %s", rc)
	assert.Equal(t, dbms.StateOpen, second.Connection().State())

	require.NoError(t, first.Commit(ctx))
}

func TestSessionOfRejectsOtherBackends(t *testing.T) {
	db, err := dbms.New(dbms.DefaultConfig("x"), sqlite.New(sqlite.Config{Path: ":memory:"}))
	require.NoError(t, err)
	s, err := sqlite.SessionOf(db.Connections()[0])
	require.NoError(t, err)
	assert.Nil(t, s.Conn())
	assert.Equal(t, ":memory:", s.Path())
}
