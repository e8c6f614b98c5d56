package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms/postgres"
)

// testDSNEnv names the environment variable holding a disposable database.
const testDSNEnv = "GRAYDB_TEST_POSTGRES_DSN"

func skipIfNoPostgres(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skip(testDSNEnv + " not set, skipping integration test")
	}
	return dsn
}

func openDatabase(t *testing.T) *dbms.Database {
	t.Helper()
	dsn := skipIfNoPostgres(t)
	cfg := dbms.DefaultConfig("pg")
	cfg.Connections = 2
	db, err := dbms.New(cfg, postgres.New(postgres.Config{DSN: dsn}))
	require.NoError(t, err)
	require.NoError(t, db.Open(context.Background()))
	t.Cleanup(func() { _ = db.Close() })

	for name, expr := range map[string]string{
		"create": `CREATE TEMP TABLE IF NOT EXISTS docs (id BIGINT PRIMARY KEY, title TEXT, body OID)`,
		"insert": `INSERT INTO docs (id, title, body) VALUES ($1, $2, lo_from_bytea(0, $3))`,
		"find":   `SELECT title, body FROM docs WHERE id = $1`,
	} {
		require.NoError(t, db.RegisterStatement(name, expr, dbms.ActionRollback))
	}
	return db
}

func TestPostgresRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openDatabase(t)

	gc, err := db.AcquireConnection(ctx)
	require.NoError(t, err)
	defer gc.Release()

	create, err := gc.Statement("create")
	require.NoError(t, err)
	_, err = create.Execute(ctx)
	require.NoError(t, err)
	create.Release()

	insert, err := gc.Statement("insert")
	require.NoError(t, err)
	id := datatype.NewInteger("id", datatype.CanNotBeNull)
	id.Set(1)
	title := datatype.NewString("title", 64, datatype.CanBeNull)
	require.NoError(t, title.Set("manual"))
	body := datatype.NewLongBlock("body", datatype.CanBeNull)
	require.NoError(t, body.Set([]byte("first")))
	require.NoError(t, insert.BindInput(id))
	require.NoError(t, insert.BindInput(title))
	require.NoError(t, insert.BindInput(body))
	rc, err := insert.Execute(ctx)
	require.NoError(t, err)
	require.True(t, rc.Successful())
	insert.Release()

	find, err := gc.Statement("find")
	require.NoError(t, err)
	defer find.Release()
	gotTitle := datatype.NewString("title", 64, datatype.CanBeNull)
	gotBody := datatype.NewLongBlock("body", datatype.CanBeNull)
	require.NoError(t, find.BindInput(id))
	require.NoError(t, find.BindOutput(gotTitle))
	require.NoError(t, find.BindOutput(gotBody))

	rc, err = find.Execute(ctx)
	require.NoError(t, err)
	require.True(t, rc.Successful())
	ok, err := find.Fetch(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "manual", gotTitle.String())
	data, err := gotBody.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)

	require.NoError(t, gotBody.Set([]byte("second")))
	require.NoError(t, find.WriteLOB(ctx, "body"))

	// Missing key is NotFound.
	id.Set(2)
	rc, err = find.Execute(ctx)
	require.NoError(t, err)
	assert.True(t, rc.NotFound())
	assert.Equal(t, postgres.Code(postgres.StateNoData), rc.Code)
}
