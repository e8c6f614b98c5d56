package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
	"github.com/nerrad567/gray-logic-dbms/internal/infrastructure/config"
)

// writeFixture creates a SQLite database config with one migration and
// returns the config file path.
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	migrations := filepath.Join(dir, "migrations")
	require.NoError(t, os.MkdirAll(migrations, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(migrations, "20260101_000000_users.up.sql"),
		[]byte("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(migrations, "20260101_000000_users.down.sql"),
		[]byte("DROP TABLE users;"), 0o600))

	content := `
service:
  id: graydb-test
databases:
  - name: users
    backend: sqlite
    connections: 2
    sqlite:
      path: "` + filepath.Join(dir, "data", "users.db") + `"
      wal_mode: true
      migrations: "` + migrations + `"
    statements:
      - name: find_user
        expression: "SELECT name FROM users WHERE id = ?"
      - name: insert_user
        expression: "INSERT INTO users (id, name) VALUES (?, ?)"
        on_error: rollback
logging:
  level: error
`
	path := filepath.Join(dir, "graydbms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestCheck(t *testing.T) {
	path := writeFixture(t)

	out, err := execute(context.Background(), t, "check", "--config", path)
	require.NoError(t, err)

	var stats []dbms.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, "users", stats[0].Database)
	assert.Equal(t, "sqlite", stats[0].Backend)
	assert.Equal(t, 2, stats[0].Open)
	assert.Equal(t, 2, stats[0].Statements)
}

func TestCheck_InvalidConfig(t *testing.T) {
	_, err := execute(context.Background(), t, "check", "--config", "/nonexistent/graydbms.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestMigrateStatusUpDown(t *testing.T) {
	path := writeFixture(t)
	ctx := context.Background()

	out, err := execute(ctx, t, "migrate", "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "pending  20260101_000000  users")

	out, err = execute(ctx, t, "migrate", "up", "--config", path, "--db", "users")
	require.NoError(t, err)
	assert.Contains(t, out, "users: up to date")

	out, err = execute(ctx, t, "migrate", "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "applied  20260101_000000")

	out, err = execute(ctx, t, "migrate", "down", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "rolled back")

	_, err = execute(ctx, t, "migrate", "status", "--config", path, "--db", "orders")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no database named "orders"`)
}

func TestRecover(t *testing.T) {
	path := writeFixture(t)

	out, err := execute(context.Background(), t, "recover", "users", "users-1", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "users-1 recovered\n", out)

	_, err = execute(context.Background(), t, "recover", "orders", "--config", path)
	require.ErrorIs(t, err, dbms.ErrDatabaseNotFound)
}

func TestServe_StopsOnCancel(t *testing.T) {
	path := writeFixture(t)
	configPath = path
	cfg, log, err := loadConfig()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, log) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestPoolConfig(t *testing.T) {
	pc, err := poolConfig(config.DatabaseConfig{
		Name:        "users",
		Connections: 3,
		Selector:    "lru",
		Recovery:    config.RecoveryConfig{FailFast: true, MaxAttempts: -1, Interval: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "users", pc.Name)
	assert.Equal(t, 3, pc.Connections)
	assert.False(t, pc.WaitForRecovery)
	assert.Equal(t, 0, pc.MaxRecoveryAttempts)
	assert.Equal(t, 2*time.Second, pc.RecoveryInterval)
	assert.IsType(t, dbms.LeastRecentlyUsed{}, pc.Selector)

	_, err = poolConfig(config.DatabaseConfig{Selector: "random"})
	assert.Error(t, err)
}

func TestNewDriver(t *testing.T) {
	for _, backend := range []string{config.BackendSQLite, config.BackendPostgres, config.BackendLDAP} {
		d, err := newDriver(config.DatabaseConfig{Backend: backend})
		require.NoError(t, err)
		assert.True(t, strings.EqualFold(d.Name(), backend), "driver %s for backend %s", d.Name(), backend)
	}
	_, err := newDriver(config.DatabaseConfig{Backend: "oracle"})
	assert.Error(t, err)
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("GRAYDB_CONFIG", "")
	assert.Equal(t, defaultConfigPath, getConfigPath())

	t.Setenv("GRAYDB_CONFIG", "/etc/graydbms.yaml")
	assert.Equal(t, "/etc/graydbms.yaml", getConfigPath())
}
