package influxdb_test

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms/dbmstest"
	"github.com/nerrad567/gray-logic-dbms/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dbms/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and collects line protocol posted to /api/v2/write.
type fakeInflux struct {
	*httptest.Server

	mu    sync.Mutex
	lines []string
	query string
	fail  bool
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		fail := f.fail
		f.mu.Unlock()
		if fail {
			http.Error(w, `{"code":"invalid","message":"bad point"}`, http.StatusBadRequest)
			return
		}
		var body io.Reader = r.Body
		if r.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			body = gz
		}
		data, err := io.ReadAll(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.query = r.URL.RawQuery
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) written(measurement string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, l := range f.lines {
		if strings.HasPrefix(l, measurement+",") {
			out = append(out, l)
		}
	}
	return out
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "graydb-dev-token",
		Org:           "graydb",
		Bucket:        "dbms",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connect(t *testing.T) (*influxdb.Client, *fakeInflux) {
	t.Helper()
	srv := newFakeInflux(t)
	client, err := influxdb.Connect(testConfig(srv.URL), "graydb-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func openDB(t *testing.T) (*dbms.Database, *dbmstest.Driver) {
	t.Helper()
	cfg := dbms.DefaultConfig("users")
	cfg.Connections = 2
	cfg.RecoveryInterval = 0
	cfg.WaitForRecovery = false
	drv := dbmstest.New()
	db, err := dbms.New(cfg, drv)
	require.NoError(t, err)
	require.NoError(t, db.Open(context.Background()))
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.RegisterStatement("ping", "SELECT 1", dbms.ActionIgnore))
	return db, drv
}

func TestConnect(t *testing.T) {
	client, _ := connect(t)

	assert.True(t, client.IsConnected())
	assert.NoError(t, client.HealthCheck(context.Background()))

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.False(t, client.IsConnected())
	assert.ErrorIs(t, client.HealthCheck(context.Background()), influxdb.ErrNotConnected)

	// Flush after Close is a no-op.
	client.Flush()
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg, "x")
	assert.ErrorIs(t, err, influxdb.ErrDisabled)
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := influxdb.Connect(testConfig(url), "x")
	assert.ErrorIs(t, err, influxdb.ErrConnectionFailed)
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	srv := newFakeInflux(t)
	cfg := testConfig(srv.URL)
	cfg.BatchSize = -1
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(cfg, "x")
	require.NoError(t, err)
	require.NoError(t, client.Close())
}

func TestClose_Nil(t *testing.T) {
	var c *influxdb.Client
	assert.NoError(t, c.Close())
}

func TestWritePoint_AddsInstanceTag(t *testing.T) {
	client, srv := connect(t)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tags := map[string]string{"k": "v"}
	client.WritePointWithTime("custom", tags, map[string]any{"value": 1.5}, ts)
	assert.Equal(t, map[string]string{"k": "v"}, tags, "caller's tags are not modified")
	client.WritePoint("custom", nil, map[string]any{"value": 2.0})
	client.Flush()

	lines := srv.written("custom")
	require.Len(t, lines, 2)
	assert.Equal(t, "custom,instance=graydb-test,k=v value=1.5 1772366400000000000", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "custom,instance=graydb-test value=2 "))
	assert.Contains(t, srv.query, "bucket=dbms")
	assert.Contains(t, srv.query, "org=graydb")
}

func TestRecoveryHandler(t *testing.T) {
	client, srv := connect(t)
	db, drv := openDB(t)
	db.AddFailRecoveryHandler(client.RecoveryHandler())

	ctx := context.Background()
	drv.FailOpens("users-0", 1)
	drv.Sever("users-0")
	gs, err := db.AcquireStatement(ctx, "ping")
	require.NoError(t, err)
	_, err = gs.Execute(ctx)
	require.ErrorIs(t, err, dbms.ErrLostConnection)
	gs.Release()

	client.Flush()
	lines := srv.written(influxdb.MeasurementRecovery)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0],
		"dbms_recovery,connection=users-0,database=users,instance=graydb-test try_counter=1i "), lines[0])
}

func TestRecoveryHandler_Disconnected(t *testing.T) {
	client, _ := connect(t)
	db, _ := openDB(t)
	require.NoError(t, client.Close())

	err := client.RecoveryHandler().Apply(context.Background(), db.Connections()[0], 1)
	assert.ErrorIs(t, err, influxdb.ErrNotConnected)
}

func TestWritePoolStats(t *testing.T) {
	client, srv := connect(t)
	db, _ := openDB(t)

	client.WritePoolStats(db.Stats())
	client.Flush()

	pool := srv.written(influxdb.MeasurementPool)
	require.Len(t, pool, 1)
	assert.Contains(t, pool[0], "dbms_pool,backend=dbmstest,database=users,instance=graydb-test ")
	assert.Contains(t, pool[0], "broken=0i")
	assert.Contains(t, pool[0], "connections=2i")
	assert.Contains(t, pool[0], "open=2i")
	assert.Contains(t, pool[0], "statements=1i")

	conns := srv.written(influxdb.MeasurementConnection)
	require.Len(t, conns, 2)
	assert.Contains(t, conns[0], "connection=users-0")
	assert.Contains(t, conns[0], `state="open"`)
	assert.Contains(t, conns[0], "generation=1u")
	assert.Contains(t, conns[1], "connection=users-1")
}

func TestRunStatsReporter(t *testing.T) {
	client, srv := connect(t)
	db, _ := openDB(t)
	reg := dbms.NewRegistry()
	require.NoError(t, reg.Add(db))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		client.RunStatsReporter(ctx, reg, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		client.Flush()
		return len(srv.written(influxdb.MeasurementPool)) >= 2
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunStatsReporter did not stop")
	}
}

func TestSetOnError(t *testing.T) {
	srv := newFakeInflux(t)
	client, err := influxdb.Connect(testConfig(srv.URL), "x")
	require.NoError(t, err)
	defer client.Close()

	errs := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})

	srv.mu.Lock()
	srv.fail = true
	srv.mu.Unlock()
	client.WritePoint("custom", nil, map[string]any{"value": 1})
	client.Flush()

	select {
	case err := <-errs:
		assert.Error(t, err)
		assert.GreaterOrEqual(t, client.WriteErrors(), uint64(1))
	case <-time.After(5 * time.Second):
		t.Fatal("write error not reported")
	}
}
