package dbms_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms/dbmstest"
)

// counterLog records the try counters passed to a FailRecoveryHandler.
type counterLog struct {
	mu    sync.Mutex
	tries []int
}

func (l *counterLog) Apply(_ context.Context, _ *dbms.Connection, try int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tries = append(l.tries, try)
	return nil
}

func (l *counterLog) get() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.tries...)
}

func TestRecoveryCounters(t *testing.T) {
	ctx := context.Background()
	db, drv := openTestDB(t, testConfig(1))
	handler := &counterLog{}
	db.AddFailRecoveryHandler(handler)
	require.NoError(t, db.RegisterStatement("ping", "SELECT 1", dbms.ActionIgnore))
	conn := db.Connections()[0]

	drv.FailOpens("main-0", 2)
	drv.Sever("main-0")

	// First attempt: triggered by the lost connection on the caller's path.
	gs, err := db.AcquireStatement(ctx, "ping")
	require.NoError(t, err)
	_, err = gs.Execute(ctx)
	require.ErrorIs(t, err, dbms.ErrLostConnection)
	gs.Release()
	assert.Equal(t, dbms.StateBroken, conn.State())
	assert.Equal(t, 1, conn.TryCounter())

	// Second attempt fails too.
	err = db.Recover(ctx, conn)
	require.ErrorIs(t, err, dbms.ErrLostConnection)
	assert.Equal(t, dbms.StateBroken, conn.State())
	assert.Equal(t, 2, conn.TryCounter())

	// Third attempt succeeds.
	require.NoError(t, db.Recover(ctx, conn))
	assert.Equal(t, dbms.StateOpen, conn.State())
	assert.Equal(t, 0, conn.TryCounter())
	assert.Equal(t, []int{1, 2}, handler.get())
	assert.Equal(t, uint64(2), conn.Generation())
}

func TestRecoveryReprepares(t *testing.T) {
	ctx := context.Background()
	db, drv := openTestDB(t, testConfig(1))
	require.NoError(t, db.RegisterStatement("ping", "SELECT 1", dbms.ActionIgnore))

	run := func() error {
		gs, err := db.AcquireStatement(ctx, "ping")
		require.NoError(t, err)
		defer gs.Release()
		_, err = gs.Execute(ctx)
		return err
	}

	require.NoError(t, run())
	assert.Equal(t, 1, drv.Count("prepare main-0 ping"))

	drv.Sever("main-0")
	assert.ErrorIs(t, run(), dbms.ErrLostConnection)
	assert.Equal(t, 2, drv.Count("prepare main-0 ping"), "recovery prepares the statement again")
	assert.True(t, db.Connections()[0].IsAvailable())

	require.NoError(t, run())
	assert.Equal(t, 2, drv.Count("prepare main-0 ping"), "no prepare on the healed connection")
}

func TestCheckoutRetryBudget(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(1)
	cfg.MaxRecoveryAttempts = 2
	db, drv := newTestDB(t, cfg)
	handler := &counterLog{}
	db.AddFailRecoveryHandler(handler)

	drv.FailOpens("main-0", 10)
	require.ErrorIs(t, db.Open(ctx), dbms.ErrNoConnection)

	_, err := db.AcquireConnection(ctx)
	require.ErrorIs(t, err, dbms.ErrRecoveryExhausted)
	assert.NotEmpty(t, errors.GetAllHints(err))
	assert.Equal(t, []int{1, 2}, handler.get())

	// Explicit recovery is not bounded by the budget.
	drv.FailOpens("main-0", 0)
	require.NoError(t, db.Recover(ctx, db.Connections()[0]))

	gc, err := db.AcquireConnection(ctx)
	require.NoError(t, err)
	gc.Release()
}

func TestCheckoutFailFast(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(1)
	cfg.WaitForRecovery = false
	cfg.MaxRecoveryAttempts = 0
	db, drv := newTestDB(t, cfg)

	drv.FailOpens("main-0", 2)
	require.Error(t, db.Open(ctx))

	_, err := db.AcquireConnection(ctx)
	require.ErrorIs(t, err, dbms.ErrLostConnection, "one failed attempt fails the checkout")

	gc, err := db.AcquireConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, dbms.StateOpen, gc.Connection().State())
	gc.Release()
}

func TestCheckoutBlocksUntilRecovered(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(1)
	cfg.MaxRecoveryAttempts = 0
	db, drv := newTestDB(t, cfg)
	handler := &counterLog{}
	db.AddFailRecoveryHandler(handler)

	drv.FailOpens("main-0", 4)
	require.Error(t, db.Open(ctx))

	gc, err := db.AcquireConnection(ctx)
	require.NoError(t, err)
	defer gc.Release()
	assert.Equal(t, []int{1, 2, 3}, handler.get())
	assert.Equal(t, 0, gc.Connection().TryCounter())
}

func TestFailRecoveryHandlerPanicsAreContained(t *testing.T) {
	ctx := context.Background()
	db, drv := openTestDB(t, testConfig(1))
	after := &counterLog{}
	db.AddFailRecoveryHandler(dbms.FailRecoveryHandlerFunc(func(context.Context, *dbms.Connection, int) error {
		panic("handler bug")
	}))
	db.AddFailRecoveryHandler(dbms.FailRecoveryHandlerFunc(func(context.Context, *dbms.Connection, int) error {
		return errors.New("handler failed")
	}))
	db.AddFailRecoveryHandler(after)

	drv.FailOpens("main-0", 1)
	assert.NotPanics(t, func() {
		err := db.Recover(ctx, db.Connections()[0])
		assert.Error(t, err)
	})
	assert.Equal(t, []int{1}, after.get())
}

func TestRecoverByName(t *testing.T) {
	ctx := context.Background()
	db, drv := openTestDB(t, testConfig(1))

	require.NoError(t, db.RecoverByName(ctx, "main-0"))
	assert.Equal(t, 2, drv.Count("open main-0"))
	assert.ErrorIs(t, db.RecoverByName(ctx, "main-9"), dbms.ErrNoConnection)
}

func TestRecoveryThrottle(t *testing.T) {
	cfg := testConfig(1)
	cfg.RecoveryInterval = dbms.DefaultRecoveryInterval * 60
	db, _ := openTestDB(t, cfg)
	conn := db.Connections()[0]

	require.NoError(t, db.Recover(context.Background(), conn))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := db.Recover(ctx, conn)
	require.Error(t, err, "a second attempt inside the interval waits for the limiter")
	assert.Equal(t, dbms.StateOpen, conn.State())
}

func TestInterpreterClassification(t *testing.T) {
	assert.Equal(t, dbms.OutcomeNotFound, dbmstest.Interpreter.Classify(dbmstest.CodeNoData))
	assert.Equal(t, dbms.OutcomeOther, dbmstest.Interpreter.Classify(12345))

	fn := dbms.InterpreterFunc(func(code int) dbms.Outcome {
		if code < 0 {
			return dbms.OutcomeLostConnection
		}
		return dbms.OutcomeSuccessful
	})
	assert.Equal(t, dbms.OutcomeLostConnection, fn.Classify(dbms.CodeDisconnected))

	rc := dbms.ResultCode{Code: 5, Outcome: dbms.OutcomeLocked}
	assert.True(t, rc.Locked())
	assert.True(t, rc.Failed())
	assert.False(t, dbms.ResultCode{Outcome: dbms.OutcomeNotFound}.Failed())
	assert.True(t, dbms.Success().Successful())
}

// eventLog counts log messages by text.
type eventLog struct {
	mu     sync.Mutex
	counts map[string]int
}

func (l *eventLog) add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = make(map[string]int)
	}
	l.counts[msg]++
}

func (l *eventLog) count(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[msg]
}

func (l *eventLog) Debug(msg string, _ ...any) { l.add(msg) }
func (l *eventLog) Info(msg string, _ ...any)  { l.add(msg) }
func (l *eventLog) Warn(msg string, _ ...any)  { l.add(msg) }
func (l *eventLog) Error(msg string, _ ...any) { l.add(msg) }

func TestCheckoutWaitsOutThrottleUntilDeadline(t *testing.T) {
	cfg := testConfig(1)
	cfg.RecoveryInterval = time.Hour
	cfg.MaxRecoveryAttempts = 0
	db, drv := openTestDB(t, cfg)
	logs := &eventLog{}
	db.SetLogger(logs)
	conn := db.Connections()[0]

	// Spend the limiter's token on a failed attempt.
	drv.FailOpens("main-0", 1000)
	require.Error(t, db.Recover(context.Background(), conn))
	require.Equal(t, dbms.StateBroken, conn.State())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := db.AcquireConnection(ctx)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond, "checkout waits for the deadline")
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, 1, logs.count("recovery throttled"), "one wait, no retry loop")
	assert.Equal(t, 1, drv.Count("open-fail main-0"), "no attempt inside the interval")
	assert.Equal(t, 1, conn.TryCounter())
}
