package dbms

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
)

// State is the lifecycle state of a Connection.
type State string

// Connection states. A connection moves Closed → Opening → Open and leaves
// Open through Closing (orderly) or Broken (lost). Only recovery returns a
// Broken connection to Open.
const (
	StateClosed  State = "closed"
	StateOpening State = "opening"
	StateOpen    State = "open"
	StateClosing State = "closing"
	StateBroken  State = "broken"
)

// Connection is one live session to a backend, owned by a Database.
type Connection struct {
	db      *Database
	name    string
	index   int
	session Session
	limiter *rate.Limiter

	mu            sync.RWMutex
	state         State
	tryCounter    int
	generation    uint64
	lastUsed      time.Time
	inTransaction bool

	// Guarded by db.mu.
	leased bool
	leases uint64

	// Owned by the lease holder.
	statements map[string]*Statement
}

func newConnection(db *Database, index int, name string) *Connection {
	limit := rate.Inf
	if db.cfg.RecoveryInterval > 0 {
		limit = rate.Every(db.cfg.RecoveryInterval)
	}
	return &Connection{
		db:         db,
		name:       name,
		index:      index,
		session:    db.driver.NewSession(name),
		limiter:    rate.NewLimiter(limit, 1),
		state:      StateClosed,
		statements: make(map[string]*Statement),
	}
}

// Name returns the connection name, unique within its database.
func (c *Connection) Name() string { return c.name }

// Index returns the connection's position in the pool.
func (c *Connection) Index() int { return c.index }

// Database returns the owning database's name.
func (c *Connection) Database() string { return c.db.cfg.Name }

// Session returns the backend session. Callers must hold a lease on the
// connection while using it.
func (c *Connection) Session() Session { return c.session }

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsAvailable reports whether the connection is Open.
func (c *Connection) IsAvailable() bool {
	return c.State() == StateOpen
}

// TryCounter returns the number of consecutive failed recovery attempts,
// including one in progress. It is 0 while the connection is healthy.
func (c *Connection) TryCounter() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tryCounter
}

// Generation increases every time the session is (re)opened. Statements
// prepared against an older generation are re-prepared before use.
func (c *Connection) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// LastUsed returns when the connection last executed a command.
func (c *Connection) LastUsed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUsed
}

// InTransaction reports whether a transaction is active.
func (c *Connection) InTransaction() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inTransaction
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.db.notify()
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.lastUsed = time.Now()
	c.mu.Unlock()
}

func (c *Connection) setTransaction(active bool) {
	c.mu.Lock()
	c.inTransaction = active
	c.mu.Unlock()
}

// open establishes the session. On failure the connection is left Closed.
func (c *Connection) open(ctx context.Context) error {
	c.setState(StateOpening)
	if err := c.session.Open(ctx); err != nil {
		c.setState(StateClosed)
		return c.db.newError("open", c, "", classify(c.db.interp, err), err)
	}
	c.mu.Lock()
	c.state = StateOpen
	c.generation++
	c.inTransaction = false
	c.lastUsed = time.Now()
	c.mu.Unlock()
	c.db.notify()
	return nil
}

// throttle waits until the recovery limiter allows another attempt. A
// context that ends first cancels the reservation and returns its error.
func (c *Connection) throttle(ctx context.Context) error {
	r := c.limiter.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	c.db.logger.Debug("recovery throttled",
		"database", c.db.cfg.Name,
		"connection", c.name,
		"delay", delay,
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// close releases the session. It is idempotent.
func (c *Connection) close() error {
	if c.State() == StateClosed {
		return nil
	}
	c.setState(StateClosing)
	c.dropCursors()
	err := c.session.Close()
	c.mu.Lock()
	c.state = StateClosed
	c.inTransaction = false
	c.mu.Unlock()
	c.db.notify()
	if err != nil {
		return errors.Wrapf(err, "dbms: close %s/%s", c.db.cfg.Name, c.name)
	}
	return nil
}

// markBroken records that the session was lost.
func (c *Connection) markBroken() {
	c.mu.Lock()
	changed := c.state != StateBroken
	c.state = StateBroken
	c.inTransaction = false
	c.mu.Unlock()
	if changed {
		c.db.notify()
	}
}

func (c *Connection) begin(ctx context.Context) error {
	if c.InTransaction() {
		return errors.Wrapf(ErrTransactionActive, "connection %s", c.name)
	}
	if err := c.session.Begin(ctx); err != nil {
		return c.db.fail(ctx, c, "begin", err)
	}
	c.setTransaction(true)
	return nil
}

// commit is a no-op outside a transaction.
func (c *Connection) commit(ctx context.Context) error {
	if !c.InTransaction() {
		return nil
	}
	err := c.session.Commit(ctx)
	c.setTransaction(false)
	if err != nil {
		return c.db.fail(ctx, c, "commit", err)
	}
	return nil
}

// rollback is a no-op outside a transaction.
func (c *Connection) rollback(ctx context.Context) error {
	if !c.InTransaction() {
		return nil
	}
	err := c.session.Rollback(ctx)
	c.setTransaction(false)
	if err != nil {
		return c.db.fail(ctx, c, "rollback", err)
	}
	return nil
}

// statement returns the connection's instance of a registered statement,
// creating it on first use.
func (c *Connection) statement(name string) (*Statement, error) {
	if s, ok := c.statements[name]; ok {
		return s, nil
	}
	tmpl, ok := c.db.template(name)
	if !ok {
		return nil, errors.Wrapf(ErrStatementNotFound, "%q in database %q", name, c.db.cfg.Name)
	}
	s := newStatement(c, tmpl)
	c.statements[name] = s
	return s, nil
}

// dropCursors closes every prepared cursor. Statements keep their last
// shape so they can be re-prepared.
func (c *Connection) dropCursors() {
	for _, s := range c.statements {
		s.dropCursor()
	}
}

// reprepare prepares again every statement that had been prepared before
// the session was lost. Failures leave the statement unprepared; it is
// retried on next use.
func (c *Connection) reprepare(ctx context.Context) {
	for name, s := range c.statements {
		if !s.wasPrepared() {
			continue
		}
		if err := s.prepareSpec(ctx, s.spec); err != nil {
			c.db.logger.Warn("statement re-prepare failed",
				"database", c.db.cfg.Name,
				"connection", c.name,
				"statement", name,
				"error", err,
			)
		}
	}
}
