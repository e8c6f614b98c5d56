package dbms

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// Default pool settings.
const (
	DefaultConnections         = 1
	DefaultMaxRecoveryAttempts = 5
	DefaultRecoveryInterval    = time.Second
)

// Config holds the pool settings of one Database.
type Config struct {
	// Name identifies the database in logs, errors and registries.
	Name string

	// Connections is the number of connections opened by Open.
	Connections int

	// Selector picks among idle Open connections. Nil means RoundRobin.
	Selector Selector

	// WaitForRecovery makes checkout keep attempting recovery while every
	// connection is Broken. When false, checkout fails after one failed attempt.
	WaitForRecovery bool

	// MaxRecoveryAttempts bounds consecutive recovery attempts made by
	// checkout on one connection. 0 means unlimited. Recover ignores it.
	MaxRecoveryAttempts int

	// RecoveryInterval is the minimum time between two recovery attempts on
	// one connection. 0 disables throttling.
	RecoveryInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		Connections:         DefaultConnections,
		WaitForRecovery:     true,
		MaxRecoveryAttempts: DefaultMaxRecoveryAttempts,
		RecoveryInterval:    DefaultRecoveryInterval,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("dbms: database name is required"))
	}
	if c.Connections < 1 {
		errs = append(errs, errors.Newf("dbms: database %q: connections must be at least 1", c.Name))
	}
	if c.MaxRecoveryAttempts < 0 {
		errs = append(errs, errors.Newf("dbms: database %q: max recovery attempts must not be negative", c.Name))
	}
	if c.RecoveryInterval < 0 {
		errs = append(errs, errors.Newf("dbms: database %q: recovery interval must not be negative", c.Name))
	}
	return errors.Join(errs...)
}

// Database is a pool of connections to one backend plus the registry of
// statements that can run on them.
type Database struct {
	cfg      Config
	driver   Driver
	interp   ErrorCodeInterpreter
	selector Selector
	logger   Logger

	mu        sync.Mutex
	conns     []*Connection
	templates map[string]template
	handlers  []FailRecoveryHandler
	nextIndex int
	opened    bool
	closed    bool

	signalMu sync.Mutex
	changed  chan struct{}
}

// New creates a database over driver. Connections are created Closed; call
// Open to establish them.
func New(cfg Config, driver Driver) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, errors.AssertionFailedf("dbms: database %q: nil driver", cfg.Name)
	}
	sel := cfg.Selector
	if sel == nil {
		sel = &RoundRobin{}
	}
	d := &Database{
		cfg:       cfg,
		driver:    driver,
		interp:    driver.Interpreter(),
		selector:  sel,
		logger:    noopLogger{},
		templates: make(map[string]template),
		changed:   make(chan struct{}),
		nextIndex: cfg.Connections,
	}
	for i := range cfg.Connections {
		d.conns = append(d.conns, newConnection(d, i, connectionName(cfg.Name, i)))
	}
	return d, nil
}

func connectionName(db string, i int) string {
	return fmt.Sprintf("%s-%d", db, i)
}

// SetLogger sets the logger for the database.
func (d *Database) SetLogger(logger Logger) {
	d.logger = logger
}

// Name returns the database name.
func (d *Database) Name() string { return d.cfg.Name }

// Backend returns the driver name.
func (d *Database) Backend() string { return d.driver.Name() }

// Interpreter returns the backend's code classification.
func (d *Database) Interpreter() ErrorCodeInterpreter { return d.interp }

// AddFailRecoveryHandler registers h to be told about failed recovery attempts.
func (d *Database) AddFailRecoveryHandler(h FailRecoveryHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// RegisterStatement stores a named statement template. The expression is
// passed to the backend verbatim.
func (d *Database) RegisterStatement(name, expression string, action ActionOnError) error {
	if name == "" || expression == "" {
		return errors.Newf("dbms: database %q: statement name and expression are required", d.cfg.Name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.templates[name]; exists {
		return errors.Wrapf(ErrDuplicateStatement, "%q in database %q", name, d.cfg.Name)
	}
	d.templates[name] = template{name: name, expression: expression, action: action}
	return nil
}

// Statements returns the registered statement names, sorted.
func (d *Database) Statements() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.templates))
	for name := range d.templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (d *Database) template(name string) (template, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.templates[name]
	return t, ok
}

// Connections returns the pool's connections in index order.
func (d *Database) Connections() []*Connection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.conns)
}

// Connection returns the connection with the given name.
func (d *Database) Connection(name string) (*Connection, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.conns {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// Open opens every connection in parallel. Connections that fail are
// marked Broken and left to recovery; Open fails only if none opened, and
// may then be called again to retry the idle connections.
func (d *Database) Open(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errors.Wrapf(ErrClosed, "database %q", d.cfg.Name)
	}
	if d.opened {
		d.mu.Unlock()
		return nil
	}
	d.opened = true
	var conns []*Connection
	for _, c := range d.conns {
		if !c.leased && c.State() != StateOpen {
			c.leased = true
			conns = append(conns, c)
		}
	}
	d.mu.Unlock()

	errs := make([]error, len(conns))
	var g errgroup.Group
	for i, c := range conns {
		g.Go(func() error {
			errs[i] = c.open(ctx)
			return nil
		})
	}
	_ = g.Wait()

	opened := 0
	for i, err := range errs {
		if err == nil {
			opened++
			continue
		}
		conns[i].setState(StateBroken)
		d.logger.Warn("connection failed to open",
			"database", d.cfg.Name,
			"connection", conns[i].name,
			"error", err,
		)
	}
	for _, c := range conns {
		d.release(c)
	}
	if opened == 0 && len(conns) > 0 {
		d.mu.Lock()
		d.opened = false
		d.mu.Unlock()
		return errors.WithSecondaryError(
			errors.Wrapf(ErrNoConnection, "open database %q", d.cfg.Name),
			errors.Join(errs...),
		)
	}

	d.logger.Info("database opened",
		"database", d.cfg.Name,
		"backend", d.driver.Name(),
		"connections", len(conns),
		"open", opened,
	)
	return nil
}

// CreateConnection adds one connection to the pool and opens it. A
// connection that fails to open is not added.
func (d *Database) CreateConnection(ctx context.Context) (*Connection, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, errors.Wrapf(ErrClosed, "database %q", d.cfg.Name)
	}
	index := d.nextIndex
	d.nextIndex++
	d.mu.Unlock()

	c := newConnection(d, index, connectionName(d.cfg.Name, index))
	if err := c.open(ctx); err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		_ = c.close()
		return nil, errors.Wrapf(ErrClosed, "database %q", d.cfg.Name)
	}
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	d.notify()

	d.logger.Info("connection created", "database", d.cfg.Name, "connection", c.name)
	return c, nil
}

// Close closes every idle connection. Leased connections are closed when
// their lease is released. Close is idempotent.
func (d *Database) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	var idle []*Connection
	for _, c := range d.conns {
		if !c.leased {
			c.leased = true
			idle = append(idle, c)
		}
	}
	d.mu.Unlock()
	d.notify()

	var errs []error
	for _, c := range idle {
		if err := c.close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.logger.Info("database closed", "database", d.cfg.Name)
	return errors.Join(errs...)
}

// AcquireConnection leases an Open connection. It blocks while every
// connection is leased, and attempts recovery when only Broken connections
// are idle. The lease must be released.
func (d *Database) AcquireConnection(ctx context.Context) (*GuardConnection, error) {
	c, err := d.lease(ctx)
	if err != nil {
		return nil, err
	}
	return newGuardConnection(d, c), nil
}

// AcquireStatement leases a connection and the named statement on it.
// Releasing the statement releases the connection.
func (d *Database) AcquireStatement(ctx context.Context, name string) (*GuardStatement, error) {
	if _, ok := d.template(name); !ok {
		return nil, errors.Wrapf(ErrStatementNotFound, "%q in database %q", name, d.cfg.Name)
	}
	gc, err := d.AcquireConnection(ctx)
	if err != nil {
		return nil, err
	}
	gs, err := gc.Statement(name)
	if err != nil {
		gc.Release()
		return nil, err
	}
	gs.ownsConnection = true
	return gs, nil
}

// lease implements checkout.
func (d *Database) lease(ctx context.Context) (*Connection, error) {
	for {
		wait := d.waitChan()

		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return nil, errors.Wrapf(ErrClosed, "database %q", d.cfg.Name)
		}
		if c := d.pickOpen(); c != nil {
			d.markLeased(c)
			d.mu.Unlock()
			return c, nil
		}
		c, exhausted := d.pickBroken()
		if c != nil {
			d.markLeased(c)
			d.mu.Unlock()

			err := d.recoverConnection(ctx, c)
			if err == nil {
				return c, nil
			}
			d.release(c)
			if !d.cfg.WaitForRecovery {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, errors.Wrapf(ctx.Err(), "dbms: waiting for recovery of %q", d.cfg.Name)
			}
			continue
		}
		busy := d.anyLeased()
		d.mu.Unlock()

		if !busy {
			if exhausted {
				return nil, errors.WithHint(
					errors.Wrapf(ErrRecoveryExhausted, "database %q", d.cfg.Name),
					"recover a connection explicitly or raise recovery.max_attempts",
				)
			}
			return nil, errors.Wrapf(ErrNoConnection, "database %q is not open", d.cfg.Name)
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "dbms: waiting for a connection to %q", d.cfg.Name)
		case <-wait:
		}
	}
}

// pickOpen selects an idle Open connection. Called with d.mu held.
func (d *Database) pickOpen() *Connection {
	var candidates []*Connection
	for _, c := range d.conns {
		if !c.leased && c.State() == StateOpen {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	if c := d.selector.Select(candidates); c != nil {
		return c
	}
	return candidates[0]
}

// pickBroken selects the idle Broken connection with the fewest failed
// attempts still within budget. exhausted reports whether an idle Broken
// connection was skipped for having used its budget. Called with d.mu held.
func (d *Database) pickBroken() (c *Connection, exhausted bool) {
	for _, cand := range d.conns {
		if cand.leased || cand.State() != StateBroken {
			continue
		}
		tries := cand.TryCounter()
		if d.cfg.MaxRecoveryAttempts > 0 && tries >= d.cfg.MaxRecoveryAttempts {
			exhausted = true
			continue
		}
		if c == nil || tries < c.TryCounter() {
			c = cand
		}
	}
	return c, exhausted
}

// anyLeased reports whether some connection may come back to the pool.
// Called with d.mu held.
func (d *Database) anyLeased() bool {
	for _, c := range d.conns {
		if c.leased {
			return true
		}
	}
	return false
}

func (d *Database) markLeased(c *Connection) {
	c.leased = true
	c.leases++
}

// release returns c to the pool.
func (d *Database) release(c *Connection) {
	d.mu.Lock()
	closed := d.closed
	if !closed {
		c.leased = false
	}
	d.mu.Unlock()
	if closed {
		if err := c.close(); err != nil {
			d.logger.Debug("closing released connection failed", "connection", c.name, "error", err)
		}
	}
	d.notify()
}

// leaseSpecific waits until c is idle and leases it.
func (d *Database) leaseSpecific(ctx context.Context, c *Connection) error {
	for {
		wait := d.waitChan()
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return errors.Wrapf(ErrClosed, "database %q", d.cfg.Name)
		}
		if !c.leased {
			d.markLeased(c)
			d.mu.Unlock()
			return nil
		}
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "dbms: waiting for connection %s", c.name)
		case <-wait:
		}
	}
}

func (d *Database) waitChan() <-chan struct{} {
	d.signalMu.Lock()
	defer d.signalMu.Unlock()
	return d.changed
}

// notify wakes every goroutine waiting in checkout.
func (d *Database) notify() {
	d.signalMu.Lock()
	close(d.changed)
	d.changed = make(chan struct{})
	d.signalMu.Unlock()
}

// fail classifies err from a connection-level operation.
func (d *Database) fail(ctx context.Context, c *Connection, op string, err error) error {
	return d.failWith(ctx, c, "", op, classify(d.interp, err), err)
}

// failWith reacts to a classified failure and returns it as a
// *DatabaseError. LostConnection marks the connection Broken and runs one
// recovery attempt on the caller's path.
func (d *Database) failWith(ctx context.Context, c *Connection, stmt, op string, rc ResultCode, err error) error {
	derr := d.newError(op, c, stmt, rc, err)
	switch rc.Outcome {
	case OutcomeLocked:
		d.logger.Debug("resource locked",
			"database", d.cfg.Name,
			"connection", c.name,
			"statement", stmt,
			"code", rc.Code,
		)
	case OutcomeLostConnection:
		d.logger.Warn("connection lost",
			"database", d.cfg.Name,
			"connection", c.name,
			"statement", stmt,
			"code", rc.Code,
			"error", err,
		)
		c.markBroken()
		// The error is logged by recoverConnection; the caller gets the
		// original failure.
		_ = d.recoverConnection(ctx, c)
	default:
		d.logger.Debug("command failed",
			"database", d.cfg.Name,
			"connection", c.name,
			"statement", stmt,
			"op", op,
			"code", rc.Code,
			"outcome", rc.Outcome,
		)
	}
	return derr
}

func (d *Database) newError(op string, c *Connection, stmt string, rc ResultCode, err error) *DatabaseError {
	return &DatabaseError{
		Op:         op,
		Backend:    d.driver.Name(),
		Database:   d.cfg.Name,
		Connection: c.name,
		Statement:  stmt,
		Result:     rc,
		Err:        err,
	}
}
