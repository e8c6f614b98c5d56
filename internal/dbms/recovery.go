package dbms

import (
	"context"

	"github.com/cockroachdb/errors"
)

// FailRecoveryHandler is told about every failed recovery attempt. It is a
// notification: the handler may alert, record or decide to stop using the
// database, but it does not recover the connection itself. Errors and
// panics from handlers are logged and otherwise ignored.
type FailRecoveryHandler interface {
	Apply(ctx context.Context, c *Connection, tryCounter int) error
}

// FailRecoveryHandlerFunc adapts a function to FailRecoveryHandler.
type FailRecoveryHandlerFunc func(ctx context.Context, c *Connection, tryCounter int) error

// Apply implements FailRecoveryHandler.
func (f FailRecoveryHandlerFunc) Apply(ctx context.Context, c *Connection, tryCounter int) error {
	return f(ctx, c, tryCounter)
}

// Recover makes one recovery attempt on c, waiting for any current lease
// to end first. It works on Open connections too, forcing a reconnect, and
// is not bounded by MaxRecoveryAttempts.
func (d *Database) Recover(ctx context.Context, c *Connection) error {
	if c == nil || c.db != d {
		return errors.AssertionFailedf("dbms: connection does not belong to database %q", d.cfg.Name)
	}
	if err := d.leaseSpecific(ctx, c); err != nil {
		return err
	}
	defer d.release(c)
	return d.recoverConnection(ctx, c)
}

// RecoverByName is Recover for the connection with the given name.
func (d *Database) RecoverByName(ctx context.Context, name string) error {
	c, ok := d.Connection(name)
	if !ok {
		return errors.Wrapf(ErrNoConnection, "no connection %q in database %q", name, d.cfg.Name)
	}
	return d.Recover(ctx, c)
}

// recoverConnection closes and reopens the session of c. The caller must
// hold the lease on c.
func (d *Database) recoverConnection(ctx context.Context, c *Connection) error {
	if err := c.throttle(ctx); err != nil {
		return errors.Wrapf(err, "dbms: recovery of %s/%s throttled", d.cfg.Name, c.name)
	}

	c.markBroken()
	c.dropCursors()
	if err := c.session.Close(); err != nil {
		d.logger.Debug("closing lost session failed", "connection", c.name, "error", err)
	}

	c.mu.Lock()
	c.state = StateClosed
	c.tryCounter++
	try := c.tryCounter
	c.state = StateOpening
	c.mu.Unlock()
	d.notify()

	d.logger.Info("recovering connection",
		"database", d.cfg.Name,
		"connection", c.name,
		"try_counter", try,
	)

	err := c.session.Open(ctx)
	if err == nil {
		c.mu.Lock()
		c.state = StateOpen
		c.tryCounter = 0
		c.generation++
		c.inTransaction = false
		c.mu.Unlock()

		c.reprepare(ctx)
		d.notify()
		d.logger.Info("connection recovered",
			"database", d.cfg.Name,
			"connection", c.name,
			"attempts", try,
		)
		return nil
	}

	c.setState(StateBroken)
	rc := classify(d.interp, err)
	rc.Outcome = OutcomeLostConnection
	d.logger.Warn("connection recovery failed",
		"database", d.cfg.Name,
		"connection", c.name,
		"try_counter", try,
		"code", rc.Code,
		"error", err,
	)
	d.notifyFailure(ctx, c, try)
	return d.newError("recover", c, "", rc, err)
}

func (d *Database) notifyFailure(ctx context.Context, c *Connection, try int) {
	d.mu.Lock()
	handlers := append([]FailRecoveryHandler(nil), d.handlers...)
	d.mu.Unlock()

	for _, h := range handlers {
		d.applyHandler(ctx, h, c, try)
	}
}

func (d *Database) applyHandler(ctx context.Context, h FailRecoveryHandler, c *Connection, try int) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("fail recovery handler panicked",
				"database", d.cfg.Name,
				"connection", c.name,
				"try_counter", try,
				"panic", r,
			)
		}
	}()
	if err := h.Apply(ctx, c, try); err != nil {
		d.logger.Warn("fail recovery handler failed",
			"database", d.cfg.Name,
			"connection", c.name,
			"try_counter", try,
			"error", err,
		)
	}
}
