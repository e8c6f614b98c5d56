package dbms

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
)

// GuardConnection is an exclusive lease on one Open connection. Release
// must be called on every path; a transaction still active at release is
// rolled back.
type GuardConnection struct {
	db         *Database
	conn       *Connection
	id         string
	released   bool
	statements []*Statement
}

func newGuardConnection(d *Database, c *Connection) *GuardConnection {
	g := &GuardConnection{db: d, conn: c, id: uuid.NewString()}
	d.logger.Debug("connection leased",
		"database", d.cfg.Name,
		"connection", c.name,
		"lease", g.id,
	)
	return g
}

// ID identifies the lease in logs.
func (g *GuardConnection) ID() string { return g.id }

// Connection returns the leased connection.
func (g *GuardConnection) Connection() *Connection { return g.conn }

// Begin starts a transaction. It fails with ErrTransactionActive when one
// is already active.
func (g *GuardConnection) Begin(ctx context.Context) error {
	if g.released {
		return ErrReleased
	}
	return g.conn.begin(ctx)
}

// Commit commits the active transaction. It is a no-op without one.
func (g *GuardConnection) Commit(ctx context.Context) error {
	if g.released {
		return ErrReleased
	}
	return g.conn.commit(ctx)
}

// Rollback rolls the active transaction back. It is a no-op without one.
func (g *GuardConnection) Rollback(ctx context.Context) error {
	if g.released {
		return ErrReleased
	}
	return g.conn.rollback(ctx)
}

// Statement leases the named statement on this connection. The statement
// lease ends with its own Release or with the connection's.
func (g *GuardConnection) Statement(name string) (*GuardStatement, error) {
	if g.released {
		return nil, ErrReleased
	}
	s, err := g.conn.statement(name)
	if err != nil {
		return nil, err
	}
	if s.leased {
		return nil, errors.Wrapf(ErrStatementInUse, "%q on %s", name, g.conn.name)
	}
	s.leased = true
	g.statements = append(g.statements, s)
	return &GuardStatement{gc: g, stmt: s}, nil
}

// Release ends the lease. It is idempotent.
func (g *GuardConnection) Release() {
	if g.released {
		return
	}
	g.released = true
	for _, s := range g.statements {
		if s.leased {
			s.resetBindings()
			s.leased = false
		}
	}
	g.statements = nil

	if g.conn.InTransaction() {
		g.db.logger.Warn("transaction left open at release, rolling back",
			"database", g.db.cfg.Name,
			"connection", g.conn.name,
			"lease", g.id,
		)
		if err := g.conn.rollback(context.Background()); err != nil {
			g.db.logger.Warn("rollback at release failed", "connection", g.conn.name, "error", err)
		}
	}

	g.db.release(g.conn)
	g.db.logger.Debug("connection released",
		"database", g.db.cfg.Name,
		"connection", g.conn.name,
		"lease", g.id,
	)
}

// GuardStatement is an exclusive lease on one statement instance. Every
// bind, execute and fetch for the lease goes through it.
type GuardStatement struct {
	gc             *GuardConnection
	stmt           *Statement
	ownsConnection bool
	released       bool
}

// Statement returns the leased statement.
func (g *GuardStatement) Statement() *Statement { return g.stmt }

// Connection returns the connection the statement is bound to.
func (g *GuardStatement) Connection() *Connection { return g.stmt.conn }

// Guard returns the connection lease the statement belongs to.
func (g *GuardStatement) Guard() *GuardConnection { return g.gc }

// BindInput appends an input at the next position.
func (g *GuardStatement) BindInput(v datatype.Value) error {
	if g.released {
		return ErrReleased
	}
	return g.stmt.bindInput(v)
}

// BindOutput appends an output at the next position.
func (g *GuardStatement) BindOutput(v datatype.Value) error {
	if g.released {
		return ErrReleased
	}
	return g.stmt.bindOutput(v)
}

// BindInputs binds each value of set as an input, in order.
func (g *GuardStatement) BindInputs(set *datatype.Set) error {
	for _, v := range set.Values() {
		if err := g.BindInput(v); err != nil {
			return err
		}
	}
	return nil
}

// BindOutputs binds each value of set as an output, in order.
func (g *GuardStatement) BindOutputs(set *datatype.Set) error {
	for _, v := range set.Values() {
		if err := g.BindOutput(v); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the statement with the current input values. NotFound and
// Locked are returned in the ResultCode with a nil error.
func (g *GuardStatement) Execute(ctx context.Context) (ResultCode, error) {
	if g.released {
		return ResultCode{}, ErrReleased
	}
	return g.stmt.execute(ctx)
}

// Fetch decodes the next row into the outputs. It returns false at the
// end of the result.
func (g *GuardStatement) Fetch(ctx context.Context) (bool, error) {
	if g.released {
		return false, ErrReleased
	}
	return g.stmt.fetch(ctx)
}

// WriteLOB streams the current content of the named long-block output
// back into the large object located by the last fetch.
func (g *GuardStatement) WriteLOB(ctx context.Context, name string) error {
	if g.released {
		return ErrReleased
	}
	return g.stmt.writeLOB(ctx, name)
}

// Reset drops every binding so the lease can be bound again.
func (g *GuardStatement) Reset() {
	if !g.released {
		g.stmt.resetBindings()
	}
}

// Release ends the statement lease, and the connection lease when the
// statement was acquired directly from the Database. It is idempotent.
func (g *GuardStatement) Release() {
	if g.released {
		return
	}
	g.released = true
	g.stmt.resetBindings()
	g.stmt.leased = false
	if g.ownsConnection {
		g.gc.Release()
	}
}
