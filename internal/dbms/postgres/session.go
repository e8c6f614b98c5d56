package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// closeTimeout bounds the terminate message sent on Close.
const closeTimeout = 5 * time.Second

// Session is one PostgreSQL connection.
type Session struct {
	driver *Driver
	name   string
	conn   *pgx.Conn
	tx     pgx.Tx
	seq    int
}

// Open implements dbms.Session.
func (s *Session) Open(ctx context.Context) error {
	cfg, err := pgx.ParseConfig(s.driver.cfg.DSN)
	if err != nil {
		return errors.Wrap(err, "parsing postgres dsn")
	}
	cfg.ConnectTimeout = s.driver.cfg.ConnectTimeout
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = map[string]string{}
	}
	cfg.RuntimeParams["application_name"] = s.name

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return toNative(err, false)
	}
	s.conn = conn
	s.tx = nil
	return nil
}

// Close implements dbms.Session.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	err := s.conn.Close(ctx)
	s.conn = nil
	s.tx = nil
	return errors.Wrap(err, "closing postgres connection")
}

// Conn returns the native connection, or nil when closed.
func (s *Session) Conn() *pgx.Conn { return s.conn }

func (s *Session) closed() bool { return s.conn == nil || s.conn.IsClosed() }

// Begin implements dbms.Session.
func (s *Session) Begin(ctx context.Context) error {
	if s.closed() {
		return notOpen()
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return toNative(err, s.closed())
	}
	s.tx = tx
	return nil
}

// Commit implements dbms.Session.
func (s *Session) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return toNative(tx.Commit(ctx), s.closed())
}

// Rollback implements dbms.Session.
func (s *Session) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return toNative(tx.Rollback(ctx), s.closed())
}

// Prepare implements dbms.Session.
func (s *Session) Prepare(ctx context.Context, spec dbms.CursorSpec) (dbms.Cursor, error) {
	if s.closed() {
		return nil, notOpen()
	}
	s.seq++
	name := fmt.Sprintf("%s_%d", identifier(spec.Name), s.seq)
	if _, err := s.conn.Prepare(ctx, name, spec.Expression); err != nil {
		return nil, toNative(err, s.closed())
	}
	return &cursor{session: s, spec: spec, name: name}, nil
}

// largeObjects runs fn with the large object API of the current
// transaction, or of a short transaction when none is active.
func (s *Session) largeObjects(ctx context.Context, fn func(*pgx.LargeObjects) error) error {
	if s.closed() {
		return notOpen()
	}
	if s.tx != nil {
		los := s.tx.LargeObjects()
		return fn(&los)
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return toNative(err, s.closed())
	}
	defer tx.Rollback(ctx) //nolint:errcheck // Rollback is no-op after commit
	los := tx.LargeObjects()
	if err := fn(&los); err != nil {
		return err
	}
	return toNative(tx.Commit(ctx), s.closed())
}

// identifier maps a statement name to a server-side identifier.
func identifier(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}
