package ldap

import (
	"context"
	"net"

	"github.com/cockroachdb/errors"
	"github.com/go-ldap/ldap/v3"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// netConn adapts *ldap.Conn to Client.
type netConn struct {
	*ldap.Conn
}

func (c netConn) Close() error {
	c.Conn.Close()
	return nil
}

func dial(cfg Config) (Client, error) {
	opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: cfg.Timeout})}
	if cfg.TLS != nil {
		opts = append(opts, ldap.DialWithTLSConfig(cfg.TLS))
	}
	conn, err := ldap.DialURL(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(cfg.Timeout)
	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, cfg.Password); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return netConn{conn}, nil
}

// Session is one directory connection.
type Session struct {
	driver *Driver
	name   string
	client Client
}

// Open implements dbms.Session. The dial is abandoned if ctx ends first.
func (s *Session) Open(ctx context.Context) error {
	type result struct {
		client Client
		err    error
	}
	done := make(chan result, 1)
	go func() {
		c, err := s.driver.dial(s.driver.cfg)
		done <- result{c, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return toNative(r.err, false)
		}
		s.client = r.client
		return nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.client != nil {
				_ = r.client.Close()
			}
		}()
		return errors.Wrap(ctx.Err(), "dialing directory")
	}
}

// Close implements dbms.Session.
func (s *Session) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *Session) closed() bool { return s.client == nil || s.client.IsClosing() }

func (s *Session) Begin(context.Context) error    { return nil }
func (s *Session) Commit(context.Context) error   { return nil }
func (s *Session) Rollback(context.Context) error { return nil }

// Prepare implements dbms.Session. The expression is parsed once here.
func (s *Session) Prepare(_ context.Context, spec dbms.CursorSpec) (dbms.Cursor, error) {
	if s.closed() {
		return nil, notOpen()
	}
	op, err := parseExpression(spec.Expression)
	if err != nil {
		return nil, err
	}
	if op.kind != opSearch && spec.Outputs > 0 {
		return nil, errors.Wrapf(ErrBadExpression, "%s statement %q has no result columns", op.kind, spec.Name)
	}
	if op.kind == opSearch && spec.Outputs > len(op.attrs) {
		return nil, errors.Wrapf(ErrBadExpression, "statement %q binds %d outputs for %d attributes", spec.Name, spec.Outputs, len(op.attrs))
	}
	return &cursor{session: s, spec: spec, op: op}, nil
}
