package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// Session is one SQLite connection.
type Session struct {
	driver *Driver
	name   string
	db     *sql.DB
	conn   *sql.Conn
}

// Open implements dbms.Session.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database file (creates if not present) with its pragmas
//  3. Pins one native connection and verifies it with a ping
//  4. Sets file permissions (0600)
func (s *Session) Open(ctx context.Context) error {
	path := s.driver.cfg.Path
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
			return &dbms.NativeError{Backend: BackendName, Code: CodeCantOpen, Message: "creating database directory", Err: err}
		}
	}

	db, err := s.driver.open(s.driver.dsn())
	if err != nil {
		return toNative(errors.Wrap(err, "opening database"))
	}
	// One writer per session; the pool of sessions lives in dbms.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return toNative(errors.Wrap(err, "acquiring connection"))
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		db.Close()   //nolint:errcheck // Best effort cleanup on error path
		return toNative(errors.Wrap(err, "verifying database connection"))
	}

	if path != memoryPath {
		// The file may not exist yet on first run; it is created by the first write.
		_ = os.Chmod(path, filePermissions) //nolint:errcheck // Intentional
	}

	s.db = db
	s.conn = conn
	return nil
}

// Close implements dbms.Session.
func (s *Session) Close() error {
	var errs []error
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && !IsDatabaseClosed(err) {
			errs = append(errs, err)
		}
		s.conn = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
		s.db = nil
	}
	if err := errors.Join(errs...); err != nil {
		return errors.Wrap(err, "closing database")
	}
	return nil
}

// Conn returns the pinned connection, or nil when closed.
func (s *Session) Conn() *sql.Conn { return s.conn }

// Path returns the filesystem path to the database file.
func (s *Session) Path() string { return s.driver.cfg.Path }

func (s *Session) Begin(ctx context.Context) error    { return s.exec(ctx, "BEGIN") }
func (s *Session) Commit(ctx context.Context) error   { return s.exec(ctx, "COMMIT") }
func (s *Session) Rollback(ctx context.Context) error { return s.exec(ctx, "ROLLBACK") }

func (s *Session) exec(ctx context.Context, query string) error {
	if s.conn == nil {
		return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeDisconnected, Message: "session not open"}
	}
	_, err := s.conn.ExecContext(ctx, query)
	return toNative(err)
}

// HealthCheck verifies the session with a trivial query.
func (s *Session) HealthCheck(ctx context.Context) error {
	if s.conn == nil {
		return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeDisconnected, Message: "session not open"}
	}
	var result int
	return toNative(s.conn.QueryRowContext(ctx, "SELECT 1").Scan(&result))
}

// Prepare implements dbms.Session.
func (s *Session) Prepare(ctx context.Context, spec dbms.CursorSpec) (dbms.Cursor, error) {
	if s.conn == nil {
		return nil, &dbms.NativeError{Backend: BackendName, Code: dbms.CodeDisconnected, Message: "session not open"}
	}
	stmt, err := s.conn.PrepareContext(ctx, spec.Expression)
	if err != nil {
		return nil, toNative(err)
	}
	return &cursor{spec: spec, stmt: stmt, preparedAt: time.Now()}, nil
}

// Migrate applies pending migrations on this session's connection.
func (s *Session) Migrate(ctx context.Context, m *Migrator) error {
	if s.conn == nil {
		return &dbms.NativeError{Backend: BackendName, Code: dbms.CodeDisconnected, Message: "session not open"}
	}
	return m.Migrate(ctx, s.conn)
}

// SessionOf returns the SQLite session behind a dbms connection.
func SessionOf(c *dbms.Connection) (*Session, error) {
	s, ok := c.Session().(*Session)
	if !ok {
		return nil, errors.Newf("sqlite: connection %s is %T, not a sqlite session", c.Name(), c.Session())
	}
	return s, nil
}
