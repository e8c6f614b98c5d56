package ldap

import (
	"crypto/tls"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/nerrad567/gray-logic-dbms/internal/datatype"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

// BackendName identifies this backend in errors and configuration.
const BackendName = "ldap"

// DefaultTimeout bounds dialing and each request.
const DefaultTimeout = 10 * time.Second

// LDAP result codes the interpreter classifies.
const (
	CodeSuccess      = int(ldap.LDAPResultSuccess)
	CodeNoSuchObject = int(ldap.LDAPResultNoSuchObject)
	CodeBusy         = int(ldap.LDAPResultBusy)
	CodeUnavailable  = int(ldap.LDAPResultUnavailable)
	CodeServerDown   = 81
	CodeNetwork      = int(ldap.ErrorNetwork)
)

// Interpreter classifies LDAP result codes.
var Interpreter = dbms.CodeTable{
	CodeSuccess:           dbms.OutcomeSuccessful,
	CodeNoSuchObject:      dbms.OutcomeNotFound,
	CodeBusy:              dbms.OutcomeLocked,
	CodeUnavailable:       dbms.OutcomeLostConnection,
	CodeServerDown:        dbms.OutcomeLostConnection,
	CodeNetwork:           dbms.OutcomeLostConnection,
	dbms.CodeDisconnected: dbms.OutcomeLostConnection,
}

// Config contains directory session options.
type Config struct {
	// URL is ldap://host:port or ldaps://host:port.
	URL string
	// BindDN and Password authenticate the session; an empty BindDN binds anonymously.
	BindDN   string
	Password string
	// Timeout bounds dialing and each request; zero uses DefaultTimeout.
	Timeout time.Duration
	// TLS is used for ldaps:// URLs.
	TLS *tls.Config
}

// Client is the part of *ldap.Conn the backend uses.
type Client interface {
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Modify(req *ldap.ModifyRequest) error
	Add(req *ldap.AddRequest) error
	Del(req *ldap.DelRequest) error
	IsClosing() bool
	Close() error
}

// Dialer opens an authenticated client.
type Dialer func(cfg Config) (Client, error)

// Option configures a Driver.
type Option func(*Driver)

// WithDialer replaces the network dialer.
func WithDialer(dial Dialer) Option {
	return func(d *Driver) { d.dial = dial }
}

// Driver implements dbms.Driver for LDAP directories.
type Driver struct {
	cfg  Config
	dial Dialer
}

// New creates a directory driver.
func New(cfg Config, opts ...Option) *Driver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	d := &Driver{cfg: cfg, dial: dial}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Name() string                           { return BackendName }
func (d *Driver) Interpreter() dbms.ErrorCodeInterpreter { return Interpreter }

// NewSession implements dbms.Driver.
func (d *Driver) NewSession(name string) dbms.Session {
	return &Session{driver: d, name: name}
}

// NewInput implements dbms.Driver.
func (d *Driver) NewInput(v datatype.Value) dbms.Input { return dbms.NewGenericInput(v) }

// NewOutput implements dbms.Driver.
func (d *Driver) NewOutput(v datatype.Value) dbms.Output { return dbms.NewGenericOutput(v) }
