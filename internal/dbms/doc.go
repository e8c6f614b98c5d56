// Package dbms provides vendor-agnostic database access: a pool of live
// connections, named statements leased to one caller at a time, typed
// parameter binding and classified result codes.
//
// # Architecture
//
// A Database owns N Connections and a registry of named statement templates.
// Each Connection wraps one backend Session. Statements are instantiated
// lazily per connection from their template and prepared against the
// connection's current session:
//
//	Database ──▶ Connection ──▶ Session (backend)
//	    │             │
//	    │             └──▶ Statement ──▶ Cursor (backend)
//	    │                      │
//	    └─ templates           └──▶ Input / Output binders ──▶ datatype.Value
//
// Backends (sqlite, postgres, ldap) implement the Driver, Session and Cursor
// interfaces and supply an ErrorCodeInterpreter that maps their native result
// codes onto the five outcomes: Successful, NotFound, Locked, LostConnection
// and Other.
//
// # Leasing
//
// AcquireConnection returns a GuardConnection: an exclusive lease on one Open
// connection, picked by the configured Selector (round-robin by default).
// AcquireStatement is a shortcut that leases a connection and the named
// statement on it. Every bind, execute and fetch happens through the guard,
// and Release must be called on every exit path:
//
//	gs, err := db.AcquireStatement(ctx, "find-user")
//	if err != nil {
//	    return err
//	}
//	defer gs.Release()
//
//	id := datatype.NewInteger("id", datatype.CanNotBeNull)
//	id.Set(42)
//	name := datatype.NewString("name", 64, datatype.CanBeNull)
//	_ = gs.BindInput(id)
//	_ = gs.BindOutput(name)
//
//	rc, err := gs.Execute(ctx)
//	if err != nil {
//	    return err
//	}
//	if rc.NotFound() {
//	    return nil
//	}
//	ok, err := gs.Fetch(ctx)
//
// # Result classification
//
// NotFound and Locked are ordinary results: Execute returns them in the
// ResultCode with a nil error. LostConnection marks the connection Broken,
// runs one recovery attempt on the caller's path and returns a *DatabaseError
// matching ErrLostConnection. Any other native failure returns a
// *DatabaseError carrying the backend, connection, statement and native code.
//
// # Recovery
//
// A Broken connection is closed and reopened. Every attempt increments the
// connection's try counter; a successful attempt resets it, bumps the
// connection generation and re-prepares the statements bound to it. Every
// failed attempt is reported to each registered FailRecoveryHandler with the
// current try counter. Attempts are throttled per connection and, at
// checkout, bounded by MaxRecoveryAttempts.
//
// Thread Safety:
//   - Database, Registry and the Connection accessors are safe for concurrent use.
//   - Guards and the Statements they expose belong to one goroutine until released.
package dbms
