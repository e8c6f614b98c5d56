// Package ldap is the directory service backend for package dbms, built
// on github.com/go-ldap/ldap/v3.
//
// A statement expression is one of:
//
//	<base>?<attrs>?<scope>?<filter>     search; attrs is a comma list, "dn" selects the entry DN
//	modify:<dn>?<attr>=<value>;...      replace attributes; a null value deletes the attribute
//	add:<dn>?<attr>=<value>;...         add an entry; repeat an attr for several values
//	delete:<dn>                         delete an entry
//
// Scope is base, one or sub. {n} placeholders take the n-th bound input
// (counting from 0). Values placed in a filter are escaped per RFC 4515
// and values placed in a DN per RFC 4514.
//
// A search selects one output column per attribute; the first value of a
// multi-valued attribute is returned. A search with outputs that matches
// nothing completes with NoSuchObject (32), which classifies as NotFound.
//
// Classification:
//   - 0 is Successful
//   - 32 (noSuchObject) is NotFound
//   - 51 (busy) is Locked
//   - 52 (unavailable), 81 (server down) and 200 (network error) are LostConnection
//
// Directories have no transactions; Begin, Commit and Rollback are no-ops.
package ldap
