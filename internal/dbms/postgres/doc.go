// Package postgres is the PostgreSQL backend for package dbms, built on
// github.com/jackc/pgx/v5.
//
// Each dbms connection owns one *pgx.Conn. Statements are prepared
// server-side under a per-session unique name and executed by that name.
//
// Result sets are read completely at Execute and served from memory by
// Next/Scan. The native connection is therefore idle while a caller
// fetches, which lets long-block outputs read their large objects during
// decode.
//
// Native codes are SQLSTATE values folded to integers in base 36
// (see Code and SQLState). Classification:
//   - 00000 is Successful
//   - 02000 (no_data) and P0002 (no_data_found) are NotFound
//   - 55P03 (lock_not_available), 40P01 (deadlock_detected) and 40001
//     (serialization_failure) are Locked
//   - class 08 (connection exception), 57P01..57P03 (shutdown) and a
//     closed connection are LostConnection
//
// Long blocks:
//
// A KindLongBlock output reads an oid column and decodes the referenced
// large object. While the row is current, WriteLOB replaces the large
// object's contents with the value's bytes. A KindLongBlock input is sent
// as bytea; insert it with lo_from_bytea(0, $n).
package postgres
