// Package sqlite is the embedded file database backend for package dbms,
// built on github.com/mattn/go-sqlite3.
//
// Each dbms connection owns one session: a dedicated *sql.DB limited to a
// single native connection, pinned as a *sql.Conn for the session's life.
// Transactions are issued as plain BEGIN/COMMIT/ROLLBACK on that
// connection so prepared statements stay valid across them.
//
// Result classification:
//   - 0 (OK) is Successful
//   - 101 (DONE) is NotFound; a query with outputs that yields no row fails with it
//   - 5 (BUSY) and 6 (LOCKED) are Locked
//   - 10 (IOERR), 14 (CANTOPEN), 26 (NOTADB) and closed or bad connections are LostConnection
//
// Security Considerations:
//   - Statements are always prepared and parameterised
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Performance Characteristics:
//   - WAL mode allows concurrent reads from other connections during writes
//   - Busy timeout absorbs short lock contention before BUSY is reported
//
// Migrations:
//
// Migrate applies SQL migration files from an fs.FS, one transaction per
// migration, recording applied versions in schema_migrations. Files are
// named YYYYMMDD_HHMMSS_description.up.sql with an optional .down.sql.
package sqlite
