package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Migration filename parsing constants.
const (
	// migrationFilenameParts is the expected number of parts in a migration filename.
	// Format: YYYYMMDD_HHMMSS_description.up.sql (3 parts when split by "_")
	migrationFilenameParts = 3

	// minVersionParts is the minimum parts needed to extract a version.
	minVersionParts = 2
)

// ErrNoDownSQL is returned by MigrateDown when the latest migration has no .down.sql.
var ErrNoDownSQL = errors.New("sqlite: migration has no down SQL")

// Migration represents a single schema migration.
type Migration struct {
	// Version is extracted from the filename, e.g. 20260118_120000.
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationRecord represents a row in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// Migrator applies migration files from FS/Dir to one connection.
type Migrator struct {
	FS fs.FS
	// Dir is the directory within FS holding the files; "." for the root.
	Dir string
}

// NewMigrator creates a migrator reading from dir within fsys.
func NewMigrator(fsys fs.FS, dir string) *Migrator {
	if dir == "" {
		dir = "."
	}
	return &Migrator{FS: fsys, Dir: dir}
}

// Migrate applies all pending migrations in version order, each in its own
// transaction. If migration N fails, 1..N-1 stay committed, N is rolled
// back and the rest are not attempted; calling Migrate again resumes at N.
func (m *Migrator) Migrate(ctx context.Context, conn *sql.Conn) error {
	if err := createMigrationsTable(ctx, conn); err != nil {
		return errors.Wrap(err, "creating migrations table")
	}

	_, pending, err := m.Status(ctx, conn)
	if err != nil {
		return err
	}

	for _, mg := range pending {
		if err := apply(ctx, conn, mg.UpSQL, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				mg.Version, time.Now().UTC().Format(time.RFC3339),
			)
			return errors.Wrap(err, "recording migration")
		}); err != nil {
			return errors.Wrapf(err, "applying migration %s (%s)", mg.Version, mg.Name)
		}
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration.
func (m *Migrator) MigrateDown(ctx context.Context, conn *sql.Conn) error {
	if err := createMigrationsTable(ctx, conn); err != nil {
		return errors.Wrap(err, "creating migrations table")
	}
	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	latest := applied[len(applied)-1]

	migrations, err := m.load()
	if err != nil {
		return err
	}
	i := slices.IndexFunc(migrations, func(mg Migration) bool { return mg.Version == latest.Version })
	if i < 0 {
		return errors.Newf("sqlite: migration %s not found in filesystem", latest.Version)
	}
	mg := migrations[i]
	if mg.DownSQL == "" {
		return errors.Wrapf(ErrNoDownSQL, "migration %s", mg.Version)
	}

	return apply(ctx, conn, mg.DownSQL, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", mg.Version)
		return errors.Wrap(err, "removing migration record")
	})
}

// Status returns the applied and pending migrations.
func (m *Migrator) Status(ctx context.Context, conn *sql.Conn) (applied []MigrationRecord, pending []Migration, err error) {
	if err := createMigrationsTable(ctx, conn); err != nil {
		return nil, nil, errors.Wrap(err, "creating migrations table")
	}
	applied, err = appliedMigrations(ctx, conn)
	if err != nil {
		return nil, nil, err
	}
	migrations, err := m.load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "loading migrations")
	}

	done := make(map[string]bool, len(applied))
	for _, r := range applied {
		done[r.Version] = true
	}
	for _, mg := range migrations {
		if !done[mg.Version] {
			pending = append(pending, mg)
		}
	}
	return applied, pending, nil
}

func apply(ctx context.Context, conn *sql.Conn, script string, record func(*sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return toNative(err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return errors.Wrap(err, "executing SQL")
	}
	if err := record(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing migration")
}

func createMigrationsTable(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func appliedMigrations(ctx context.Context, conn *sql.Conn) ([]MigrationRecord, error) {
	rows, err := conn.QueryContext(ctx,
		"SELECT version, applied_at FROM schema_migrations ORDER BY version",
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying migrations")
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		var appliedAt string
		if err := rows.Scan(&r.Version, &appliedAt); err != nil {
			return nil, errors.Wrap(err, "scanning migration row")
		}
		r.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // Format is controlled
		records = append(records, r)
	}
	return records, errors.Wrap(rows.Err(), "iterating migrations")
}

// load reads and pairs the migration files, oldest first. A missing
// directory means no migrations.
func (m *Migrator) load() ([]Migration, error) {
	if m.FS == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(m.FS, m.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s", m.Dir)
	}

	up := make(map[string]string)
	down := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, isUp, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}
		if isUp {
			up[version] = entry.Name()
		} else {
			down[version] = entry.Name()
		}
	}

	migrations := make([]Migration, 0, len(up))
	for version, upFile := range up {
		mg := Migration{Version: version, Name: extractMigrationName(upFile)}
		if mg.UpSQL, err = m.read(upFile); err != nil {
			return nil, err
		}
		if downFile, ok := down[version]; ok {
			if mg.DownSQL, err = m.read(downFile); err != nil {
				return nil, err
			}
		}
		migrations = append(migrations, mg)
	}
	slices.SortFunc(migrations, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return migrations, nil
}

func (m *Migrator) read(name string) (string, error) {
	b, err := fs.ReadFile(m.FS, path.Join(m.Dir, name))
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", name)
	}
	return string(b), nil
}

// parseMigrationFilename extracts version and direction from a migration filename.
func parseMigrationFilename(name string) (version string, isUp bool, ok bool) {
	base, found := strings.CutSuffix(name, ".sql")
	if !found {
		return "", false, false
	}
	switch {
	case strings.HasSuffix(base, ".up"):
		isUp = true
		base = strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		base = strings.TrimSuffix(base, ".down")
	default:
		return "", false, false
	}

	parts := strings.SplitN(base, "_", migrationFilenameParts)
	if len(parts) < minVersionParts {
		return "", false, false
	}
	return parts[0] + "_" + parts[1], isUp, true
}

// extractMigrationName extracts a human-readable name from the filename.
// Example: "20260118_120000_initial_schema.up.sql" -> "initial_schema"
func extractMigrationName(filename string) string {
	base := strings.TrimSuffix(filename, ".sql")
	base = strings.TrimSuffix(base, ".up")
	base = strings.TrimSuffix(base, ".down")

	parts := strings.SplitN(base, "_", migrationFilenameParts)
	if len(parts) >= migrationFilenameParts {
		return parts[minVersionParts]
	}
	return base
}
