package main

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms/sqlite"
	"github.com/nerrad567/gray-logic-dbms/internal/infrastructure/config"
)

func newMigrateCmd() *cobra.Command {
	var database string

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage SQLite schema migrations",
	}
	migrateCmd.PersistentFlags().StringVar(&database, "db", "", "database name (default: every SQLite database with migrations)")

	run := func(fn func(ctx context.Context, out io.Writer, name string, s *sqlite.Session, m *sqlite.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return forEachMigrator(cmd.Context(), database, func(name string, s *sqlite.Session, m *sqlite.Migrator) error {
				return fn(cmd.Context(), cmd.OutOrStdout(), name, s, m)
			})
		}
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, out io.Writer, name string, s *sqlite.Session, m *sqlite.Migrator) error {
			applied, pending, err := m.Status(ctx, s.Conn())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s (%s)\n", name, s.Path())
			for _, r := range applied {
				fmt.Fprintf(out, "  applied  %s  %s\n", r.Version, r.AppliedAt.Format("2006-01-02 15:04:05"))
			}
			for _, p := range pending {
				fmt.Fprintf(out, "  pending  %s  %s\n", p.Version, p.Name)
			}
			return nil
		}),
	})
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, out io.Writer, name string, s *sqlite.Session, m *sqlite.Migrator) error {
			if err := s.Migrate(ctx, m); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: up to date\n", name)
			return nil
		}),
	})
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, out io.Writer, name string, s *sqlite.Session, m *sqlite.Migrator) error {
			if err := m.MigrateDown(ctx, s.Conn()); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: rolled back latest migration\n", name)
			return nil
		}),
	})
	return migrateCmd
}

// forEachMigrator opens each selected SQLite database on its own, without
// registering statements or applying migrations, and calls fn.
func forEachMigrator(ctx context.Context, only string, fn func(name string, s *sqlite.Session, m *sqlite.Migrator) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	found := false
	for _, dbCfg := range cfg.Databases {
		if only != "" && dbCfg.Name != only {
			continue
		}
		if dbCfg.Backend != config.BackendSQLite || dbCfg.SQLite.Migrations == "" {
			if only != "" {
				return errors.Newf("database %q is not a SQLite database with migrations", only)
			}
			continue
		}
		found = true

		pc, err := poolConfig(dbCfg)
		if err != nil {
			return err
		}
		pc.Connections = 1
		driver, err := newDriver(dbCfg)
		if err != nil {
			return err
		}
		db, err := dbms.New(pc, driver)
		if err != nil {
			return err
		}
		db.SetLogger(log.ForDatabase(dbCfg.Name))
		if err := db.Open(ctx); err != nil {
			return err
		}
		err = withMigrator(ctx, db, dbCfg, func(s *sqlite.Session, m *sqlite.Migrator) error {
			return fn(dbCfg.Name, s, m)
		})
		_ = db.Close()
		if err != nil {
			return errors.Wrapf(err, "database %q", dbCfg.Name)
		}
	}
	if !found {
		if only != "" {
			return errors.Newf("no database named %q", only)
		}
		return errors.New("no SQLite database has migrations configured")
	}
	return nil
}
