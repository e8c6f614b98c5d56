package main

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms/ldap"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms/postgres"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms/sqlite"
	"github.com/nerrad567/gray-logic-dbms/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dbms/internal/infrastructure/logging"
)

// loadConfig loads the configuration and builds the configured logger.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "loading config")
	}
	return cfg, logging.New(cfg.Logging, cfg.Service, version), nil
}

// newDriver creates the backend driver for one database.
func newDriver(db config.DatabaseConfig) (dbms.Driver, error) {
	switch db.Backend {
	case config.BackendSQLite:
		return sqlite.New(sqlite.Config{
			Path:        db.SQLite.Path,
			WALMode:     db.SQLite.WALMode,
			BusyTimeout: db.SQLite.BusyTimeout,
		}), nil
	case config.BackendPostgres:
		return postgres.New(postgres.Config{
			DSN:            db.Postgres.DSN,
			ConnectTimeout: db.ConnectTimeout(),
		}), nil
	case config.BackendLDAP:
		return ldap.New(ldap.Config{
			URL:      db.LDAP.URL,
			BindDN:   db.LDAP.BindDN,
			Password: db.LDAP.Password,
			Timeout:  db.LDAPTimeout(),
		}), nil
	}
	return nil, errors.Newf("unknown backend %q", db.Backend)
}

// poolConfig translates one database section to pool settings.
func poolConfig(db config.DatabaseConfig) (dbms.Config, error) {
	sel, err := dbms.SelectorByName(db.Selector)
	if err != nil {
		return dbms.Config{}, err
	}
	return dbms.Config{
		Name:                db.Name,
		Connections:         db.Connections,
		Selector:            sel,
		WaitForRecovery:     !db.Recovery.FailFast,
		MaxRecoveryAttempts: db.MaxRecoveryAttempts(),
		RecoveryInterval:    db.RecoveryInterval(),
	}, nil
}

// buildRegistry creates one unopened Database per configured database.
func buildRegistry(cfg *config.Config, log *logging.Logger) (*dbms.Registry, error) {
	reg := dbms.NewRegistry()
	for _, dbCfg := range cfg.Databases {
		driver, err := newDriver(dbCfg)
		if err != nil {
			return nil, errors.Wrapf(err, "database %q", dbCfg.Name)
		}
		pc, err := poolConfig(dbCfg)
		if err != nil {
			return nil, errors.Wrapf(err, "database %q", dbCfg.Name)
		}
		db, err := dbms.New(pc, driver)
		if err != nil {
			return nil, err
		}
		db.SetLogger(log.ForDatabase(dbCfg.Name))
		if err := reg.Add(db); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// openRegistry opens every database, applies SQLite migrations and
// registers the configured statements. On error everything opened so far
// is closed.
func openRegistry(ctx context.Context, cfg *config.Config, log *logging.Logger) (*dbms.Registry, error) {
	reg, err := buildRegistry(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := reg.Open(ctx); err != nil {
		_ = reg.Close()
		return nil, errors.Wrap(err, "opening databases")
	}
	for _, dbCfg := range cfg.Databases {
		db, err := reg.Get(dbCfg.Name)
		if err != nil {
			_ = reg.Close()
			return nil, err
		}
		if err := prepareDatabase(ctx, db, dbCfg, log); err != nil {
			_ = reg.Close()
			return nil, errors.Wrapf(err, "database %q", dbCfg.Name)
		}
	}
	return reg, nil
}

func prepareDatabase(ctx context.Context, db *dbms.Database, dbCfg config.DatabaseConfig, log *logging.Logger) error {
	if dbCfg.Backend == config.BackendSQLite && dbCfg.SQLite.Migrations != "" {
		if err := withMigrator(ctx, db, dbCfg, func(s *sqlite.Session, m *sqlite.Migrator) error {
			return s.Migrate(ctx, m)
		}); err != nil {
			return errors.Wrap(err, "running migrations")
		}
		log.Info("migrations applied", "database", dbCfg.Name, "dir", dbCfg.SQLite.Migrations)
	}

	for _, st := range dbCfg.Statements {
		action := dbms.ActionIgnore
		if st.OnError == config.OnErrorRollback {
			action = dbms.ActionRollback
		}
		if err := db.RegisterStatement(st.Name, st.Expression, action); err != nil {
			return err
		}
	}
	log.Info("database ready",
		"database", dbCfg.Name,
		"backend", dbCfg.Backend,
		"connections", dbCfg.Connections,
		"statements", len(dbCfg.Statements),
	)
	return nil
}

// withMigrator leases a connection of a SQLite database and calls fn with
// its session and the configured migrator.
func withMigrator(ctx context.Context, db *dbms.Database, dbCfg config.DatabaseConfig, fn func(*sqlite.Session, *sqlite.Migrator) error) error {
	gc, err := db.AcquireConnection(ctx)
	if err != nil {
		return err
	}
	defer gc.Release()

	session, err := sqlite.SessionOf(gc.Connection())
	if err != nil {
		return err
	}
	return fn(session, sqlite.NewMigrator(os.DirFS(dbCfg.SQLite.Migrations), "."))
}
