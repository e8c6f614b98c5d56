package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Supported database backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendLDAP     = "ldap"
)

// Statement failure actions.
const (
	OnErrorIgnore   = "ignore"
	OnErrorRollback = "rollback"
)

// envPrefix starts every environment override.
const envPrefix = "GRAYDB_"

// Config is the root configuration structure for gray-logic-dbms.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service   ServiceConfig    `yaml:"service"`
	Databases []DatabaseConfig `yaml:"databases"`
	MQTT      MQTTConfig       `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig   `yaml:"influxdb"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// ServiceConfig identifies this instance in logs, alerts and metrics.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig describes one logical database and its connection pool.
type DatabaseConfig struct {
	Name        string `yaml:"name"`
	Backend     string `yaml:"backend"`
	Connections int    `yaml:"connections"`
	// Selector is "round-robin" (default) or "least-recently-used".
	Selector string         `yaml:"selector"`
	Recovery RecoveryConfig `yaml:"recovery"`

	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	LDAP     LDAPConfig     `yaml:"ldap"`

	Statements []StatementConfig `yaml:"statements"`
}

// RecoveryConfig controls lost-connection recovery.
type RecoveryConfig struct {
	// FailFast makes checkout fail instead of waiting while every connection is broken.
	FailFast bool `yaml:"fail_fast"`
	// MaxAttempts is the per-connection retry budget at checkout. 0 selects
	// the default of 5, -1 means unlimited.
	MaxAttempts int `yaml:"max_attempts"`
	// Interval is the minimum time between attempts on one connection (seconds).
	Interval int `yaml:"interval"`
}

// SQLiteConfig contains SQLite database settings.
type SQLiteConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
	// Migrations is a directory of YYYYMMDD_HHMMSS_name.up.sql files applied at startup.
	Migrations string `yaml:"migrations"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	ConnectTimeout int    `yaml:"connect_timeout"`
}

// LDAPConfig contains directory connection settings.
type LDAPConfig struct {
	URL      string `yaml:"url"`
	BindDN   string `yaml:"bind_dn"`
	Password string `yaml:"password"`
	Timeout  int    `yaml:"timeout"`
}

// StatementConfig registers one named statement.
type StatementConfig struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
	// OnError is "ignore" (default) or "rollback".
	OnError string `yaml:"on_error"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
	// StatsInterval is how often pool statistics are written (seconds). 0 disables.
	StatsInterval int `yaml:"stats_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Per-database defaults for fields the file left empty
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern GRAYDB_SECTION_KEY, and
// GRAYDB_<DATABASE>_KEY for per-database secrets, where <DATABASE> is the
// database name upper-cased with '-' replaced by '_'.
// For example: GRAYDB_MQTT_HOST, GRAYDB_USERS_DSN.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}

	for i := range cfg.Databases {
		applyDatabaseDefaults(&cfg.Databases[i])
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "graydb-001",
			Name: "Gray Logic DBMS",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graydbms",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
			StatsInterval: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyDatabaseDefaults fills the fields of one database the file left empty.
func applyDatabaseDefaults(db *DatabaseConfig) {
	if db.Connections == 0 {
		db.Connections = 1
	}
	if db.Recovery.MaxAttempts == 0 {
		db.Recovery.MaxAttempts = 5
	}
	if db.Recovery.Interval == 0 {
		db.Recovery.Interval = 1
	}
	if db.Backend == BackendSQLite && db.SQLite.BusyTimeout == 0 {
		db.SQLite.BusyTimeout = 5
	}
	for i := range db.Statements {
		if db.Statements[i].OnError == "" {
			db.Statements[i].OnError = OnErrorIgnore
		}
	}
}

// EnvName returns the environment variable prefix for a database name.
func EnvName(database string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(database, "-", "_")) + "_"
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("GRAYDB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYDB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYDB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYDB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYDB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Databases
	for i := range cfg.Databases {
		db := &cfg.Databases[i]
		prefix := EnvName(db.Name)
		if v := os.Getenv(prefix + "PATH"); v != "" {
			db.SQLite.Path = v
		}
		if v := os.Getenv(prefix + "DSN"); v != "" {
			db.Postgres.DSN = v
		}
		if v := os.Getenv(prefix + "PASSWORD"); v != "" {
			db.LDAP.Password = v
		}
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	if len(c.Databases) == 0 {
		errs = append(errs, "at least one database is required")
	}
	seen := make(map[string]bool, len(c.Databases))
	for i, db := range c.Databases {
		if db.Name != "" && seen[db.Name] {
			errs = append(errs, "databases["+db.Name+"]: duplicate name")
		}
		seen[db.Name] = true
		errs = append(errs, db.validate(i)...)
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "logging.level must be debug, info, warn or error")
	}

	if len(errs) > 0 {
		return errors.Newf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (db DatabaseConfig) validate(i int) []string {
	var errs []string
	where := "databases[" + db.Name + "]"
	if db.Name == "" {
		where = "databases[" + strconv.Itoa(i) + "]"
		errs = append(errs, where+": name is required")
	}

	if db.Connections < 1 {
		errs = append(errs, where+": connections must be at least 1")
	}
	switch db.Selector {
	case "", "round-robin", "least-recently-used", "lru":
	default:
		errs = append(errs, where+": selector must be round-robin or least-recently-used")
	}
	if db.Recovery.MaxAttempts < -1 || db.Recovery.Interval < 0 {
		errs = append(errs, where+": recovery values must not be negative")
	}

	switch db.Backend {
	case BackendSQLite:
		if db.SQLite.Path == "" {
			errs = append(errs, where+": sqlite.path is required")
		}
	case BackendPostgres:
		if db.Postgres.DSN == "" {
			errs = append(errs, where+": postgres.dsn is required (set "+EnvName(db.Name)+"DSN)")
		}
	case BackendLDAP:
		if db.LDAP.URL == "" {
			errs = append(errs, where+": ldap.url is required")
		}
	default:
		errs = append(errs, where+": backend must be sqlite, postgres or ldap")
	}

	names := make(map[string]bool, len(db.Statements))
	for _, s := range db.Statements {
		switch {
		case s.Name == "":
			errs = append(errs, where+": statement name is required")
		case names[s.Name]:
			errs = append(errs, where+": duplicate statement "+s.Name)
		case s.Expression == "":
			errs = append(errs, where+": statement "+s.Name+" has no expression")
		}
		names[s.Name] = true
		if s.OnError != "" && s.OnError != OnErrorIgnore && s.OnError != OnErrorRollback {
			errs = append(errs, where+": statement "+s.Name+": on_error must be ignore or rollback")
		}
	}
	return errs
}

// MaxRecoveryAttempts returns the checkout retry budget, 0 meaning unlimited.
func (db DatabaseConfig) MaxRecoveryAttempts() int {
	if db.Recovery.MaxAttempts < 0 {
		return 0
	}
	return db.Recovery.MaxAttempts
}

// RecoveryInterval returns the recovery interval as a Duration.
func (db DatabaseConfig) RecoveryInterval() time.Duration {
	return time.Duration(db.Recovery.Interval) * time.Second
}

// ConnectTimeout returns the PostgreSQL connect timeout as a Duration.
func (db DatabaseConfig) ConnectTimeout() time.Duration {
	return time.Duration(db.Postgres.ConnectTimeout) * time.Second
}

// LDAPTimeout returns the directory request timeout as a Duration.
func (db DatabaseConfig) LDAPTimeout() time.Duration {
	return time.Duration(db.LDAP.Timeout) * time.Second
}

// Database returns the database named name.
func (c *Config) Database(name string) (DatabaseConfig, bool) {
	for _, db := range c.Databases {
		if db.Name == name {
			return db, true
		}
	}
	return DatabaseConfig{}, false
}
