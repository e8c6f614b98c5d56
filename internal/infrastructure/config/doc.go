// Package config handles loading and validating gray-logic-dbms configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Per-database defaults for pool, recovery and statement settings
//   - Overriding secrets with environment variables
//   - Validation of every database and its backend section
//
// Security Considerations:
//   - Postgres DSNs and LDAP bind passwords should be set via environment
//     variables (GRAYDB_<DATABASE>_DSN, GRAYDB_<DATABASE>_PASSWORD)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/graydbms.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	users, ok := cfg.Database("users")
package config
