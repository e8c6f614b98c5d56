// Package logging provides structured logging for gray-logic-dbms.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the pool, the backends and the
// command-line tools.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, instance, version) on all log entries
//   - Per-database child loggers that satisfy dbms.Logger
//   - Native backend error codes flattened into log attributes
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, cfg.Service, "1.0.0")
//	db.SetLogger(logger.ForDatabase("users"))
//	logger.Error("recovery failed", logging.Err(err))
//
// # Security
//
// Never log DSNs, bind passwords or MQTT credentials. Statement
// expressions are logged by name only.
package logging
