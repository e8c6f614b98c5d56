package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
	"github.com/nerrad567/gray-logic-dbms/internal/infrastructure/config"
)

// Logger wraps slog.Logger with gray-logic-dbms defaults.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to the configured output.
//
// Every entry carries the service name, the instance ID and the version.
// Unknown outputs fall back to stdout.
func New(cfg config.LoggingConfig, svc config.ServiceConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}
	return newWithWriter(output, cfg, svc, version)
}

func newWithWriter(w io.Writer, cfg config.LoggingConfig, svc config.ServiceConfig, version string) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "graydbms"),
		slog.String("instance", svc.ID),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// parseLevel converts a string log level to slog.Level.
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ForDatabase returns the child logger handed to one pool.
func (l *Logger) ForDatabase(name string) *Logger {
	return l.With("component", "dbms", "database", name)
}

var _ dbms.Logger = (*Logger)(nil)

// Err renders err as a log attribute group. Classified failures add the
// statement and outcome; native backend errors add their backend and code.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	attrs := []any{slog.String("msg", err.Error())}
	var dbErr *dbms.DatabaseError
	var native *dbms.NativeError
	switch {
	case errors.As(err, &dbErr):
		attrs = append(attrs,
			slog.String("backend", dbErr.Backend),
			slog.Int("code", dbErr.Result.Code),
			slog.String("outcome", dbErr.Result.Outcome.String()),
		)
		if dbErr.Statement != "" {
			attrs = append(attrs, slog.String("statement", dbErr.Statement))
		}
	case errors.As(err, &native):
		attrs = append(attrs,
			slog.String("backend", native.Backend),
			slog.Int("code", native.Code),
		)
	}
	return slog.Group("error", attrs...)
}

// Default creates a logger for use before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, config.ServiceConfig{ID: "graydb-001"}, "dev")
}
