// graydbms opens the databases described by a configuration file, keeps
// their connection pools healthy and reports on them.
//
//	graydbms check              open every database and print pool statistics
//	graydbms run                serve until interrupted, with MQTT and InfluxDB wiring
//	graydbms migrate status     show SQLite migration state
//	graydbms migrate up|down    apply or roll back SQLite migrations
//	graydbms recover <db> [conn] force a recovery attempt
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/graydbms.yaml"

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "graydbms",
		Short: "Vendor-agnostic database access middleware",
		Long: `graydbms manages pools of connections to SQLite, PostgreSQL and LDAP
backends, recovers lost connections and reports pool health.

Examples:
  graydbms check                         # Open every database, print stats
  graydbms run                           # Serve until SIGINT/SIGTERM
  graydbms migrate status --db users     # Show pending SQLite migrations
  graydbms recover users users-0         # Reconnect one connection`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(), "configuration file")

	root.AddCommand(newCheckCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newRecoverCmd())
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath returns GRAYDB_CONFIG when set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("GRAYDB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
