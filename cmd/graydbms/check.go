package main

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Open every configured database and print pool statistics",
		Long: `check loads the configuration, opens every database, applies SQLite
migrations, registers statements and prints the pool statistics as JSON.
It exits non-zero if any database has no connection open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			reg, err := openRegistry(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer reg.Close()

			stats := reg.Stats()
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return errors.Wrap(err, "encoding stats")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			for _, st := range stats {
				if st.Open == 0 {
					return errors.Newf("database %q has no open connection", st.Database)
				}
			}
			return nil
		},
	}
}
