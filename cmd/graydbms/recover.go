package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-dbms/internal/dbms"
)

func newRecoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover <database> [connection]",
		Short: "Force a recovery attempt",
		Long: `recover opens the named database and reconnects one connection, or
every connection that failed to open when none is named.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			db, err := reg.Get(args[0])
			if err != nil {
				return err
			}
			if len(args) == 2 {
				if err := db.RecoverByName(ctx, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s recovered\n", args[1])
				return nil
			}

			for _, c := range db.Connections() {
				if c.State() != dbms.StateBroken {
					continue
				}
				if err := db.Recover(ctx, c); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s recovered\n", c.Name())
			}
			return nil
		},
	}
}
