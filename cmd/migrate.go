package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg, "migrate")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}
		zap.L().Info("migrations applied", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
