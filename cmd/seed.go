package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/connect-cli/internal/roster"
)

var seedMigrate bool

var seedCmd = &cobra.Command{
	Use:   "seed FILE.yaml",
	Short: "Load a demo roster and pending cards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		seed, err := roster.LoadSeed(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg, "seed")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if seedMigrate {
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		res, err := seed.Apply(ctx, st)
		if err != nil {
			return err
		}
		zap.L().Info("seed loaded",
			zap.String("org_id", seed.OrganizationID),
			zap.Int64("members", res.Members),
			zap.Int64("leaders", res.Leaders),
			zap.Int("cards", res.Cards),
		)
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedMigrate, "migrate", true, "apply migrations before seeding")
	rootCmd.AddCommand(seedCmd)
}
