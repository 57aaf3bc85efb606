package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/connect-cli/internal/roster"
)

var (
	importOrg   string
	importSheet string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import roster spreadsheets into the store",
}

var importMembersCmd = &cobra.Command{
	Use:   "members FILE.xlsx",
	Short: "Upsert members (name, email, phone) from a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rows, err := roster.ReadSheet(args[0], importSheet)
		if err != nil {
			return err
		}
		members, skipped, err := roster.Members(rows, importOrg)
		if err != nil {
			return err
		}
		logSkipped(skipped)

		st, err := initStore(ctx, cfg, "import")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertMembers(ctx, members)
		if err != nil {
			return eris.Wrap(err, "import members")
		}
		zap.L().Info("members imported",
			zap.String("org_id", importOrg),
			zap.Int64("upserted", n),
			zap.Int("skipped", len(skipped)),
			zap.String("file", args[0]),
		)
		return nil
	},
}

var importLeadersCmd = &cobra.Command{
	Use:   "leaders FILE.xlsx",
	Short: "Upsert ministry leaders (name, comma-separated categories) from a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rows, err := roster.ReadSheet(args[0], importSheet)
		if err != nil {
			return err
		}
		leaders, skipped, err := roster.Leaders(rows, importOrg)
		if err != nil {
			return err
		}
		logSkipped(skipped)

		st, err := initStore(ctx, cfg, "import")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertLeaders(ctx, leaders)
		if err != nil {
			return eris.Wrap(err, "import leaders")
		}
		zap.L().Info("leaders imported",
			zap.String("org_id", importOrg),
			zap.Int64("upserted", n),
			zap.Int("skipped", len(skipped)),
			zap.String("file", args[0]),
		)
		return nil
	},
}

func logSkipped(skipped []roster.RowError) {
	for _, s := range skipped {
		zap.L().Warn("row skipped", zap.Int("row", s.Row), zap.String("reason", s.Reason))
	}
}

func init() {
	importCmd.PersistentFlags().StringVar(&importOrg, "org", "", "organization id (required)")
	importCmd.PersistentFlags().StringVar(&importSheet, "sheet", "", "sheet name (default first sheet)")
	_ = importCmd.MarkPersistentFlagRequired("org")
	importCmd.AddCommand(importMembersCmd, importLeadersCmd)
	rootCmd.AddCommand(importCmd)
}
