package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/connect-cli/internal/model"
	"github.com/sells-group/connect-cli/internal/review"
	"github.com/sells-group/connect-cli/internal/tui"
)

var (
	reviewOrg   string
	reviewUser  string
	reviewBatch string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review pending connect cards in the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx, cfg, "review")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		events := tui.NewEvents()
		opts := cfg.ReviewOptions()
		if reviewBatch != "" {
			opts.Capabilities.BatchMode = true
		}
		opts.Subscriber = events.Publish

		scope := model.Scope{OrganizationID: reviewOrg, UserID: reviewUser}
		ctrl := review.New(st, initMatcher(cfg, st), scope, opts)
		defer ctrl.Close()

		if err := ctrl.Load(ctx, reviewBatch); err != nil {
			return err
		}
		zap.L().Debug("review session started", zap.String("org_id", reviewOrg), zap.String("batch_id", reviewBatch))
		return tui.Run(ctx, ctrl, events)
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewOrg, "org", "", "organization id (required)")
	reviewCmd.Flags().StringVar(&reviewUser, "user", "", "reviewer user id")
	reviewCmd.Flags().StringVar(&reviewBatch, "batch", "", "limit the queue to one scan batch")
	_ = reviewCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(reviewCmd)
}
