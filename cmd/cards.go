package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sells-group/connect-cli/internal/model"
)

var (
	cardsOrg   string
	cardsBatch string
)

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "List cards awaiting review",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg, "cards")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cards, err := st.FindPendingCards(ctx, cardsOrg, cardsBatch)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderCards(cards))
		return nil
	},
}

func renderCards(cards []model.PendingCard) string {
	if len(cards) == 0 {
		return "No cards awaiting review."
	}
	header := lipgloss.NewStyle().Bold(true)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "SCANNED", "BATCH", "NAME", "EMAIL", "PHONE", "INTERESTS").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return lipgloss.NewStyle()
		})
	for _, c := range cards {
		t.Row(
			c.ID,
			c.ScannedAt.Format("2006-01-02 15:04"),
			c.BatchID,
			c.Name,
			c.Email,
			c.Phone,
			strings.Join(c.Interests, ", "),
		)
	}
	return fmt.Sprintf("%s\n%d card(s) awaiting review", t.Render(), len(cards))
}

func init() {
	cardsCmd.Flags().StringVar(&cardsOrg, "org", "", "organization id (required)")
	cardsCmd.Flags().StringVar(&cardsBatch, "batch", "", "only cards from this batch")
	_ = cardsCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(cardsCmd)
}
