package main

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/connect-cli/internal/extract"
	"github.com/sells-group/connect-cli/internal/ingest"
	"github.com/sells-group/connect-cli/internal/model"
	"github.com/sells-group/connect-cli/pkg/anthropic"
)

var (
	ingestDir   string
	ingestOrg   string
	ingestBatch string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Extract a directory of card scans and queue them for review",
	Long: "Reads every image in --dir, pairs NAME-back.* with NAME.* or NAME-front.*, " +
		"extracts each card with the vision model, and queues valid payloads as awaiting review.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg, "ingest")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		scans, err := collectScans(ingestDir)
		if err != nil {
			return err
		}
		if len(scans) == 0 {
			zap.L().Info("no card images found", zap.String("dir", ingestDir))
			return nil
		}

		ext := extract.New(anthropic.NewClient(cfg.Anthropic.Key), extract.Config{
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Anthropic.MaxTokens,
			Retry:     cfg.RetryPolicy(),
		})
		scope := model.Scope{OrganizationID: ingestOrg}

		sum, err := ingest.New(st).IngestScans(ctx, ext, scope, ingestBatch, scans, cfg.Ingest.Concurrency)
		for key, reason := range sum.Rejected {
			zap.L().Warn("card rejected", zap.String("key", key), zap.String("reason", reason))
		}
		for key, reason := range sum.Failed {
			zap.L().Error("card failed", zap.String("key", key), zap.String("reason", reason))
		}
		if err != nil {
			return err
		}

		zap.L().Info("ingest complete",
			zap.String("org_id", ingestOrg),
			zap.String("batch_id", ingestBatch),
			zap.Int("queued", len(sum.Queued)),
			zap.Int("rejected", len(sum.Rejected)),
			zap.Int("failed", len(sum.Failed)),
		)
		return nil
	},
}

var backSuffixes = []string{"-back", "_back"}
var frontSuffixes = []string{"-front", "_front"}

// collectScans reads the images in dir and pairs backs with fronts by stem.
// Keys are file names relative to dir.
func collectScans(dir string) ([]ingest.Scan, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read scan dir %s", dir)
	}

	fronts := map[string]string{}
	backs := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if s, ok := trimAny(stem, backSuffixes); ok {
			backs[s] = name
			continue
		}
		if s, ok := trimAny(stem, frontSuffixes); ok {
			stem = s
		}
		fronts[stem] = name
	}

	stems := make([]string, 0, len(fronts))
	for s := range fronts {
		stems = append(stems, s)
	}
	slices.Sort(stems)

	scans := make([]ingest.Scan, 0, len(stems))
	for _, stem := range stems {
		front, err := os.ReadFile(filepath.Join(dir, fronts[stem]))
		if err != nil {
			return nil, eris.Wrapf(err, "read scan %s", fronts[stem])
		}
		if !extract.IsImage(front) {
			zap.L().Debug("skipping non-image file", zap.String("file", fronts[stem]))
			continue
		}
		sc := ingest.Scan{FrontKey: fronts[stem], Front: front}
		if backName, ok := backs[stem]; ok {
			back, err := os.ReadFile(filepath.Join(dir, backName))
			if err != nil {
				return nil, eris.Wrapf(err, "read scan %s", backName)
			}
			sc.BackKey, sc.Back = backName, back
		}
		scans = append(scans, sc)
	}
	return scans, nil
}

func trimAny(s string, suffixes []string) (string, bool) {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return strings.TrimSuffix(s, suf), true
		}
	}
	return s, false
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "directory of card scans (required)")
	ingestCmd.Flags().StringVar(&ingestOrg, "org", "", "organization id (required)")
	ingestCmd.Flags().StringVar(&ingestBatch, "batch", "", "batch id to tag the scans with")
	_ = ingestCmd.MarkFlagRequired("dir")
	_ = ingestCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(ingestCmd)
}
