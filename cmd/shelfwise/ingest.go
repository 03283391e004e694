package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise/internal/cli"
	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/ingest"
	"github.com/shelfwise/shelfwise/internal/matcher"
	"github.com/shelfwise/shelfwise/internal/pricing"
	"github.com/shelfwise/shelfwise/internal/reconcile"
)

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <receipt.json> [receipt.json...]",
		Short: "Ingest scanned receipts and match their lines",
		Long: `Ingest one or more scanned receipt files (JSON produced by the OCR
pipeline), match each line against your shopping list and pantry, and
queue the ambiguous lines for review.

Clear matches are applied automatically. Run 'shelfwise review' afterwards
to resolve anything that was queued.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, settings, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	reconciler := reconcile.New(store, matcher.NewWithConfig(settings.Matcher), pricing.NewAggregator(), settings.UserID)

	var bar *progressbar.ProgressBar
	if len(args) > 1 {
		bar = progressbar.NewOptions(len(args),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan][bold]Ingesting receipts...[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Println()
			}),
		)
	}

	var ingested, duplicates, failed, pending int
	for _, path := range args {
		summary, err := ingestOne(cmd, reconciler, path)
		switch {
		case errors.Is(err, common.ErrDuplicateReceipt):
			slog.Warn("Skipping already-ingested receipt", "file", path)
			duplicates++
		case err != nil:
			common.LogError(err, "Failed to ingest receipt", common.Fields{"file": path})
			failed++
		default:
			ingested++
			pending += summary.Enqueued
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	content := fmt.Sprintf("Ingested: %d\nDuplicates skipped: %d\nFailed: %d\nLines queued for review: %d",
		ingested, duplicates, failed, pending)
	fmt.Println(cli.RenderBox(fmt.Sprintf("%s Ingest Complete", cli.ReceiptIcon), content))

	if pending > 0 {
		fmt.Println(cli.FormatInfo("Run 'shelfwise review' to resolve the queued lines."))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d receipts failed to ingest", failed, len(args))
	}

	return nil
}

func ingestOne(cmd *cobra.Command, reconciler *reconcile.Reconciler, path string) (*reconcile.Summary, error) {
	receipt, err := ingest.ParseFile(path)
	if err != nil {
		return nil, err
	}

	summary, err := reconciler.Process(cmd.Context(), receipt)
	if err != nil {
		return nil, err
	}

	slog.Info("Receipt ingested",
		"file", path,
		"receipt", summary.ReceiptID,
		"store", summary.StoreID,
		"lines", summary.Lines,
		"auto_confirmed", summary.AutoConfirmed,
		"enqueued", summary.Enqueued)

	return summary, nil
}
