package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise/internal/cli"
	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/pricing"
	"github.com/shelfwise/shelfwise/internal/queue"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review receipt lines that need a decision",
		Long: `Walk through the receipt lines the matcher could not resolve on its own.

For each line you can confirm a suggested match, create a new pantry item,
skip the line, or mark it as permanently unmatchable.`,
		RunE: runReview,
	}

	cmd.Flags().StringP("receipt", "r", "", "Review only the pending lines of one receipt ID")

	return cmd
}

func runReview(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, settings, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	receiptID, _ := cmd.Flags().GetString("receipt")

	var matches []model.PendingMatch
	q := queue.New(store, pricing.NewAggregator(), settings.UserID)
	if receiptID != "" {
		matches, err = q.Pending(ctx, receiptID)
	} else {
		matches, err = store.GetOpenPendingMatches(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to load pending matches: %w", err)
	}

	if len(matches) == 0 {
		fmt.Println(cli.FormatSuccess("✓ Nothing to review!"))
		return nil
	}

	handler := cli.NewInterruptHandler(nil)
	ctx = handler.HandleInterrupts(ctx, true)

	prompter := cli.NewPrompter(nil, nil)

	var confirmed, created, skipped, unmatched int
	skipReceipts := make(map[string]bool)

	for i, match := range matches {
		if skipReceipts[match.ReceiptID] {
			continue
		}

		choice, err := prompter.Review(ctx, match, i+1, len(matches))
		if err != nil {
			if errors.Is(err, cli.ErrInputCancelled) || errors.Is(err, context.Canceled) {
				break
			}
			return fmt.Errorf("review failed: %w", err)
		}

		switch choice.Action {
		case cli.ActionConfirm:
			if choice.Candidate.Target == nil {
				return fmt.Errorf("candidate %q has no target", choice.Candidate.TargetName)
			}
			if _, err := q.Confirm(ctx, match.ID, *choice.Candidate.Target); err != nil {
				return fmt.Errorf("failed to confirm match: %w", err)
			}
			confirmed++
		case cli.ActionNewItem:
			if _, err := q.ConfirmNew(ctx, match.ID, choice.Name, choice.Category); err != nil {
				return fmt.Errorf("failed to create item: %w", err)
			}
			created++
		case cli.ActionSkip:
			if _, err := q.Skip(ctx, match.ID); err != nil {
				return fmt.Errorf("failed to skip match: %w", err)
			}
			skipped++
		case cli.ActionNoMatch:
			if _, err := q.NoMatch(ctx, match.ID); err != nil {
				return fmt.Errorf("failed to mark no-match: %w", err)
			}
			unmatched++
		case cli.ActionSkipAll:
			n, err := q.SkipAll(ctx, match.ReceiptID)
			if err != nil {
				return fmt.Errorf("failed to skip receipt: %w", err)
			}
			skipped += n
			skipReceipts[match.ReceiptID] = true
			slog.Info("Skipped remaining lines for receipt", "receipt", match.ReceiptID, "count", n)
		}
	}

	content := fmt.Sprintf("Confirmed: %d\nNew items: %d\nSkipped: %d\nNo match: %d",
		confirmed, created, skipped, unmatched)
	fmt.Println(cli.RenderBox(fmt.Sprintf("%s Review Summary", cli.BasketIcon), content))

	if handler.WasInterrupted() {
		fmt.Println(cli.FormatInfo("Progress saved. Run 'shelfwise review' to continue."))
	}

	return nil
}
