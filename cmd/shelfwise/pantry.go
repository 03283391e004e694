package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise/internal/cli"
	"github.com/shelfwise/shelfwise/internal/dedup"
	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/service"
)

func pantryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pantry",
		Short: "Manage your pantry inventory",
	}

	cmd.AddCommand(pantryListCmd())
	cmd.AddCommand(pantryDedupeCmd())

	return cmd
}

func pantryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active pantry items",
		RunE:  runPantryList,
	}
}

func pantryDedupeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Find and merge duplicate pantry items",
		Long: `Scan the pantry for items with the same normalized name and category
and merge each group down to a single item. The kept item absorbs the
purchase counts of the others, and the merged items are archived.

Each merge is confirmed interactively unless --yes is given.`,
		RunE: runPantryDedupe,
	}

	cmd.Flags().BoolP("yes", "y", false, "Apply all merges without prompting")

	return cmd
}

func runPantryList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, settings, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	items, err := store.GetActivePantryItems(ctx, settings.UserID)
	if err != nil {
		return fmt.Errorf("failed to load pantry: %w", err)
	}

	if len(items) == 0 {
		fmt.Println(cli.FormatInfo("Your pantry is empty. Confirm some receipt lines to fill it."))
		return nil
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return items[i].Name < items[j].Name
	})

	var b strings.Builder
	category := ""
	for _, item := range items {
		if item.Category != category {
			if category != "" {
				b.WriteString("\n")
			}
			category = item.Category
			fmt.Fprintf(&b, "%s\n", cli.FormatTitle(categoryHeading(category)))
		}

		line := fmt.Sprintf("  %s %s", stockIndicator(item.Stock), item.Name)
		if item.PurchaseCount > 0 {
			line += fmt.Sprintf("  (bought %s", pluralize(item.PurchaseCount, "time"))
			if item.LastPrice.IsPositive() {
				line += fmt.Sprintf(", last £%s", item.LastPrice.StringFixed(2))
			}
			line += ")"
		}
		b.WriteString(line + "\n")
	}

	fmt.Println(cli.RenderBox(fmt.Sprintf("%s Pantry (%d items)", cli.BasketIcon, len(items)), strings.TrimRight(b.String(), "\n")))

	return nil
}

func runPantryDedupe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, settings, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	items, err := store.GetActivePantryItems(ctx, settings.UserID)
	if err != nil {
		return fmt.Errorf("failed to load pantry: %w", err)
	}

	groups := dedup.FindDuplicateGroups(items)
	if len(groups) == 0 {
		fmt.Println(cli.FormatSuccess("✓ No duplicates found!"))
		return nil
	}

	assumeYes, _ := cmd.Flags().GetBool("yes")

	handler := cli.NewInterruptHandler(nil)
	ctx = handler.HandleInterrupts(ctx, false)

	prompter := cli.NewPrompter(nil, nil)

	var merged, declined int
	for _, group := range groups {
		plan := dedup.ChooseKeep(group)
		if plan.KeepID == "" {
			continue
		}

		if !assumeYes {
			ok, err := prompter.ConfirmMerge(ctx, group, plan)
			if err != nil {
				if errors.Is(err, cli.ErrInputCancelled) || errors.Is(err, context.Canceled) {
					break
				}
				return fmt.Errorf("merge prompt failed: %w", err)
			}
			if !ok {
				declined++
				continue
			}
		}

		if err := applyMerge(ctx, store, settings.UserID, group, plan); err != nil {
			return err
		}
		merged++
	}

	content := fmt.Sprintf("Groups found: %d\nMerged: %d\nDeclined: %d", len(groups), merged, declined)
	fmt.Println(cli.RenderBox(fmt.Sprintf("%s Dedupe Complete", cli.BasketIcon), content))

	return nil
}

func applyMerge(ctx context.Context, store service.Storage, userID string, group model.DuplicateGroup, plan model.MergePlan) error {
	if err := store.ApplyMergePlan(ctx, userID, plan); err != nil {
		return fmt.Errorf("failed to merge %q: %w", group.NormalizedName, err)
	}
	slog.Info("Merged duplicate group",
		"item", group.NormalizedName,
		"kept", plan.KeepID,
		"archived", len(plan.ArchiveIDs),
		"price_upgraded", plan.UpgradedPrice)
	return nil
}

func categoryHeading(category string) string {
	if category == "" {
		return "Uncategorized"
	}
	return category
}

func stockIndicator(stock model.StockLevel) string {
	switch stock {
	case model.StockStocked:
		return "●"
	case model.StockLow:
		return "◐"
	case model.StockOut:
		return "○"
	default:
		return "·"
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
