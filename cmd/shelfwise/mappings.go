package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise/internal/cli"
	"github.com/shelfwise/shelfwise/internal/common"
	"github.com/shelfwise/shelfwise/internal/textmatch"
)

func mappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Manage learned receipt-name mappings",
		Long: `Learned mappings connect cryptic receipt abbreviations to the items
they were confirmed against, so future receipts match automatically.`,
	}

	cmd.AddCommand(mappingsListCmd())
	cmd.AddCommand(mappingsDeleteCmd())

	return cmd
}

func mappingsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List learned mappings",
		RunE:  runMappingsList,
	}
}

func mappingsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <receipt name>",
		Short: "Forget a learned mapping",
		Long: `Delete the mapping for a receipt name so future occurrences go back
through normal matching. Use this when a confirmation was a mistake.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMappingsDelete,
	}
}

func runMappingsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, settings, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	mappings, err := store.ListMappings(ctx, settings.UserID)
	if err != nil {
		return fmt.Errorf("failed to load mappings: %w", err)
	}

	if len(mappings) == 0 {
		fmt.Println(cli.FormatInfo("No learned mappings yet. Confirm some receipt lines to create them."))
		return nil
	}

	var b strings.Builder
	for _, m := range mappings {
		fmt.Fprintf(&b, "%-30s → %s\n", m.ReceiptName, m.CanonicalName)
		fmt.Fprintf(&b, "  used %s, last %s\n", pluralize(m.UseCount, "time"), m.LastUsedAt.Format("2006-01-02"))
	}

	fmt.Println(cli.RenderBox(fmt.Sprintf("Learned Mappings (%d)", len(mappings)), strings.TrimRight(b.String(), "\n")))

	return nil
}

func runMappingsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, settings, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	name := textmatch.Normalize(strings.Join(args, " "))

	if err := store.DeleteMapping(ctx, settings.UserID, name); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			fmt.Println(cli.FormatWarning(fmt.Sprintf("No mapping found for %q", name)))
			return nil
		}
		return fmt.Errorf("failed to delete mapping: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("✓ Forgot mapping for %q", name)))
	return nil
}
