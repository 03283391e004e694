package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise/internal/cli"
	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/pricing"
	"github.com/shelfwise/shelfwise/internal/stores"
	"github.com/shelfwise/shelfwise/internal/textmatch"
)

func compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <item name>",
		Short: "Compare an item's prices across stores",
		Long: `Compare what an item costs at every store it has been seen at, find
the cheapest store for each package size, and work out the best value
per unit across sizes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCompare,
	}
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, _, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	name := textmatch.Normalize(strings.Join(args, " "))
	if name == "" {
		return fmt.Errorf("item name is empty after normalization")
	}

	prices, err := store.GetCurrentPricesForItem(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load prices: %w", err)
	}
	if len(prices) == 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("No prices recorded yet for %q", name)))
		return nil
	}

	catalog, err := store.GetStores(ctx)
	if err != nil {
		return fmt.Errorf("failed to load store catalog: %w", err)
	}
	normalizer := stores.NewNormalizer(catalog)

	cells := make([]model.PriceCell, 0, len(prices))
	for _, price := range prices {
		cells = append(cells, model.PriceCell{
			StoreID: price.StoreID,
			Size:    price.Size,
			Price:   price.UnitPrice,
		})
	}

	comparison := pricing.Analyze(cells)

	sizes := make([]string, 0, len(comparison.CheapestPerSize))
	for size := range comparison.CheapestPerSize {
		sizes = append(sizes, size)
	}
	sort.Strings(sizes)

	var b strings.Builder
	b.WriteString("Cheapest per size:\n")
	for _, size := range sizes {
		cell := comparison.CheapestPerSize[size]
		fmt.Fprintf(&b, "  %-10s £%s at %s\n", size, cell.Price.StringFixed(2), storeDisplayName(normalizer, cell.StoreID))
	}

	if best := comparison.Best; best != nil {
		fmt.Fprintf(&b, "\nBest value: %s at %s\n  £%s (£%s per unit)",
			best.Size,
			storeDisplayName(normalizer, best.StoreID),
			best.Price.StringFixed(2),
			best.PricePerUnit.StringFixed(4))
	}

	fmt.Println(cli.RenderBox(fmt.Sprintf("%s Compare: %s", cli.ChartIcon, name), strings.TrimRight(b.String(), "\n")))

	return nil
}
