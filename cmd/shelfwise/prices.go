package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise/internal/cli"
	"github.com/shelfwise/shelfwise/internal/pricing"
	"github.com/shelfwise/shelfwise/internal/stores"
	"github.com/shelfwise/shelfwise/internal/textmatch"
)

func pricesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices <item name>",
		Short: "Show known prices for an item",
		Long: `Show the current price aggregates for an item across every store and
size it has been seen at, plus optionally its recent price history.

Item names are normalized before lookup, so "Heinz Baked Beans" and
"heinz baked beans" refer to the same item.`,
		Args: cobra.ArbitraryArgs,
		RunE: runPrices,
	}

	cmd.Flags().StringP("item", "i", "", "Item name (alternative to positional arguments)")
	cmd.Flags().IntP("history", "n", 0, "Also show the last N raw price observations")

	return cmd
}

func runPrices(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, _, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	raw, _ := cmd.Flags().GetString("item")
	if raw == "" {
		raw = strings.Join(args, " ")
	}

	name := textmatch.Normalize(raw)
	if name == "" {
		return fmt.Errorf("an item name is required, e.g. 'shelfwise prices heinz beans'")
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

	aggregator := pricing.NewAggregator()

	var b strings.Builder
	for _, price := range prices {
		confidence := aggregator.ConfidenceAt(price, time.Now())
		fmt.Fprintf(&b, "%s (%s)\n", storeDisplayName(normalizer, price.StoreID), price.Size)
		fmt.Fprintf(&b, "  Latest: £%s   Average: £%s   Range: £%s-£%s\n",
			price.UnitPrice.StringFixed(2),
			price.AveragePrice.StringFixed(2),
			price.MinPrice.StringFixed(2),
			price.MaxPrice.StringFixed(2))
		fmt.Fprintf(&b, "  Reports: %d   Confidence: %.0f%%   Last seen: %s\n\n",
			price.ReportCount, confidence*100, price.LastSeenAt.Format("2006-01-02"))
	}

	fmt.Println(cli.RenderBox(fmt.Sprintf("%s Prices for %s", cli.PriceIcon, name), strings.TrimRight(b.String(), "\n")))

	historyLimit, _ := cmd.Flags().GetInt("history")
	if historyLimit > 0 {
		observations, err := store.GetPriceObservations(ctx, name, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load price history: %w", err)
		}

		var h strings.Builder
		trend := pricing.Trend(observations)
		if trend.Direction != "stable" {
			fmt.Fprintf(&h, "Trend: %s %s £%s (%.1f%%) over %d days\n\n",
				pricing.TrendArrow(trend.Direction),
				trend.Direction,
				trend.ChangeAmount.Abs().StringFixed(2),
				trend.ChangePercent,
				trend.PeriodDays)
		}
		for _, obs := range observations {
			fmt.Fprintf(&h, "%s  £%s  %s (%s)\n",
				obs.ObservedAt.Format("2006-01-02"),
				obs.Price.StringFixed(2),
				storeDisplayName(normalizer, obs.StoreID),
				obs.Size)
		}
		fmt.Println(cli.RenderBox("Recent Observations", strings.TrimRight(h.String(), "\n")))
	}

	return nil
}
