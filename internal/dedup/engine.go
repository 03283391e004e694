// Package dedup detects near-duplicate pantry entries and computes
// deterministic merge plans for them.
package dedup

import (
	"sort"

	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/textmatch"
)

// FindDuplicateGroups groups active pantry items whose normalized name and
// category are equal. Grouping is deliberately exact, not fuzzy: a false
// merge destroys an item, a missed one just leaves clutter. Groups are
// recomputed on demand and never stored.
func FindDuplicateGroups(items []model.PantryItem) []model.DuplicateGroup {
	type groupKey struct {
		name     string
		category string
	}

	buckets := make(map[groupKey][]model.PantryItem)
	var order []groupKey
	for _, item := range items {
		if item.Status != model.ItemActive {
			continue
		}
		name := textmatch.Normalize(item.Name)
		if name == "" {
			continue
		}
		key := groupKey{name: name, category: textmatch.Normalize(item.Category)}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], item)
	}

	var groups []model.DuplicateGroup
	for _, key := range order {
		bucket := buckets[key]
		if len(bucket) < 2 {
			continue
		}
		groups = append(groups, model.DuplicateGroup{
			NormalizedName: key.name,
			Category:       bucket[0].Category,
			Items:          bucket,
		})
	}
	return groups
}

// ChooseKeep picks the item to keep from a duplicate group. The choice is
// deterministic for any enumeration order of the group: price provenance
// rank first, then purchase count, then creation time (oldest wins), then
// item ID as an absolute final tie-break.
//
// The plan is a choose-and-upgrade, not a blind delete: when an archived
// item holds a price with strictly better provenance than the keeper's, the
// plan names it so the merge copies that price onto the keeper.
func ChooseKeep(group model.DuplicateGroup) model.MergePlan {
	if len(group.Items) == 0 {
		return model.MergePlan{}
	}

	items := make([]model.PantryItem, len(group.Items))
	copy(items, group.Items)

	sort.SliceStable(items, func(i, j int) bool {
		iRank := items[i].PriceSource.ProvenanceRank()
		jRank := items[j].PriceSource.ProvenanceRank()
		if iRank != jRank {
			return iRank > jRank
		}
		if items[i].PurchaseCount != items[j].PurchaseCount {
			return items[i].PurchaseCount > items[j].PurchaseCount
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})

	keeper := items[0]
	plan := model.MergePlan{KeepID: keeper.ID}

	// The keeper holds the best provenance by construction, so an archived
	// price only wins when the keeper has no usable price at all. Items are
	// already sorted, so the first priced archive candidate is the best one.
	needPrice := !keeper.LastPrice.IsPositive()
	for _, item := range items[1:] {
		plan.ArchiveIDs = append(plan.ArchiveIDs, item.ID)
		if needPrice && !plan.UpgradedPrice && item.LastPrice.IsPositive() {
			plan.PriceFromID = item.ID
			plan.UpgradedPrice = true
		}
	}

	return plan
}
