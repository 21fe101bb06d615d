package dedup

import (
	"sort"
	"time"

	"horse.fit/weekly/internal/config"
	"horse.fit/weekly/internal/textsim"
)

// dateOrSentinel substitutes the policy sentinel for a missing timestamp:
// undated items sort last under earliest and last under latest, exactly as
// the greedy contract requires.
func dateOrSentinel(date *time.Time, missingIsMax bool) time.Time {
	if date != nil && !date.IsZero() {
		return *date
	}
	if missingIsMax {
		return time.Unix(1<<62-1, 0)
	}
	return time.Time{}
}

// sortForPolicy orders items by the active keep-policy's key. The order
// determines which member of a near-duplicate group survives the scan.
func sortForPolicy(items []*Item, policy config.KeepPolicy) {
	switch policy {
	case config.KeepLatest:
		sort.SliceStable(items, func(i, j int) bool {
			return dateOrSentinel(items[i].Date, false).After(dateOrSentinel(items[j].Date, false))
		})
	case config.KeepLongest:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].textLen() > items[j].textLen()
		})
	case config.KeepWeightThenEarliest:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Weight != items[j].Weight {
				return items[i].Weight > items[j].Weight
			}
			return dateOrSentinel(items[i].Date, true).Before(dateOrSentinel(items[j].Date, true))
		})
	default: // earliest
		sort.SliceStable(items, func(i, j int) bool {
			return dateOrSentinel(items[i].Date, true).Before(dateOrSentinel(items[j].Date, true))
		})
	}
}

// greedyScan walks items in their current order keeping the first
// representative of every fingerprint neighborhood: an item is dropped when
// its fingerprint sits within hammingThreshold of any already-kept one.
// O(n·kept) by design; inputs per group are small.
func greedyScan(items []*Item, hammingThreshold int) (kept []*Item, dropped int) {
	used := make([]uint64, 0, len(items))
	for _, it := range items {
		fp := it.Fingerprint()
		duplicate := false
		for _, u := range used {
			if textsim.Hamming(fp, u) <= hammingThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			dropped++
			continue
		}
		kept = append(kept, it)
		used = append(used, fp)
	}
	return kept, dropped
}

// DropWithinSource removes near-duplicates inside each source independently.
// The returned slice preserves the original input order of the survivors;
// sources with a single item pass through untouched.
func DropWithinSource(items []*Item, hammingThreshold int, policy config.KeepPolicy) ([]*Item, int) {
	groups := make(map[string][]*Item)
	order := make([]string, 0)
	for _, it := range items {
		if _, seen := groups[it.SourceID]; !seen {
			order = append(order, it.SourceID)
		}
		groups[it.SourceID] = append(groups[it.SourceID], it)
	}

	keptIDs := make(map[string]struct{}, len(items))
	dropped := 0
	for _, sid := range order {
		group := groups[sid]
		if len(group) <= 1 {
			keptIDs[group[0].ID] = struct{}{}
			continue
		}
		scanOrder := make([]*Item, len(group))
		copy(scanOrder, group)
		sortForPolicy(scanOrder, policy)
		kept, n := greedyScan(scanOrder, hammingThreshold)
		dropped += n
		for _, it := range kept {
			keptIDs[it.ID] = struct{}{}
		}
	}

	out := make([]*Item, 0, len(items)-dropped)
	for _, it := range items {
		if _, ok := keptIDs[it.ID]; ok {
			out = append(out, it)
		}
	}
	return out, dropped
}

// DropAcrossSources removes near-duplicates across all sources. The input is
// sorted globally by the policy before a single greedy scan; the survivors
// are returned in policy order.
func DropAcrossSources(items []*Item, hammingThreshold int, policy config.KeepPolicy) ([]*Item, int) {
	scanOrder := make([]*Item, len(items))
	copy(scanOrder, items)
	sortForPolicy(scanOrder, policy)
	return greedyScan(scanOrder, hammingThreshold)
}
