package press

// Merge places incoming items whose id is not yet known ahead of existing, in
// presented order, and truncates the result to max entries. Duplicate ids
// within incoming keep their first occurrence. It returns the merged history
// and the number of incoming items it retains; those are merged[:added].
//
// A max below 1 falls back to MaxItems.
func Merge(existing, incoming []Item, max int) ([]Item, int) {
	if max < 1 {
		max = MaxItems
	}

	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, item := range existing {
		seen[item.ID] = struct{}{}
	}

	fresh := make([]Item, 0, len(incoming))
	for _, item := range incoming {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		fresh = append(fresh, item)
	}

	merged := make([]Item, 0, min(len(fresh)+len(existing), max))
	merged = append(merged, fresh...)
	merged = append(merged, existing...)
	if len(merged) > max {
		merged = merged[:max]
	}
	return merged, min(len(fresh), max)
}
