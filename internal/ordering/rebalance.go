package ordering

import (
	"taskboard/internal/model"
)

// Rebalance evenly re-spaces the keys of one group inside (MinOrder, MaxOrder),
// keeping the items' current relative order (NaN keys end up last).
//
// Only items whose key changes get a patch. This is a maintenance routine; the
// drag path never calls it.
func Rebalance(group []model.Item) []model.Patch {
	if len(group) == 0 {
		return nil
	}
	cur := append([]model.Item(nil), group...)
	SortByOrder(cur)

	step := (MaxOrder - MinOrder) / float64(len(cur)+1)
	out := make([]model.Patch, 0, len(cur))
	for i, it := range cur {
		next := MinOrder + step*float64(i+1)
		if it.Order == next {
			continue
		}
		out = append(out, model.Patch{ID: it.ID, Order: model.FloatPtr(next)})
	}
	return out
}

// NeedsRebalance reports whether any two adjacent keys in group are closer
// than Epsilon (or equal).
func NeedsRebalance(group []model.Item) bool {
	cur := append([]model.Item(nil), group...)
	SortByOrder(cur)
	for i := 1; i < len(cur); i++ {
		if cur[i].Order-cur[i-1].Order < Epsilon {
			return true
		}
	}
	return false
}
