package ordering

import (
	"math"

	"taskboard/internal/model"
)

// Order key space. Keys are sparse floats so a move only rewrites the moved item.
const (
	MinOrder               = 0.0
	MaxOrder               = 74000.0
	DefaultEmptyGroupOrder = 64000.0

	// Epsilon is the smallest gap between a new key and its neighbours that we
	// still treat as safely distinguishable.
	Epsilon = 1e-9
)

// Allocation is the result of placing an item between two neighbours.
//
// NeedsRebalance reports that the gap around the new key has collapsed and the
// group should be re-spaced out of band. The key is still usable.
type Allocation struct {
	Order          float64 `json:"order"`
	NeedsRebalance bool    `json:"needsRebalance"`
}

// ComputeOrder returns a key for an item dropped next to the sibling whose key is
// reference.
//
// When movingDown the item lands just after reference (between reference and the
// next larger sibling key); otherwise it lands just before reference. A side with
// no neighbour is bounded by MaxOrder / MinOrder. NaN sibling keys are ignored.
func ComputeOrder(siblings []model.Item, reference float64, movingDown bool) Allocation {
	if math.IsNaN(reference) || math.IsInf(reference, 0) {
		return Allocation{Order: DefaultEmptyGroupOrder, NeedsRebalance: true}
	}

	neighbour, found := nearest(siblings, reference, movingDown)
	var bound float64
	switch {
	case movingDown && found:
		bound = math.Min(MaxOrder, neighbour)
	case movingDown:
		bound = MaxOrder
	case found:
		bound = math.Max(MinOrder, neighbour)
	default:
		bound = MinOrder
	}

	// A reference outside [MinOrder, MaxOrder] can leave the bound on the wrong
	// side of it. Keep the order correct and ask for a rebalance.
	if (movingDown && bound < reference) || (!movingDown && bound > reference) {
		switch {
		case found:
			bound = neighbour
		case movingDown:
			bound = reference + 2
		default:
			bound = reference - 2
		}
		return Allocation{Order: (bound + reference) / 2, NeedsRebalance: true}
	}

	next := (bound + reference) / 2
	return Allocation{Order: next, NeedsRebalance: collapsed(next, reference, bound)}
}

// nearest returns the closest non-NaN sibling key strictly after reference
// (after=true) or strictly before it.
func nearest(siblings []model.Item, reference float64, after bool) (float64, bool) {
	var v float64
	found := false
	for _, s := range siblings {
		o := s.Order
		if math.IsNaN(o) || (after && o <= reference) || (!after && o >= reference) {
			continue
		}
		if !found || (after && o < v) || (!after && o > v) {
			v = o
			found = true
		}
	}
	return v, found
}

// collapsed reports whether v can no longer be told apart from either neighbour.
func collapsed(v, a, b float64) bool {
	if v == a || v == b {
		return true
	}
	return math.Abs(v-a) < Epsilon || math.Abs(v-b) < Epsilon
}

// Before returns a key that sorts before every key in siblings.
func Before(siblings []model.Item) Allocation {
	lo, ok := extreme(siblings, false)
	if !ok {
		return Allocation{Order: DefaultEmptyGroupOrder}
	}
	return ComputeOrder(siblings, lo, false)
}

// After returns a key that sorts after every key in siblings.
func After(siblings []model.Item) Allocation {
	hi, ok := extreme(siblings, true)
	if !ok {
		return Allocation{Order: DefaultEmptyGroupOrder}
	}
	return ComputeOrder(siblings, hi, true)
}

func extreme(items []model.Item, max bool) (float64, bool) {
	var v float64
	found := false
	for _, it := range items {
		if math.IsNaN(it.Order) {
			continue
		}
		if !found || (max && it.Order > v) || (!max && it.Order < v) {
			v = it.Order
			found = true
		}
	}
	return v, found
}
