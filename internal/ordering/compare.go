package ordering

import (
	"math"
	"sort"

	"taskboard/internal/model"
)

// OrdinalFunc returns the ordinal of the group an item belongs to, when the
// active dimension is ordinal (status). ok=false sorts the item after every
// item with an ordinal.
type OrdinalFunc func(it model.Item) (ordinal int, ok bool)

// Comparator orders items within a board: group ordinal (optional), priority,
// due date, manual order, then ID.
type Comparator struct {
	Ordinal OrdinalFunc
}

// Compare returns -1, 0 or 1. It never panics on partially loaded items:
// missing ordinals, missing due dates and NaN orders sort last.
func (c Comparator) Compare(a, b model.Item) int {
	if c.Ordinal != nil {
		oa, okA := c.Ordinal(a)
		ob, okB := c.Ordinal(b)
		if r := compareOptionalInt(oa, okA, ob, okB); r != 0 {
			return r
		}
	}
	if r := compareInt(a.Priority.Rank(), b.Priority.Rank()); r != 0 {
		return r
	}
	if r := compareDue(a, b); r != 0 {
		return r
	}
	if r := compareOrder(a.Order, b.Order); r != 0 {
		return r
	}
	// Equal keys still need a stable answer, otherwise re-sorting on every
	// pointer move reshuffles equal cards.
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// Sort sorts items in place using c.
func Sort(items []model.Item, c Comparator) {
	sort.SliceStable(items, func(i, j int) bool {
		return c.Compare(items[i], items[j]) < 0
	})
}

// SortByOrder sorts items by manual order only (NaN last, then ID).
func SortByOrder(items []model.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if r := compareOrder(items[i].Order, items[j].Order); r != 0 {
			return r < 0
		}
		return items[i].ID < items[j].ID
	})
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareOptionalInt(a int, okA bool, b int, okB bool) int {
	switch {
	case okA && okB:
		return compareInt(a, b)
	case okA:
		return -1
	case okB:
		return 1
	}
	return 0
}

func compareDue(a, b model.Item) int {
	switch {
	case a.DueDate != nil && b.DueDate != nil:
		if a.DueDate.Before(*b.DueDate) {
			return -1
		}
		if a.DueDate.After(*b.DueDate) {
			return 1
		}
		return 0
	case a.DueDate != nil:
		return -1
	case b.DueDate != nil:
		return 1
	}
	return 0
}

func compareOrder(a, b float64) int {
	nanA, nanB := math.IsNaN(a), math.IsNaN(b)
	switch {
	case nanA && nanB:
		return 0
	case nanA:
		return 1
	case nanB:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
