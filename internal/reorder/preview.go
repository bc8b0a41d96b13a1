package reorder

import (
	"time"

	"taskboard/internal/grouping"
	"taskboard/internal/model"
	"taskboard/internal/mutate"
	"taskboard/internal/ordering"
)

// Move is a computed drop: the patch to write and where it lands.
type Move struct {
	Dimension grouping.Kind `json:"dimension"`

	Patch model.Patch `json:"patch"`
	From  model.Group `json:"from"`
	To    model.Group `json:"to"`
	// NeedsRebalance asks for an out-of-band re-spacing of To.
	NeedsRebalance bool `json:"needsRebalance"`
	// Noop is set when the drop leaves the item where it already is.
	Noop bool `json:"noop"`
}

// PreviewMove computes the patch for dropping activeID on target. It reads
// nothing but its arguments and never mutates them.
func PreviewMove(items []model.Item, activeID string, target Target, dim grouping.Dimension, groups []model.Group, now time.Time) (Move, error) {
	if dim == nil {
		return Move{}, mutate.ValidationError{Reason: "no grouping dimension"}
	}
	if !target.Valid() {
		return Move{}, mutate.ValidationError{Reason: "no drop target"}
	}
	active, ok := findItem(items, activeID)
	if !ok {
		return Move{}, mutate.ValidationError{Reason: "active item missing", Err: mutate.NotFoundError{Kind: "item", ID: activeID}}
	}

	var (
		group model.Group
		alloc ordering.Allocation
	)
	switch target.Kind {
	case TargetItem:
		if target.ID == activeID {
			return Move{}, mutate.ValidationError{Reason: "item dropped on itself"}
		}
		over, ok := findItem(items, target.ID)
		if !ok {
			return Move{}, mutate.ValidationError{Reason: "drop target missing", Err: mutate.NotFoundError{Kind: "item", ID: target.ID}}
		}
		group = dim.GroupFor(over, groups)
		siblings := membersOf(items, dim, group, activeID)
		alloc = ordering.ComputeOrder(siblings, over.Order, active.Order < over.Order)
	case TargetGroup:
		g, ok := resolveGroup(items, dim, groups, target.ID)
		if !ok {
			return Move{}, mutate.ValidationError{Reason: "drop target missing", Err: mutate.NotFoundError{Kind: "group", ID: target.ID}}
		}
		group = g
		alloc = ordering.Allocation{Order: ordering.DefaultEmptyGroupOrder}
		for _, s := range membersOf(items, dim, group, activeID) {
			if s.Order == alloc.Order {
				alloc.NeedsRebalance = true
				break
			}
		}
	}

	mv := Move{Dimension: dim.Kind(), From: dim.GroupFor(active, groups), To: group, NeedsRebalance: alloc.NeedsRebalance}
	p := model.Patch{ID: active.ID}
	if alloc.Order != active.Order {
		p.Order = model.FloatPtr(alloc.Order)
	}
	mv.Patch = dim.ApplyAssignment(active, p, group)
	mv.Noop = mv.Patch.Empty()
	if !mv.Noop {
		mv.Patch.GroupChangedAt = model.TimePtr(now.UTC())
	}
	return mv, nil
}

func findItem(items []model.Item, id string) (model.Item, bool) {
	if id == "" {
		return model.Item{}, false
	}
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return model.Item{}, false
}

// membersOf returns the items of group g except skipID.
func membersOf(items []model.Item, dim grouping.Dimension, g model.Group, skipID string) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if it.ID == skipID || !dim.Contains(it, g) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// resolveGroup finds key among the canonical groups, falling back to a group
// synthesised from an item that carries key (unknown remote groups still show
// on the board and accept drops).
func resolveGroup(items []model.Item, dim grouping.Dimension, groups []model.Group, key string) (model.Group, bool) {
	for _, g := range groups {
		if g.Key == key {
			return g, true
		}
	}
	for _, it := range items {
		if dim.GroupKey(it) == key {
			return dim.GroupFor(it, groups), true
		}
	}
	return model.Group{}, false
}
