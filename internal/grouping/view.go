package grouping

import (
	"taskboard/internal/model"
	"taskboard/internal/ordering"
)

type ViewOptions struct {
	// HideEmpty drops groups without items.
	HideEmpty bool
	// DropTarget is the key of the group an active drag hovers. It stays
	// visible even when empty and HideEmpty is set.
	DropTarget *string
}

type Bucket struct {
	Group model.Group  `json:"group"`
	Items []model.Item `json:"items"`
}

// View is a board partitioned along one dimension, groups in display order.
type View struct {
	Dimension Kind     `json:"dimension"`
	Buckets   []Bucket `json:"groups"`
}

// BuildView partitions items, which must already be sorted with the
// dimension's comparator, into the canonical groups.
//
// Canonical groups are seeded first so configured groups stay visible with no
// items. An item whose key has no canonical group gets a synthesised null-id
// group appended after the canonical ones. Every input item lands in exactly
// one bucket.
func BuildView(items []model.Item, dim Dimension, groups []model.Group, opts ViewOptions) View {
	v := View{Dimension: dim.Kind()}
	index := map[string]int{}
	v.Buckets = make([]Bucket, 0, len(groups)+1)
	for _, g := range groups {
		if _, dup := index[g.Key]; dup {
			continue
		}
		index[g.Key] = len(v.Buckets)
		v.Buckets = append(v.Buckets, Bucket{Group: g, Items: []model.Item{}})
	}

	for _, it := range items {
		key := dim.GroupKey(it)
		i, ok := index[key]
		if !ok {
			i = len(v.Buckets)
			index[key] = i
			v.Buckets = append(v.Buckets, Bucket{Group: dim.GroupFor(it, groups), Items: []model.Item{}})
		}
		v.Buckets[i].Items = append(v.Buckets[i].Items, it)
	}

	if opts.HideEmpty {
		kept := v.Buckets[:0]
		for _, b := range v.Buckets {
			if len(b.Items) == 0 && (opts.DropTarget == nil || *opts.DropTarget != b.Group.Key) {
				continue
			}
			kept = append(kept, b)
		}
		v.Buckets = kept
	}
	return v
}

// Board sorts a copy of items with the dimension's comparator and builds the view.
func Board(items []model.Item, dim Dimension, groups []model.Group, opts ViewOptions) View {
	sorted := append([]model.Item(nil), items...)
	ordering.Sort(sorted, ordering.Comparator{Ordinal: dim.Ordinal(groups)})
	return BuildView(sorted, dim, groups, opts)
}

// Group returns the bucket with the given key.
func (v View) Group(key string) (Bucket, bool) {
	for _, b := range v.Buckets {
		if b.Group.Key == key {
			return b, true
		}
	}
	return Bucket{}, false
}

// ByName indexes buckets by group name. When two groups share a name the
// first one in display order wins; Buckets stays authoritative.
func (v View) ByName() map[string]Bucket {
	out := make(map[string]Bucket, len(v.Buckets))
	for _, b := range v.Buckets {
		if _, ok := out[b.Group.Name]; ok {
			continue
		}
		out[b.Group.Name] = b
	}
	return out
}

// Count returns the number of items across all buckets.
func (v View) Count() int {
	n := 0
	for _, b := range v.Buckets {
		n += len(b.Items)
	}
	return n
}

// Locate returns the bucket index and item index of itemID.
func (v View) Locate(itemID string) (int, int, bool) {
	for bi := range v.Buckets {
		for ii := range v.Buckets[bi].Items {
			if v.Buckets[bi].Items[ii].ID == itemID {
				return bi, ii, true
			}
		}
	}
	return 0, 0, false
}
