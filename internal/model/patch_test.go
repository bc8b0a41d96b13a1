package model

import (
	"testing"
	"time"
)

func TestPatchApplyOnlyTouchesSetFields(t *testing.T) {
	due := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	it := Item{ID: "i1", Title: "keep", StatusID: "st-a", MilestoneID: "ms-1", Order: 10, DueDate: &due}
	p := Patch{ID: "i1", StatusID: StrPtr("st-b"), MilestoneID: StrPtr(""), Order: FloatPtr(15)}
	p.Apply(&it)

	if it.Title != "keep" || it.StatusID != "st-b" || it.MilestoneID != "" || it.Order != 15 {
		t.Fatalf("unexpected item after apply: %+v", it)
	}
	if it.DueDate == nil || !it.DueDate.Equal(due) {
		t.Fatalf("due date should be untouched")
	}

	Patch{ID: "i1", DueDate: TimePtr(time.Time{})}.Apply(&it)
	if it.DueDate != nil {
		t.Fatalf("zero due date should clear")
	}
}

func TestPatchMergeAndOnly(t *testing.T) {
	a := Patch{ID: "i1", Order: FloatPtr(1), StatusID: StrPtr("st-a")}
	b := Patch{Order: FloatPtr(2), AssigneeID: StrPtr("mem-1")}
	m := a.Merge(b)
	if *m.Order != 2 || *m.StatusID != "st-a" || *m.AssigneeID != "mem-1" || m.ID != "i1" {
		t.Fatalf("unexpected merge: %+v", m)
	}
	only := m.Only([]string{FieldOrder})
	if got := only.Fields(); len(got) != 1 || got[0] != FieldOrder {
		t.Fatalf("unexpected fields: %v", got)
	}
}

func TestPatchFromItemRoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	src := Item{ID: "i1", Title: "t", StatusID: "s", Priority: PriorityHigh, Order: 3, GroupChangedAt: &now}
	var dst Item
	PatchFromItem(src).Apply(&dst)
	if dst.ID != "" {
		t.Fatalf("apply must not write the id")
	}
	dst.ID = src.ID
	dst.UpdatedAt = src.UpdatedAt
	if dst.Title != src.Title || dst.StatusID != src.StatusID || dst.Priority != src.Priority || dst.Order != src.Order || dst.DueDate != nil {
		t.Fatalf("unexpected copy: %+v", dst)
	}
	if dst.GroupChangedAt == nil || !dst.GroupChangedAt.Equal(now) {
		t.Fatalf("groupChangedAt lost")
	}
}

func TestPriorityRank(t *testing.T) {
	want := []int{1, 2, 3, 4, 5}
	for i, p := range Priorities {
		if p.Rank() != want[i] {
			t.Fatalf("%q: rank %d want %d", p, p.Rank(), want[i])
		}
	}
	if Priority("bogus").Rank() != 5 || Priority("bogus").Valid() {
		t.Fatalf("unknown priority should rank as none and be invalid")
	}
}
