package grouping

import (
	"context"
	"errors"
	"testing"

	"taskboard/internal/model"
)

type fakeSource struct {
	groups map[Kind][]model.Group
	err    error
	scopes []model.Scope
}

func (f *fakeSource) FetchGroupsForDimension(ctx context.Context, kind Kind, scope model.Scope) ([]model.Group, error) {
	f.scopes = append(f.scopes, scope)
	if f.err != nil {
		return nil, f.err
	}
	return f.groups[kind], nil
}

func intPtr(i int) *int { return &i }

func testSource() *fakeSource {
	ms := model.Milestone{ID: "ms-b1", ProjectID: "prj-b", Name: "B1"}
	return &fakeSource{groups: map[Kind][]model.Group{
		KindStatus: {
			{ID: "st-todo", Name: "To Do", Ordinal: intPtr(1)},
			{ID: "st-review", Name: "Review", Ordinal: intPtr(2)},
			{ID: "st-done", Name: "Done", Ordinal: intPtr(3)},
		},
		KindAssignee:  {{ID: "mem-ann", Name: "Ann"}},
		KindProject:   {{ID: "prj-a", Name: "A", Ordinal: intPtr(1)}, {ID: "prj-b", Name: "B", Ordinal: intPtr(2)}},
		KindMilestone: {{ID: "ms-b1", Name: "B1", Milestone: &ms}},
	}}
}

func testItems() []model.Item {
	return []model.Item{
		{ID: "i1", StatusID: "st-todo", AssigneeID: "mem-ann", Priority: model.PriorityHigh, ProjectID: "prj-a", Order: 10},
		{ID: "i2", StatusID: "st-todo", Priority: model.PriorityUrgent, ProjectID: "prj-b", MilestoneID: "ms-b1", Order: 20},
		{ID: "i3", StatusID: "st-ghost", AssigneeID: "mem-gone", Order: 30},
		{ID: "i4", Priority: "weird", ProjectID: "prj-a", Order: 40},
		{ID: "i5", StatusID: "st-done", Priority: model.PriorityLow, Order: 50},
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind(" Assignee "); err != nil || k != KindAssignee {
		t.Fatalf("ParseKind: %v %v", k, err)
	}
	if k, err := ParseKind(""); err != nil || k != KindStatus {
		t.Fatalf("empty should default to status: %v %v", k, err)
	}
	if _, err := ParseKind("color"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Lookup("color"); err == nil {
		t.Fatalf("expected lookup error")
	}
	for _, k := range Kinds() {
		d := MustLookup(k)
		if d.Kind() != k {
			t.Fatalf("lookup %s returned %s", k, d.Kind())
		}
	}
}

func TestListGroups_RemoteAppendsNoneBucket(t *testing.T) {
	src := testSource()
	groups, err := MustLookup(KindStatus).ListGroups(context.Background(), src, model.Scope{})
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 4 {
		t.Fatalf("expected 3 statuses + none, got %d", len(groups))
	}
	last := groups[len(groups)-1]
	if last.ID != "" || last.Key != "" || last.Name != "No status" {
		t.Fatalf("unexpected none bucket: %+v", last)
	}
	if groups[0].Key != "st-todo" || groups[0].Dimension != string(KindStatus) {
		t.Fatalf("expected key defaulted from id: %+v", groups[0])
	}
}

func TestListGroups_SyntheticNeverCallsSource(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	for _, k := range []Kind{KindPriority, KindNone} {
		groups, err := MustLookup(k).ListGroups(context.Background(), src, model.Scope{})
		if err != nil {
			t.Fatalf("%s: %v", k, err)
		}
		for _, g := range groups {
			if !g.Synthetic() {
				t.Fatalf("%s: expected synthetic group, got %+v", k, g)
			}
		}
	}
	if len(src.scopes) != 0 {
		t.Fatalf("synthetic dimensions must not fetch")
	}
	if _, err := MustLookup(KindStatus).ListGroups(context.Background(), src, model.Scope{}); err == nil {
		t.Fatalf("expected fetch error to surface")
	}
}

func TestBuildView_PreservesItemCount(t *testing.T) {
	src := testSource()
	items := testItems()
	for _, k := range Kinds() {
		dim := MustLookup(k)
		groups, err := dim.ListGroups(context.Background(), src, model.Scope{})
		if err != nil {
			t.Fatalf("%s: %v", k, err)
		}
		for _, hide := range []bool{false, true} {
			v := Board(items, dim, groups, ViewOptions{HideEmpty: hide})
			if v.Count() != len(items) {
				t.Fatalf("%s hide=%v: got %d items, want %d", k, hide, v.Count(), len(items))
			}
			seen := map[string]bool{}
			for _, b := range v.Buckets {
				for _, it := range b.Items {
					if seen[it.ID] {
						t.Fatalf("%s: item %s duplicated", k, it.ID)
					}
					seen[it.ID] = true
					if !dim.Contains(it, b.Group) {
						t.Fatalf("%s: item %s placed in foreign group %q", k, it.ID, b.Group.Key)
					}
				}
			}
		}
	}
}

func TestBuildView_SynthesisesUnknownGroupAndKeepsOrder(t *testing.T) {
	dim := MustLookup(KindStatus)
	groups, _ := dim.ListGroups(context.Background(), testSource(), model.Scope{})
	v := Board(testItems(), dim, groups, ViewOptions{})

	b, ok := v.Group("st-ghost")
	if !ok {
		t.Fatalf("expected synthesised group for unknown status")
	}
	if b.Group.ID != "" || len(b.Items) != 1 {
		t.Fatalf("unexpected synthesised bucket: %+v", b)
	}
	if v.Buckets[len(v.Buckets)-1].Group.Key != "st-ghost" {
		t.Fatalf("expected synthesised group after canonical groups")
	}

	todo, _ := v.Group("st-todo")
	if len(todo.Items) != 2 || todo.Items[0].ID != "i2" {
		t.Fatalf("expected urgent i2 first in To Do, got %+v", todo.Items)
	}
	if _, ok := v.ByName()["Review"]; !ok {
		t.Fatalf("expected empty Review group to stay visible")
	}
}

func TestBuildView_HideEmptyKeepsDropTarget(t *testing.T) {
	dim := MustLookup(KindStatus)
	groups, _ := dim.ListGroups(context.Background(), testSource(), model.Scope{})

	v := Board(testItems(), dim, groups, ViewOptions{HideEmpty: true})
	if _, ok := v.Group("st-review"); ok {
		t.Fatalf("expected empty Review hidden")
	}

	target := "st-review"
	v = Board(testItems(), dim, groups, ViewOptions{HideEmpty: true, DropTarget: &target})
	if _, ok := v.Group("st-review"); !ok {
		t.Fatalf("expected hovered Review group to stay visible")
	}
}

func TestApplyAssignment_NullProjectAlwaysNullsMilestone(t *testing.T) {
	it := model.Item{ID: "i2", StatusID: "st-todo", ProjectID: "prj-b", MilestoneID: "ms-b1"}
	noProject := model.Group{Key: "", Name: "No project"}
	for _, k := range Kinds() {
		dim := MustLookup(k)
		p := dim.ApplyAssignment(it, model.Patch{ID: it.ID, ProjectID: model.StrPtr("")}, dim.GroupFor(it, nil))
		if p.MilestoneID == nil || *p.MilestoneID != "" {
			t.Fatalf("%s: expected milestone null, got %+v", k, p)
		}
	}
	p := MustLookup(KindProject).ApplyAssignment(it, model.Patch{ID: it.ID}, noProject)
	if p.ProjectID == nil || *p.ProjectID != "" || p.MilestoneID == nil || *p.MilestoneID != "" {
		t.Fatalf("project dimension: expected both cleared, got %+v", p)
	}
}

func TestApplyAssignment_OnlyChangedFields(t *testing.T) {
	it := model.Item{ID: "i1", StatusID: "st-todo", ProjectID: "prj-a", MilestoneID: "ms-a1"}

	p := MustLookup(KindStatus).ApplyAssignment(it, model.Patch{ID: it.ID}, model.Group{Key: "st-todo"})
	if !p.Empty() {
		t.Fatalf("same group should not write fields, got %v", p.Fields())
	}
	p = MustLookup(KindProject).ApplyAssignment(it, model.Patch{ID: it.ID}, model.Group{Key: "prj-a"})
	if !p.Empty() {
		t.Fatalf("same project must keep milestone, got %v", p.Fields())
	}
	p = MustLookup(KindProject).ApplyAssignment(it, model.Patch{ID: it.ID}, model.Group{Key: "prj-b"})
	if *p.ProjectID != "prj-b" || p.MilestoneID == nil || *p.MilestoneID != "" {
		t.Fatalf("project switch should clear milestone, got %+v", p)
	}

	ms := model.Milestone{ID: "ms-b1", ProjectID: "prj-b"}
	p = MustLookup(KindMilestone).ApplyAssignment(it, model.Patch{ID: it.ID}, model.Group{ID: "ms-b1", Key: "ms-b1", Milestone: &ms})
	if *p.MilestoneID != "ms-b1" || p.ProjectID == nil || *p.ProjectID != "prj-b" {
		t.Fatalf("milestone should pull project along, got %+v", p)
	}

	p = MustLookup(KindPriority).ApplyAssignment(it, model.Patch{ID: it.ID}, model.Group{Key: "urgent"})
	if p.Priority == nil || *p.Priority != model.PriorityUrgent {
		t.Fatalf("priority not assigned: %+v", p)
	}
	p = MustLookup(KindNone).ApplyAssignment(it, model.Patch{ID: it.ID, Order: model.FloatPtr(5)}, model.Group{})
	if len(p.Fields()) != 1 {
		t.Fatalf("none dimension must only carry order, got %v", p.Fields())
	}
}

func TestOrdinal_OnlyForGroupsWithOrdinals(t *testing.T) {
	groups, _ := MustLookup(KindStatus).ListGroups(context.Background(), testSource(), model.Scope{})
	fn := MustLookup(KindStatus).Ordinal(groups)
	if fn == nil {
		t.Fatalf("expected status ordinal")
	}
	if o, ok := fn(model.Item{StatusID: "st-done"}); !ok || o != 3 {
		t.Fatalf("unexpected ordinal %d %v", o, ok)
	}
	if _, ok := fn(model.Item{}); ok {
		t.Fatalf("no status should have no ordinal")
	}
	if MustLookup(KindAssignee).Ordinal(nil) != nil {
		t.Fatalf("assignee is not ordinal")
	}
}
