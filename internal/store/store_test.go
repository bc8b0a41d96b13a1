package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"taskboard/internal/grouping"
	"taskboard/internal/model"
	"taskboard/internal/mutate"
)

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func openSeeded(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "board.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	s.SetClock(func() time.Time { return testNow })
	if err := s.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return s
}

func TestOpen_EmptyAndSeed(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "nested", "board.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	empty, err := s.Empty(ctx)
	if err != nil || !empty {
		t.Fatalf("expected empty store: %v %v", empty, err)
	}
	if err := s.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if empty, _ := s.Empty(ctx); empty {
		t.Fatalf("expected seeded store")
	}
}

func TestFetchItems_Paginates(t *testing.T) {
	s := openSeeded(t)
	ctx := context.Background()

	seen := map[string]bool{}
	f := Filter{Limit: 4}
	pages := 0
	for {
		page, err := s.FetchItems(ctx, f)
		if err != nil {
			t.Fatalf("FetchItems: %v", err)
		}
		pages++
		for _, it := range page.Items {
			if seen[it.ID] {
				t.Fatalf("item %s returned twice", it.ID)
			}
			seen[it.ID] = true
		}
		if page.Next == "" {
			break
		}
		f.Cursor = page.Next
	}
	if pages != 2 || len(seen) != 6 {
		t.Fatalf("expected 6 items over 2 pages, got %d over %d", len(seen), pages)
	}

	if _, err := s.FetchItems(ctx, Filter{Cursor: "!!not base64"}); !mutate.IsValidation(err) {
		t.Fatalf("bad cursor should be a validation error, got %v", err)
	}

	web, err := s.FetchAll(ctx, Filter{ProjectID: "prj-web"})
	if err != nil || len(web) != 3 {
		t.Fatalf("expected 3 website items, got %d (%v)", len(web), err)
	}
}

func TestPersistPatch_WritesOnlyPatchedFields(t *testing.T) {
	s := openSeeded(t)
	ctx := context.Background()

	later := testNow.Add(time.Hour)
	s.SetClock(func() time.Time { return later })
	got, err := s.PersistPatch(ctx, model.Patch{ID: "item-login", StatusID: model.StrPtr("st-review"), Order: model.FloatPtr(64000), GroupChangedAt: model.TimePtr(later)})
	if err != nil {
		t.Fatalf("PersistPatch: %v", err)
	}
	if got.StatusID != "st-review" || got.Order != 64000 || got.Title != "Login form" || got.AssigneeID != "mem-ann" {
		t.Fatalf("unexpected item: %+v", got)
	}
	if got.GroupChangedAt == nil || !got.GroupChangedAt.Equal(later) || !got.UpdatedAt.Equal(later) {
		t.Fatalf("timestamps not stored: %+v", got)
	}
	if got.DueDate == nil {
		t.Fatalf("due date should be untouched")
	}

	got, err = s.PersistPatch(ctx, model.Patch{ID: "item-login", DueDate: model.TimePtr(time.Time{}), Order: model.FloatPtr(math.NaN())})
	if err != nil {
		t.Fatalf("PersistPatch: %v", err)
	}
	if got.DueDate != nil || !math.IsNaN(got.Order) {
		t.Fatalf("expected cleared due date and NaN order, got %+v", got)
	}
}

func TestPersistPatch_Conflicts(t *testing.T) {
	s := openSeeded(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		patch model.Patch
		group string
	}{
		{"missing item", model.Patch{ID: "item-gone", Order: model.FloatPtr(1)}, ""},
		{"missing status", model.Patch{ID: "item-login", StatusID: model.StrPtr("st-gone")}, "st-gone"},
		{"missing member", model.Patch{ID: "item-login", AssigneeID: model.StrPtr("mem-gone")}, "mem-gone"},
		{"milestone of other project", model.Patch{ID: "item-login", MilestoneID: model.StrPtr("ms-app-mvp")}, ""},
		{"project change keeps milestone", model.Patch{ID: "item-login", ProjectID: model.StrPtr("prj-app")}, ""},
	}
	for _, tc := range cases {
		_, err := s.PersistPatch(ctx, tc.patch)
		var c mutate.ConflictError
		if !errors.As(err, &c) {
			t.Fatalf("%s: expected conflict, got %v", tc.name, err)
		}
		if c.Group != tc.group {
			t.Fatalf("%s: expected vanished group %q, got %q", tc.name, tc.group, c.Group)
		}
	}
	it, _ := s.FetchItem(ctx, "item-login")
	if it.StatusID != "st-todo" || it.ProjectID != "prj-web" || it.MilestoneID != "ms-web-beta" {
		t.Fatalf("conflicting patches must not write: %+v", it)
	}

	got, err := s.PersistPatch(ctx, model.Patch{ID: "item-login", ProjectID: model.StrPtr(""), MilestoneID: model.StrPtr("")})
	if err != nil || got.ProjectID != "" || got.MilestoneID != "" {
		t.Fatalf("clearing project with milestone should succeed: %+v %v", got, err)
	}
	if _, err := s.PersistPatch(ctx, model.Patch{ID: "item-login", Priority: model.PriorityPtr("bogus")}); !mutate.IsValidation(err) {
		t.Fatalf("bad priority should be a validation error, got %v", err)
	}
	if _, err := s.FetchItem(ctx, "item-gone"); err == nil {
		t.Fatalf("expected not found")
	}
}

func TestFetchGroupsForDimension(t *testing.T) {
	s := openSeeded(t)
	ctx := context.Background()

	statuses, err := s.FetchGroupsForDimension(ctx, grouping.KindStatus, model.Scope{})
	if err != nil || len(statuses) != 4 {
		t.Fatalf("statuses: %d %v", len(statuses), err)
	}
	if statuses[0].Key != "st-todo" || *statuses[0].Ordinal != 1 || statuses[0].Status == nil {
		t.Fatalf("unexpected first status group: %+v", statuses[0])
	}

	milestones, err := s.FetchGroupsForDimension(ctx, grouping.KindMilestone, model.Scope{ProjectID: "prj-web"})
	if err != nil || len(milestones) != 2 {
		t.Fatalf("scoped milestones: %d %v", len(milestones), err)
	}
	if milestones[0].Milestone.ProjectID != "prj-web" {
		t.Fatalf("unexpected milestone group: %+v", milestones[0])
	}

	if groups, err := s.FetchGroupsForDimension(ctx, grouping.KindPriority, model.Scope{}); err != nil || groups != nil {
		t.Fatalf("priority has no stored groups: %v %v", groups, err)
	}

	// Through the dimension: canonical groups plus the "No X" bucket.
	groups, err := grouping.MustLookup(grouping.KindAssignee).ListGroups(ctx, s, model.Scope{})
	if err != nil || len(groups) != 3 || groups[2].Name != "Unassigned" {
		t.Fatalf("assignee groups: %+v %v", groups, err)
	}
}

func TestSetGroupOrdinals_AllOrNothing(t *testing.T) {
	s := openSeeded(t)
	ctx := context.Background()

	if err := s.SetGroupOrdinals(ctx, grouping.KindStatus, map[string]int{"st-todo": 2, "st-doing": 1}); err != nil {
		t.Fatalf("SetGroupOrdinals: %v", err)
	}
	statuses, _ := s.Statuses(ctx)
	if statuses[0].ID != "st-doing" || statuses[1].ID != "st-todo" {
		t.Fatalf("swap not stored: %+v", statuses)
	}

	err := s.SetGroupOrdinals(ctx, grouping.KindStatus, map[string]int{"st-todo": 9, "st-gone": 1})
	if !mutate.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	statuses, _ = s.Statuses(ctx)
	for _, st := range statuses {
		if st.Ordinal == 9 {
			t.Fatalf("failed pair must leave nothing applied: %+v", statuses)
		}
	}

	if err := s.SetGroupOrdinals(ctx, grouping.KindAssignee, map[string]int{"mem-ann": 1}); !mutate.IsValidation(err) {
		t.Fatalf("assignee groups have no ordinals, got %v", err)
	}
}

func TestRebalanceRequests(t *testing.T) {
	s := openSeeded(t)
	ctx := context.Background()
	if err := s.RebalanceNeeded(ctx, grouping.KindStatus, "st-todo"); err != nil {
		t.Fatalf("RebalanceNeeded: %v", err)
	}
	if err := s.RebalanceNeeded(ctx, grouping.KindStatus, "st-todo"); err != nil {
		t.Fatalf("RebalanceNeeded again: %v", err)
	}
	reqs, err := s.PendingRebalances(ctx)
	if err != nil || len(reqs) != 1 || reqs[0].GroupKey != "st-todo" || !reqs[0].RequestedAt.Equal(testNow) {
		t.Fatalf("unexpected requests: %+v %v", reqs, err)
	}
	if err := s.ClearRebalance(ctx, grouping.KindStatus, "st-todo"); err != nil {
		t.Fatalf("ClearRebalance: %v", err)
	}
	if reqs, _ := s.PendingRebalances(ctx); len(reqs) != 0 {
		t.Fatalf("expected no pending requests, got %+v", reqs)
	}
}

func TestClassifyBusyIsTransient(t *testing.T) {
	err := classify("persist", errString("database is locked (5) (SQLITE_BUSY)"))
	if !mutate.IsTransient(err) {
		t.Fatalf("busy should be transient, got %T", err)
	}
	if mutate.IsTransient(classify("persist", errString("no such table"))) {
		t.Fatalf("schema errors are not transient")
	}
	if classify("x", nil) != nil {
		t.Fatalf("nil stays nil")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
