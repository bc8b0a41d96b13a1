package reorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskboard/internal/cache"
	"taskboard/internal/grouping"
	"taskboard/internal/model"
	"taskboard/internal/mutate"
	"taskboard/internal/ordering"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type persistCall struct {
	patch model.Patch
}

// fakeStore is a scripted persistence boundary. Each call pops the next
// error from errs; nil (or an empty script) means success.
type fakeStore struct {
	items    map[string]model.Item
	errs     []error
	calls    []persistCall
	fetched  []string
	ordinals []map[string]int
	ordErrs  []error
	signals  []string

	groups     []model.Group
	groupLists int
}

func newFakeStore(items []model.Item) *fakeStore {
	f := &fakeStore{items: map[string]model.Item{}}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeStore) PersistPatch(ctx context.Context, p model.Patch) (model.Item, error) {
	f.calls = append(f.calls, persistCall{patch: p})
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return model.Item{}, err
		}
	}
	it, ok := f.items[p.ID]
	if !ok {
		return model.Item{}, mutate.ConflictError{ItemID: p.ID, Reason: "deleted"}
	}
	p.Apply(&it)
	it.UpdatedAt = testNow
	f.items[p.ID] = it
	return it, nil
}

func (f *fakeStore) FetchItem(ctx context.Context, id string) (model.Item, error) {
	f.fetched = append(f.fetched, id)
	it, ok := f.items[id]
	if !ok {
		return model.Item{}, mutate.NotFoundError{Kind: "item", ID: id}
	}
	return it, nil
}

func (f *fakeStore) SetGroupOrdinals(ctx context.Context, kind grouping.Kind, ordinals map[string]int) error {
	cp := map[string]int{}
	for k, v := range ordinals {
		cp[k] = v
	}
	f.ordinals = append(f.ordinals, cp)
	if len(f.ordErrs) > 0 {
		err := f.ordErrs[0]
		f.ordErrs = f.ordErrs[1:]
		return err
	}
	return nil
}

func (f *fakeStore) RebalanceNeeded(ctx context.Context, kind grouping.Kind, key string) error {
	f.signals = append(f.signals, string(kind)+"/"+key)
	return nil
}

func (f *fakeStore) FetchGroupsForDimension(ctx context.Context, kind grouping.Kind, scope model.Scope) ([]model.Group, error) {
	f.groupLists++
	return append([]model.Group(nil), f.groups...), nil
}

func intPtr(i int) *int { return &i }

func statusGroups() []model.Group {
	return []model.Group{
		{ID: "st-todo", Key: "st-todo", Name: "To Do", Ordinal: intPtr(1)},
		{ID: "st-review", Key: "st-review", Name: "Review", Ordinal: intPtr(2)},
		{ID: "st-done", Key: "st-done", Name: "Done", Ordinal: intPtr(3)},
		{Key: "", Name: "No status"},
	}
}

func boardItems() []model.Item {
	return []model.Item{
		{ID: "a", Title: "A", StatusID: "st-todo", Order: 10},
		{ID: "b", Title: "B", StatusID: "st-todo", Order: 20},
		{ID: "c", Title: "C", StatusID: "st-todo", Order: 30},
		{ID: "d", Title: "D", StatusID: "st-done", Order: 10},
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeStore) {
	t.Helper()
	items := boardItems()
	c := cache.New()
	c.Refresh(items)
	fs := newFakeStore(items)
	o := New(Config{
		Cache:       c,
		Persister:   fs,
		Items:       fs,
		Ordinals:    fs,
		Rebalance:   fs,
		GroupSource: fs,
		Dimension:   grouping.MustLookup(grouping.KindStatus),
		Groups:      statusGroups(),
		Retry:       RetryPolicy{Attempts: 3, Backoff: time.Millisecond},
		Now:         func() time.Time { return testNow },
		Sleep:       func(context.Context, time.Duration) error { return nil },
	})
	return o, fs
}

func TestPreviewMove_DropBeforeItem(t *testing.T) {
	mv, err := PreviewMove(boardItems(), "c", OverItem("b"), grouping.MustLookup(grouping.KindStatus), statusGroups(), testNow)
	if err != nil {
		t.Fatalf("PreviewMove: %v", err)
	}
	if mv.Patch.Order == nil || *mv.Patch.Order != 15 {
		t.Fatalf("expected order 15, got %+v", mv.Patch)
	}
	if mv.Patch.StatusID != nil {
		t.Fatalf("same-group move must not write status, got %v", mv.Patch.Fields())
	}
	if mv.Patch.GroupChangedAt == nil || !mv.Patch.GroupChangedAt.Equal(testNow) {
		t.Fatalf("order change must stamp groupChangedAt, got %v", mv.Patch.GroupChangedAt)
	}
	if mv.To.Key != "st-todo" || mv.Noop {
		t.Fatalf("unexpected move: %+v", mv)
	}
}

func TestPreviewMove_DropOnEmptyReviewGroup(t *testing.T) {
	mv, err := PreviewMove(boardItems(), "a", OverGroup("st-review"), grouping.MustLookup(grouping.KindStatus), statusGroups(), testNow)
	if err != nil {
		t.Fatalf("PreviewMove: %v", err)
	}
	if *mv.Patch.Order != ordering.DefaultEmptyGroupOrder {
		t.Fatalf("expected default empty-group order, got %v", *mv.Patch.Order)
	}
	if mv.Patch.StatusID == nil || *mv.Patch.StatusID != "st-review" {
		t.Fatalf("expected status set to Review, got %+v", mv.Patch)
	}
	if mv.Patch.GroupChangedAt == nil || !mv.Patch.GroupChangedAt.Equal(testNow) {
		t.Fatalf("expected groupChangedAt stamped")
	}
}

func TestPreviewMove_CrossGroupDropOnItem(t *testing.T) {
	mv, err := PreviewMove(boardItems(), "a", OverItem("d"), grouping.MustLookup(grouping.KindStatus), statusGroups(), testNow)
	if err != nil {
		t.Fatalf("PreviewMove: %v", err)
	}
	// a (10) over d (10): not moving down, so a lands between MinOrder and 10.
	if *mv.Patch.Order != 5 || *mv.Patch.StatusID != "st-done" {
		t.Fatalf("unexpected patch: %+v", mv.Patch)
	}
	if mv.From.Key != "st-todo" || mv.To.Key != "st-done" {
		t.Fatalf("unexpected groups: %s -> %s", mv.From.Key, mv.To.Key)
	}
}

func TestPreviewMove_Validation(t *testing.T) {
	dim := grouping.MustLookup(grouping.KindStatus)
	cases := []struct {
		name   string
		active string
		target Target
	}{
		{"self", "a", OverItem("a")},
		{"missing item", "a", OverItem("zz")},
		{"missing group", "a", OverGroup("st-zz")},
		{"missing active", "zz", OverItem("a")},
		{"no target", "a", Target{}},
	}
	for _, tc := range cases {
		if _, err := PreviewMove(boardItems(), tc.active, tc.target, dim, statusGroups(), testNow); !mutate.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestCommit_DropOnEmptyGroupPersistsAndKeepsHoverVisible(t *testing.T) {
	o, fs := newTestOrchestrator(t)
	s, err := o.Begin("a")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Over(&Target{Kind: TargetGroup, ID: "st-review"}); err != nil {
		t.Fatalf("Over: %v", err)
	}

	dim, _ := o.Dimension()
	v := o.View(grouping.ViewOptions{HideEmpty: true, DropTarget: s.DropTargetKey(o.Cache().Items(), dim)})
	if _, ok := v.Group("st-review"); !ok {
		t.Fatalf("hovered empty group must stay visible")
	}

	_, it, err := o.Commit(context.Background(), s)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if it.StatusID != "st-review" || it.Order != ordering.DefaultEmptyGroupOrder {
		t.Fatalf("unexpected persisted item: %+v", it)
	}
	if s.State() != Idle {
		t.Fatalf("session should return to idle, got %s", s.State())
	}
	got := fs.calls[0].patch.Fields()
	want := []string{model.FieldStatusID, model.FieldOrder, model.FieldGroupChangedAt}
	if len(got) != len(want) {
		t.Fatalf("expected only changed fields %v, got %v", want, got)
	}
	if cached, _ := o.Cache().Get("a"); cached.StatusID != "st-review" || o.Cache().Pending("a") {
		t.Fatalf("cache not confirmed: %+v", cached)
	}
}

func TestCancel_NoMutationNoPersist(t *testing.T) {
	o, fs := newTestOrchestrator(t)
	before := o.Cache().Items()
	s, _ := o.Begin("c")
	_ = s.Over(&Target{Kind: TargetItem, ID: "a"})
	if _, err := o.Preview(s); err != nil {
		t.Fatalf("Preview: %v", err)
	}
	o.Cancel(s)

	if s.State() != Idle {
		t.Fatalf("expected idle after cancel")
	}
	if len(fs.calls) != 0 {
		t.Fatalf("cancel must not persist")
	}
	after := o.Cache().Items()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("cancel mutated cache: %+v -> %+v", before[i], after[i])
		}
	}
	if _, _, err := o.Commit(context.Background(), s); !errors.Is(err, ErrNotDragging) {
		t.Fatalf("commit after cancel should fail with ErrNotDragging, got %v", err)
	}
}

func TestCommit_ValidationDoesNothing(t *testing.T) {
	o, fs := newTestOrchestrator(t)
	s, _ := o.Begin("a")
	_ = s.Over(&Target{Kind: TargetItem, ID: "a"})
	if _, _, err := o.Commit(context.Background(), s); !mutate.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(fs.calls) != 0 || o.Cache().Pending("a") {
		t.Fatalf("validation failure must not mutate or persist")
	}
	if _, err := o.Begin("missing"); !mutate.IsValidation(err) {
		t.Fatalf("begin on missing item should fail validation")
	}
}

func TestCommit_ConflictRollsBackAndRefetches(t *testing.T) {
	o, fs := newTestOrchestrator(t)
	// Someone else renamed b and moved it server side.
	srv := fs.items["b"]
	srv.Title = "B (edited)"
	srv.Order = 12
	fs.items["b"] = srv
	fs.errs = []error{mutate.ConflictError{ItemID: "b", Reason: "changed"}}

	s, _ := o.Begin("b")
	_ = s.Over(&Target{Kind: TargetItem, ID: "c"})
	_, _, err := o.Commit(context.Background(), s)
	if !mutate.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(fs.fetched) != 1 || fs.fetched[0] != "b" {
		t.Fatalf("expected targeted refetch of b, got %v", fs.fetched)
	}
	it, _ := o.Cache().Get("b")
	if it.Order != 12 || it.Title != "B (edited)" || o.Cache().Pending("b") {
		t.Fatalf("expected refetched server state, got %+v", it)
	}
	if fs.groupLists != 0 {
		t.Fatalf("item conflict must not relist groups")
	}
}

func TestCommit_ConflictOnVanishedGroupRelistsGroups(t *testing.T) {
	o, fs := newTestOrchestrator(t)
	// Review was deleted server side after the board loaded.
	fs.groups = []model.Group{
		{ID: "st-todo", Key: "st-todo", Name: "To Do", Ordinal: intPtr(1)},
		{ID: "st-done", Key: "st-done", Name: "Done", Ordinal: intPtr(3)},
	}
	fs.errs = []error{mutate.ConflictError{ItemID: "a", Group: "st-review", Reason: "status st-review no longer exists"}}

	mv, err := o.PreviewMove("a", OverGroup("st-review"))
	if err != nil {
		t.Fatalf("PreviewMove: %v", err)
	}
	if _, err := o.CommitMove(context.Background(), mv); !mutate.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if fs.groupLists != 1 {
		t.Fatalf("expected one group relist, got %d", fs.groupLists)
	}
	_, groups := o.Dimension()
	for _, g := range groups {
		if g.Key == "st-review" {
			t.Fatalf("vanished group still listed: %+v", groups)
		}
	}
	if it, _ := o.Cache().Get("a"); it.StatusID != "st-todo" || it.Order != 10 {
		t.Fatalf("conflicting move must roll back, got %+v", it)
	}
}

func TestCommit_ConflictOnDeletedItemRemovesIt(t *testing.T) {
	o, fs := newTestOrchestrator(t)
	delete(fs.items, "b")
	s, _ := o.Begin("b")
	_ = s.Over(&Target{Kind: TargetItem, ID: "c"})
	if _, _, err := o.Commit(context.Background(), s); !mutate.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, ok := o.Cache().Get("b"); ok {
		t.Fatalf("deleted item should leave the cache")
	}
}

func TestCommit_TransientRetriesThenSucceeds(t *testing.T) {
	o, fs := newTestOrchestrator(t)
	fs.errs = []error{
		mutate.TransientError{Op: "persist", Err: errors.New("timeout")},
		mutate.TransientError{Op: "persist", Err: errors.New("timeout")},
	}
	s, _ := o.Begin("c")
	_ = s.Over(&Target{Kind: TargetItem, ID: "b"})
	_, it, err := o.Commit(context.Background(), s)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(fs.calls) != 3 || it.Order != 15 {
		t.Fatalf("expected 3 identical attempts ending at 15, got %d calls, order %v", len(fs.calls), it.Order)
	}
	for _, c := range fs.calls {
		if *c.patch.Order != 15 {
			t.Fatalf("retries must resend the same absolute patch")
		}
	}
}

func TestCommit_TransientExhaustionRollsBack(t *testing.T) {
	o, fs := newTestOrchestrator(t)
	for i := 0; i < 3; i++ {
		fs.errs = append(fs.errs, mutate.TransientError{Op: "persist", Err: errors.New("unreachable")})
	}
	s, _ := o.Begin("c")
	_ = s.Over(&Target{Kind: TargetItem, ID: "b"})
	_, _, err := o.Commit(context.Background(), s)
	if !mutate.IsTransient(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if len(fs.calls) != 3 {
		t.Fatalf("expected retry budget of 3, got %d", len(fs.calls))
	}
	if it, _ := o.Cache().Get("c"); it.Order != 30 || o.Cache().Pending("c") {
		t.Fatalf("expected rollback to 30, got %+v", it)
	}
}

func TestStaleResponseDoesNotClobberSecondDrag(t *testing.T) {
	o, fs := newTestOrchestrator(t)

	s1, _ := o.Begin("c")
	_ = s1.Over(&Target{Kind: TargetItem, ID: "b"})
	first, err := o.Drop(s1)
	if err != nil {
		t.Fatalf("Drop 1: %v", err)
	}

	// Second drag of the same item starts before the first response lands.
	s2, _ := o.Begin("c")
	_ = s2.Over(&Target{Kind: TargetGroup, ID: "st-done"})
	second, err := o.Drop(s2)
	if err != nil {
		t.Fatalf("Drop 2: %v", err)
	}

	if _, err := o.Settle(context.Background(), first); err != nil {
		t.Fatalf("Settle 1: %v", err)
	}
	it, _ := o.Cache().Get("c")
	if it.StatusID != "st-done" || it.Order != ordering.DefaultEmptyGroupOrder {
		t.Fatalf("stale first response clobbered second drag: %+v", it)
	}

	if _, err := o.Settle(context.Background(), second); err != nil {
		t.Fatalf("Settle 2: %v", err)
	}
	it, _ = o.Cache().Get("c")
	if it.StatusID != "st-done" || o.Cache().Pending("c") || len(fs.calls) != 2 {
		t.Fatalf("unexpected final state: %+v", it)
	}
}

func TestDirectEditSharesMergePath(t *testing.T) {
	o, fs := newTestOrchestrator(t)
	s, _ := o.Begin("a")
	_ = s.Over(&Target{Kind: TargetItem, ID: "c"})
	pd, err := o.Drop(s)
	if err != nil {
		t.Fatalf("Drop: %v", err)
	}

	cur, _ := o.Cache().Get("a")
	res, err := mutate.SetPriority(cur, "urgent", testNow)
	if err != nil {
		t.Fatalf("SetPriority: %v", err)
	}
	if _, err := o.Edit(context.Background(), res); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if _, err := o.Settle(context.Background(), pd); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	it, _ := o.Cache().Get("a")
	if it.Priority != model.PriorityUrgent || it.Order != 37015 {
		t.Fatalf("edits should compose field by field, got %+v", it)
	}
	if len(fs.calls) != 2 {
		t.Fatalf("expected two persist calls, got %d", len(fs.calls))
	}
}

func TestRebalanceSignalNeverFailsMove(t *testing.T) {
	o, fs := newTestOrchestrator(t)
	o.Cache().Refresh([]model.Item{{ID: "e", StatusID: "st-review", Order: ordering.DefaultEmptyGroupOrder}})
	fs.items["e"] = model.Item{ID: "e", StatusID: "st-review", Order: ordering.DefaultEmptyGroupOrder}

	s, _ := o.Begin("a")
	_ = s.Over(&Target{Kind: TargetGroup, ID: "st-review"})
	mv, _, err := o.Commit(context.Background(), s)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !mv.NeedsRebalance {
		t.Fatalf("expected rebalance signal for colliding key")
	}
	if len(fs.signals) != 1 || fs.signals[0] != "status/st-review" {
		t.Fatalf("expected rebalance request, got %v", fs.signals)
	}

	n, err := o.RebalanceGroup(context.Background(), "st-review")
	if err != nil || n != 2 {
		t.Fatalf("RebalanceGroup: %d %v", n, err)
	}
	a, _ := o.Cache().Get("a")
	e, _ := o.Cache().Get("e")
	if a.Order == e.Order {
		t.Fatalf("rebalance should separate colliding keys")
	}
}

func TestSwapGroups(t *testing.T) {
	o, fs := newTestOrchestrator(t)
	groups, err := o.SwapGroups(context.Background(), "st-todo", "st-review")
	if err != nil {
		t.Fatalf("SwapGroups: %v", err)
	}
	if groups[0].Key != "st-review" || *groups[0].Ordinal != 1 || *groups[1].Ordinal != 2 {
		t.Fatalf("unexpected swapped order: %+v", groups)
	}
	if len(fs.ordinals) != 1 || fs.ordinals[0]["st-todo"] != 2 || fs.ordinals[0]["st-review"] != 1 {
		t.Fatalf("pair must be written together, got %v", fs.ordinals)
	}
}

func TestSwapGroups_PartialFailureRevertsAppliedHalf(t *testing.T) {
	o, fs := newTestOrchestrator(t)
	fs.ordErrs = []error{mutate.PartialWriteError{Applied: []string{"st-todo"}, Err: errors.New("disk full")}}

	_, err := o.SwapGroups(context.Background(), "st-todo", "st-review")
	if err == nil {
		t.Fatalf("expected failure")
	}
	if len(fs.ordinals) != 2 {
		t.Fatalf("expected the swap and one revert, got %v", fs.ordinals)
	}
	undo := fs.ordinals[1]
	if len(undo) != 1 || undo["st-todo"] != 1 {
		t.Fatalf("revert should restore only the applied half, got %v", undo)
	}
	_, groups := o.Dimension()
	if groups[0].Key != "st-todo" || *groups[0].Ordinal != 1 || *groups[1].Ordinal != 2 {
		t.Fatalf("local order must be restored, got %+v", groups)
	}
}

func TestSwapGroups_TransientRetriesPair(t *testing.T) {
	o, fs := newTestOrchestrator(t)
	fs.ordErrs = []error{mutate.TransientError{Op: "swap", Err: errors.New("busy")}}
	if _, err := o.SwapGroups(context.Background(), "st-todo", "st-done"); err != nil {
		t.Fatalf("SwapGroups: %v", err)
	}
	if len(fs.ordinals) != 2 || fs.ordinals[1]["st-todo"] != 3 || fs.ordinals[1]["st-done"] != 1 {
		t.Fatalf("expected the pair retried together, got %v", fs.ordinals)
	}
}

func TestSwapGroups_Validation(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	if _, err := o.SwapGroups(context.Background(), "st-todo", ""); !mutate.IsValidation(err) {
		t.Fatalf("synthetic group swap should fail validation, got %v", err)
	}
	if _, err := o.SwapGroups(context.Background(), "st-todo", "st-zz"); !mutate.IsValidation(err) {
		t.Fatalf("missing group should fail validation, got %v", err)
	}
	o.SetDimension(grouping.MustLookup(grouping.KindPriority), nil)
	if _, err := o.SwapGroups(context.Background(), "urgent", "high"); !mutate.IsValidation(err) {
		t.Fatalf("priority groups have no stored order, got %v", err)
	}
}
