package cache

import (
	"sort"
	"sync"

	"taskboard/internal/model"
)

// Source tags where a change came from.
type Source string

const (
	SourceOptimistic Source = "optimistic"
	SourceConfirm    Source = "confirm"
	SourceRollback   Source = "rollback"
	SourceRefresh    Source = "refresh"
	SourceRemote     Source = "remote"
	SourceRemove     Source = "remove"
)

// Change is delivered to subscribers after every visible write.
//
// Item is the visible value and may carry pending optimistic fields.
// Confirmed is the authoritative value after the write and ConfirmedFields
// lists the fields the write moved into it.
type Change struct {
	Item            model.Item `json:"item"`
	Fields          []string   `json:"fields"`
	Confirmed       model.Item `json:"confirmed"`
	ConfirmedFields []string   `json:"confirmedFields,omitempty"`
	Source          Source     `json:"source"`
	Removed         bool       `json:"removed,omitempty"`
}

// Mutation identifies one optimistic write so it can later be confirmed or rolled back.
type Mutation struct {
	ItemID string      `json:"itemId"`
	Seq    uint64      `json:"seq"`
	Patch  model.Patch `json:"patch"`
}

type entry struct {
	// visible is what readers see: confirmed plus every live mutation.
	visible model.Item
	// confirmed is the last value the authoritative store reported.
	confirmed model.Item
	// live holds optimistic mutations not yet confirmed or rolled back.
	live map[uint64]model.Patch
	// latest maps field -> seq of the newest live mutation touching it.
	latest map[string]uint64
	// confirmedSeq maps field -> seq of the newest mutation confirmed into it.
	confirmedSeq map[string]uint64
}

func newEntry(it model.Item) *entry {
	return &entry{
		visible:      it,
		confirmed:    it,
		live:         map[uint64]model.Patch{},
		latest:       map[string]uint64{},
		confirmedSeq: map[string]uint64{},
	}
}

// Store is the local item collection shared by drag commits, direct field
// edits and background refetches.
//
// Every write goes through a field-level merge; no caller can replace a whole
// item, so concurrent writers touching different fields never clobber each other.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	seq     uint64

	subs    map[int]func(Change)
	nextSub int
}

func New() *Store {
	return &Store{
		entries: map[string]*entry{},
		subs:    map[int]func(Change){},
	}
}

// Subscribe registers fn for every change. fn runs on the writer's goroutine
// after the store lock is released.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) Get(id string) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return model.Item{}, false
	}
	return e.visible, true
}

// Items returns the visible items in first-seen order.
func (s *Store) Items() []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Item, 0, len(s.order))
	for _, id := range s.order {
		if e, ok := s.entries[id]; ok {
			out = append(out, e.visible)
		}
	}
	return out
}

// Pending reports whether id has optimistic writes awaiting the store.
func (s *Store) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return ok && len(e.live) > 0
}

// Apply merges p into the visible item as an optimistic write.
// ok=false when the item is unknown or p is empty; nothing changes then.
func (s *Store) Apply(p model.Patch) (Mutation, bool) {
	fields := p.Fields()
	s.mu.Lock()
	e, ok := s.entries[p.ID]
	if !ok || len(fields) == 0 {
		s.mu.Unlock()
		return Mutation{}, false
	}
	s.seq++
	m := Mutation{ItemID: p.ID, Seq: s.seq, Patch: p}
	e.live[m.Seq] = p
	for _, f := range fields {
		e.latest[f] = m.Seq
	}
	p.Apply(&e.visible)
	ch := Change{Item: e.visible, Fields: fields, Confirmed: e.confirmed, Source: SourceOptimistic}
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, ch)
	return m, true
}

// Confirm records the authoritative result of m. Only m's fields are merged,
// and fields a newer optimistic write touched keep their newer value. A
// response older than one already confirmed for a field leaves that field's
// confirmed value alone.
func (s *Store) Confirm(m Mutation, server model.Item) {
	fields := m.Patch.Fields()
	s.mu.Lock()
	e, ok := s.entries[m.ItemID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(e.live, m.Seq)
	accepted := make([]string, 0, len(fields))
	for _, f := range fields {
		if m.Seq < e.confirmedSeq[f] {
			continue
		}
		e.confirmedSeq[f] = m.Seq
		accepted = append(accepted, f)
	}
	if len(accepted) > 0 {
		e.confirmed.CopyFields(server, accepted)
		e.confirmed.UpdatedAt = server.UpdatedAt
	}
	visibleChanged := make([]string, 0, len(fields))
	for _, f := range fields {
		if e.latest[f] != m.Seq {
			continue
		}
		delete(e.latest, f)
		e.visible.CopyFields(server, []string{f})
		visibleChanged = append(visibleChanged, f)
	}
	if len(visibleChanged) > 0 {
		e.visible.UpdatedAt = server.UpdatedAt
	}
	ch := Change{Item: e.visible, Fields: visibleChanged, Confirmed: e.confirmed, ConfirmedFields: accepted, Source: SourceConfirm}
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, ch)
}

// Rollback discards m. Fields m was the newest writer of are recomputed from
// the confirmed value plus any older live mutations.
func (s *Store) Rollback(m Mutation) {
	fields := m.Patch.Fields()
	s.mu.Lock()
	e, ok := s.entries[m.ItemID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if _, live := e.live[m.Seq]; !live {
		s.mu.Unlock()
		return
	}
	delete(e.live, m.Seq)
	restored := make([]string, 0, len(fields))
	for _, f := range fields {
		if e.latest[f] != m.Seq {
			continue
		}
		delete(e.latest, f)
		e.recompute(f)
		restored = append(restored, f)
	}
	ch := Change{Item: e.visible, Fields: restored, Confirmed: e.confirmed, Source: SourceRollback}
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, ch)
}

// recompute rebuilds field f of the visible item from confirmed + live writes.
func (e *entry) recompute(f string) {
	e.visible.CopyFields(e.confirmed, []string{f})
	seqs := make([]uint64, 0, len(e.live))
	for seq, p := range e.live {
		for _, pf := range p.Fields() {
			if pf == f {
				seqs = append(seqs, seq)
				break
			}
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for _, seq := range seqs {
		e.live[seq].Only([]string{f}).Apply(&e.visible)
		e.latest[f] = seq
	}
}

// Refresh merges a background refetch. Unknown items are added; known items
// take the server value for every field without a pending optimistic write.
// Items missing from the batch are left alone.
func (s *Store) Refresh(items []model.Item) {
	s.RefreshFrom(SourceRefresh, items)
}

// RefreshFrom is Refresh with the change source set explicitly, so mirrors
// can tell their own remote deliveries apart from local refetches.
func (s *Store) RefreshFrom(src Source, items []model.Item) {
	s.mu.Lock()
	changes := make([]Change, 0, len(items))
	for _, srv := range items {
		if ch, ok := s.mergeLocked(src, srv, model.ItemFields); ok {
			changes = append(changes, ch)
		}
	}
	subs := s.subscribers()
	s.mu.Unlock()

	for _, ch := range changes {
		notify(subs, ch)
	}
}

// RefreshFields merges only the named fields of an authoritative item, as
// delivered by a peer that published a partial change. Unknown items are
// added whole.
func (s *Store) RefreshFields(src Source, srv model.Item, fields []string) {
	if len(fields) == 0 {
		fields = model.ItemFields
	}
	s.mu.Lock()
	ch, ok := s.mergeLocked(src, srv, fields)
	subs := s.subscribers()
	s.mu.Unlock()

	if ok {
		notify(subs, ch)
	}
}

func (s *Store) mergeLocked(src Source, srv model.Item, fields []string) (Change, bool) {
	if srv.ID == "" {
		return Change{}, false
	}
	e, ok := s.entries[srv.ID]
	if !ok {
		s.entries[srv.ID] = newEntry(srv)
		s.order = append(s.order, srv.ID)
		return Change{Item: srv, Fields: model.ItemFields, Confirmed: srv, ConfirmedFields: model.ItemFields, Source: src}, true
	}
	e.confirmed.CopyFields(srv, fields)
	e.confirmed.UpdatedAt = srv.UpdatedAt
	merged := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, pending := e.latest[f]; pending {
			continue
		}
		merged = append(merged, f)
	}
	e.visible.CopyFields(srv, merged)
	e.visible.UpdatedAt = srv.UpdatedAt
	return Change{Item: e.visible, Fields: merged, Confirmed: e.confirmed, ConfirmedFields: fields, Source: src}, true
}

// Remove drops an item, e.g. after the store reported it deleted.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.entries, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	ch := Change{Item: e.visible, Confirmed: e.confirmed, Source: SourceRemove, Removed: true}
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, ch)
}

func (s *Store) subscribers() []func(Change) {
	if len(s.subs) == 0 {
		return nil
	}
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

func notify(subs []func(Change), ch Change) {
	for _, fn := range subs {
		fn(ch)
	}
}
