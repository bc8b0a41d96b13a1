package reorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard/internal/cache"
	"taskboard/internal/grouping"
	"taskboard/internal/model"
	"taskboard/internal/mutate"
)

// Persister is the single write boundary for item fields.
type Persister interface {
	// PersistPatch writes only the patch's fields and returns the stored item.
	PersistPatch(ctx context.Context, p model.Patch) (model.Item, error)
}

// ItemSource refetches one item after a conflict.
type ItemSource interface {
	FetchItem(ctx context.Context, id string) (model.Item, error)
}

// GroupOrdinalWriter persists group ordinals. Implementations write all
// entries or none; a failure after some entries landed is reported as
// mutate.PartialWriteError.
type GroupOrdinalWriter interface {
	SetGroupOrdinals(ctx context.Context, kind grouping.Kind, ordinals map[string]int) error
}

// RebalanceSignaler records that a group's order keys need re-spacing.
type RebalanceSignaler interface {
	RebalanceNeeded(ctx context.Context, kind grouping.Kind, groupKey string) error
}

type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Backoff is multiplied by the attempt number between tries.
	Backoff time.Duration
}

var DefaultRetry = RetryPolicy{Attempts: 3, Backoff: 200 * time.Millisecond}

type Config struct {
	Cache     *cache.Store
	Persister Persister

	Items     ItemSource
	Ordinals  GroupOrdinalWriter
	Rebalance RebalanceSignaler
	// GroupSource re-lists the dimension's groups after a conflict on a
	// vanished group; Scope is passed through to it.
	GroupSource grouping.GroupSource
	Scope       model.Scope

	Dimension grouping.Dimension
	Groups    []model.Group

	Retry RetryPolicy
	Now   func() time.Time
	// Sleep waits between retries; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	Log   *log.Entry
}

// Orchestrator drives drags from pick-up to persisted result.
type Orchestrator struct {
	cache     *cache.Store
	persister Persister
	items     ItemSource
	ordinals  GroupOrdinalWriter
	rebalance RebalanceSignaler
	groupSrc  grouping.GroupSource
	scope     model.Scope
	retry     RetryPolicy
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	log       *log.Entry

	mu     sync.Mutex
	dim    grouping.Dimension
	groups []model.Group
}

func New(cfg Config) *Orchestrator {
	if cfg.Cache == nil {
		panic("reorder.New: cache is nil")
	}
	if cfg.Persister == nil {
		panic("reorder.New: persister is nil")
	}
	o := &Orchestrator{
		cache:     cfg.Cache,
		persister: cfg.Persister,
		items:     cfg.Items,
		ordinals:  cfg.Ordinals,
		rebalance: cfg.Rebalance,
		groupSrc:  cfg.GroupSource,
		scope:     cfg.Scope,
		retry:     cfg.Retry,
		now:       cfg.Now,
		sleep:     cfg.Sleep,
		log:       cfg.Log,
		dim:       cfg.Dimension,
		groups:    append([]model.Group(nil), cfg.Groups...),
	}
	if o.retry.Attempts <= 0 {
		o.retry = DefaultRetry
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.sleep == nil {
		o.sleep = sleepCtx
	}
	if o.log == nil {
		o.log = log.WithField("component", "reorder")
	}
	if o.dim == nil {
		o.dim = grouping.MustLookup(grouping.KindStatus)
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (o *Orchestrator) Cache() *cache.Store { return o.cache }
func (o *Orchestrator) Now() time.Time      { return o.now() }

// SetDimension switches the board's grouping. Manual order keys are untouched.
func (o *Orchestrator) SetDimension(dim grouping.Dimension, groups []model.Group) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dim = dim
	o.groups = append([]model.Group(nil), groups...)
}

// Dimension returns the current dimension and a copy of its groups.
func (o *Orchestrator) Dimension() (grouping.Dimension, []model.Group) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dim, append([]model.Group(nil), o.groups...)
}

// View builds the current board from the cache.
func (o *Orchestrator) View(opts grouping.ViewOptions) grouping.View {
	dim, groups := o.Dimension()
	return grouping.Board(o.cache.Items(), dim, groups, opts)
}

// Begin picks up activeID.
func (o *Orchestrator) Begin(activeID string) (*Session, error) {
	if _, ok := o.cache.Get(activeID); !ok {
		return nil, mutate.ValidationError{Reason: "active item missing", Err: mutate.NotFoundError{Kind: "item", ID: activeID}}
	}
	return &Session{state: Dragging, activeID: activeID}, nil
}

// Cancel ends the drag without touching the cache or the store.
func (o *Orchestrator) Cancel(s *Session) {
	if s == nil {
		return
	}
	s.reset()
}

// Preview computes the move the session would commit right now.
func (o *Orchestrator) Preview(s *Session) (Move, error) {
	if s.State() != Dragging {
		return Move{}, ErrNotDragging
	}
	t, ok := s.Target()
	if !ok {
		return Move{}, ErrNoTarget
	}
	return o.PreviewMove(s.activeID, t)
}

// PreviewMove runs PreviewMove against the cached items and current dimension.
func (o *Orchestrator) PreviewMove(activeID string, t Target) (Move, error) {
	dim, groups := o.Dimension()
	return o.PreviewIn(dim, groups, activeID, t)
}

// PreviewIn previews against an explicit dimension, leaving the board's
// current one alone.
func (o *Orchestrator) PreviewIn(dim grouping.Dimension, groups []model.Group, activeID string, t Target) (Move, error) {
	return PreviewMove(o.cache.Items(), activeID, t, dim, groups, o.now())
}

// Pending is a move applied to the cache and awaiting persistence.
type Pending struct {
	Move     Move
	Mutation cache.Mutation
	applied  bool
	session  *Session
}

func (p Pending) Applied() bool { return p.applied }

// Drop ends the drag: it computes the move and applies it optimistically.
// Persisting is left to Settle so callers can run it off the UI goroutine.
func (o *Orchestrator) Drop(s *Session) (Pending, error) {
	mv, err := o.Preview(s)
	if err != nil {
		if s != nil {
			s.reset()
		}
		return Pending{}, err
	}
	s.state = Committing
	pd := Pending{Move: mv, session: s}
	if mv.Noop {
		return pd, nil
	}
	m, ok := o.Apply(mv)
	if !ok {
		s.reset()
		return Pending{}, mutate.ValidationError{Reason: "active item missing", Err: mutate.NotFoundError{Kind: "item", ID: mv.Patch.ID}}
	}
	pd.Mutation = m
	pd.applied = true
	return pd, nil
}

// Settle persists a dropped move and returns the session to Idle.
func (o *Orchestrator) Settle(ctx context.Context, pd Pending) (model.Item, error) {
	defer func() {
		if pd.session != nil {
			pd.session.reset()
		}
	}()
	if !pd.applied {
		it, _ := o.cache.Get(pd.Move.Patch.ID)
		return it, nil
	}
	o.signalRebalance(ctx, pd.Move)
	return o.Persist(ctx, pd.Mutation)
}

// Commit drops and persists in one call.
func (o *Orchestrator) Commit(ctx context.Context, s *Session) (Move, model.Item, error) {
	pd, err := o.Drop(s)
	if err != nil {
		return Move{}, model.Item{}, err
	}
	it, err := o.Settle(ctx, pd)
	return pd.Move, it, err
}

// Apply writes the move to the cache.
func (o *Orchestrator) Apply(mv Move) (cache.Mutation, bool) {
	return o.cache.Apply(mv.Patch)
}

// CommitMove applies and persists a move computed elsewhere.
func (o *Orchestrator) CommitMove(ctx context.Context, mv Move) (model.Item, error) {
	if mv.Noop || mv.Patch.Empty() {
		it, ok := o.cache.Get(mv.Patch.ID)
		if !ok {
			return model.Item{}, mutate.ValidationError{Reason: "item missing", Err: mutate.NotFoundError{Kind: "item", ID: mv.Patch.ID}}
		}
		return it, nil
	}
	m, ok := o.Apply(mv)
	if !ok {
		return model.Item{}, mutate.ValidationError{Reason: "item missing", Err: mutate.NotFoundError{Kind: "item", ID: mv.Patch.ID}}
	}
	o.signalRebalance(ctx, mv)
	return o.Persist(ctx, m)
}

// Edit applies a direct field edit through the same merge and persistence
// path as drags.
func (o *Orchestrator) Edit(ctx context.Context, res mutate.Result) (model.Item, error) {
	if !res.Changed {
		it, _ := o.cache.Get(res.Patch.ID)
		return it, nil
	}
	m, ok := o.cache.Apply(res.Patch)
	if !ok {
		return model.Item{}, mutate.ValidationError{Reason: "item missing", Err: mutate.NotFoundError{Kind: "item", ID: res.Patch.ID}}
	}
	return o.Persist(ctx, m)
}

// Persist writes m to the store. Transient failures are retried with the
// same absolute patch; once retries run out, or on any other failure, m is
// rolled back. Conflicts also refetch the item.
func (o *Orchestrator) Persist(ctx context.Context, m cache.Mutation) (model.Item, error) {
	entry := o.log.WithFields(log.Fields{"item": m.ItemID, "seq": m.Seq, "fields": m.Patch.Fields()})
	attempts := o.retry.Attempts
	for attempt := 1; ; attempt++ {
		srv, err := o.persister.PersistPatch(ctx, m.Patch)
		if err == nil {
			o.cache.Confirm(m, srv)
			entry.WithField("attempt", attempt).Debug("patch persisted")
			return srv, nil
		}

		if mutate.IsTransient(err) && attempt < attempts {
			entry.WithError(err).WithField("attempt", attempt).Warn("transient persist failure, retrying")
			if serr := o.sleep(ctx, o.retry.Backoff*time.Duration(attempt)); serr != nil {
				o.cache.Rollback(m)
				return model.Item{}, mutate.TransientError{Op: "persist " + m.ItemID, Err: serr}
			}
			continue
		}

		o.cache.Rollback(m)
		switch {
		case mutate.IsConflict(err):
			entry.WithError(err).Warn("persist conflict, rolled back")
			o.refetch(ctx, m.ItemID)
			o.relistGroups(ctx, err)
			return model.Item{}, err
		case mutate.IsTransient(err):
			entry.WithError(err).WithField("attempts", attempt).Error("persist failed after retries, rolled back")
			return model.Item{}, fmt.Errorf("persist %s after %d attempts: %w", m.ItemID, attempt, err)
		default:
			entry.WithError(err).Error("persist failed, rolled back")
			return model.Item{}, err
		}
	}
}

func (o *Orchestrator) refetch(ctx context.Context, id string) {
	if o.items == nil {
		return
	}
	it, err := o.items.FetchItem(ctx, id)
	if err != nil {
		var nf mutate.NotFoundError
		if errors.As(err, &nf) {
			o.cache.Remove(id)
			return
		}
		o.log.WithError(err).WithField("item", id).Warn("refetch after conflict failed")
		return
	}
	o.cache.Refresh([]model.Item{it})
}

// relistGroups reloads the current dimension's groups when err is a conflict
// on a group that no longer exists.
func (o *Orchestrator) relistGroups(ctx context.Context, err error) {
	var c mutate.ConflictError
	if o.groupSrc == nil || !errors.As(err, &c) || c.Group == "" {
		return
	}
	dim, _ := o.Dimension()
	groups, lerr := dim.ListGroups(ctx, o.groupSrc, o.scope)
	if lerr != nil {
		o.log.WithError(lerr).WithField("dimension", dim.Kind()).Warn("relist groups after conflict failed")
		return
	}
	o.mu.Lock()
	if o.dim.Kind() == dim.Kind() {
		o.groups = groups
	}
	o.mu.Unlock()
}

func (o *Orchestrator) signalRebalance(ctx context.Context, mv Move) {
	if !mv.NeedsRebalance {
		return
	}
	kind := mv.Dimension
	if kind == "" {
		dim, _ := o.Dimension()
		kind = dim.Kind()
	}
	entry := o.log.WithFields(log.Fields{"dimension": kind, "group": mv.To.Key})
	entry.Info("order keys collapsed, rebalance needed")
	if o.rebalance == nil {
		return
	}
	if err := o.rebalance.RebalanceNeeded(ctx, kind, mv.To.Key); err != nil {
		entry.WithError(err).Warn("unable to record rebalance request")
	}
}
