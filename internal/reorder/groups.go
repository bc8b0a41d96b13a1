package reorder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard/internal/grouping"
	"taskboard/internal/model"
	"taskboard/internal/mutate"
	"taskboard/internal/ordering"
)

var ErrNoOrdinalWriter = errors.New("group ordinals are not writable")

// SwapGroups exchanges the display positions of two groups of the current
// dimension. The new order is shown immediately and restored if persisting
// the pair fails.
func (o *Orchestrator) SwapGroups(ctx context.Context, keyA, keyB string) ([]model.Group, error) {
	o.mu.Lock()
	dim := o.dim
	before := append([]model.Group(nil), o.groups...)
	ia, ib := groupIndex(before, keyA), groupIndex(before, keyB)
	if ia < 0 || ib < 0 || ia == ib {
		o.mu.Unlock()
		if ia == ib && ia >= 0 {
			return nil, mutate.ValidationError{Reason: "cannot swap a group with itself"}
		}
		missing := keyA
		if ia >= 0 {
			missing = keyB
		}
		return nil, mutate.ValidationError{Reason: "group missing", Err: mutate.NotFoundError{Kind: "group", ID: missing}}
	}
	a, b := before[ia], before[ib]
	if err := checkSwappable(dim.Kind(), a, b); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	after := swapped(before, ia, ib)
	o.groups = after
	o.mu.Unlock()

	if err := o.SwapOrdinals(ctx, dim.Kind(), a, b); err != nil {
		o.mu.Lock()
		if o.dim.Kind() == dim.Kind() {
			o.groups = before
		}
		o.mu.Unlock()
		o.relistGroups(ctx, err)
		return nil, err
	}
	return append([]model.Group(nil), after...), nil
}

// SwapOrdinals persists a's ordinal on b and b's on a as one pair. Transient
// failures retry the pair; a partial write is reverted so neither group is
// left swapped alone.
func (o *Orchestrator) SwapOrdinals(ctx context.Context, kind grouping.Kind, a, b model.Group) error {
	if o.ordinals == nil {
		return ErrNoOrdinalWriter
	}
	if err := checkSwappable(kind, a, b); err != nil {
		return err
	}
	want := map[string]int{a.ID: *b.Ordinal, b.ID: *a.Ordinal}
	entry := o.log.WithFields(log.Fields{"dimension": kind, "a": a.ID, "b": b.ID})

	err := o.writeOrdinals(ctx, kind, want, entry)
	if err == nil {
		entry.Debug("group ordinals swapped")
		return nil
	}

	var pw mutate.PartialWriteError
	if errors.As(err, &pw) && len(pw.Applied) > 0 {
		undo := map[string]int{}
		for _, id := range pw.Applied {
			switch id {
			case a.ID:
				undo[id] = *a.Ordinal
			case b.ID:
				undo[id] = *b.Ordinal
			}
		}
		if uerr := o.writeOrdinals(ctx, kind, undo, entry); uerr != nil {
			entry.WithError(uerr).Error("unable to revert partial group swap")
			err = errors.Join(err, uerr)
		}
	}
	entry.WithError(err).Warn("group swap failed")
	return err
}

func checkSwappable(kind grouping.Kind, a, b model.Group) error {
	if a.ID != "" && a.ID == b.ID {
		return mutate.ValidationError{Reason: "cannot swap a group with itself"}
	}
	if a.Synthetic() || b.Synthetic() || a.Ordinal == nil || b.Ordinal == nil {
		return mutate.ValidationError{Reason: fmt.Sprintf("%s groups have no stored order", kind)}
	}
	return nil
}

func (o *Orchestrator) writeOrdinals(ctx context.Context, kind grouping.Kind, ordinals map[string]int, entry *log.Entry) error {
	return o.withRetry(ctx, entry, func() error {
		return o.ordinals.SetGroupOrdinals(ctx, kind, ordinals)
	})
}

// withRetry retries fn on transient errors per the orchestrator's policy.
func (o *Orchestrator) withRetry(ctx context.Context, entry *log.Entry, fn func() error) error {
	var err error
	for attempt := 1; attempt <= o.retry.Attempts; attempt++ {
		err = fn()
		if err == nil || !mutate.IsTransient(err) {
			return err
		}
		if attempt == o.retry.Attempts {
			break
		}
		entry.WithError(err).WithField("attempt", attempt).Warn("transient failure, retrying")
		if serr := o.sleep(ctx, o.retry.Backoff*time.Duration(attempt)); serr != nil {
			return mutate.TransientError{Op: "retry", Err: serr}
		}
	}
	return err
}

// RebalanceGroup re-spaces the order keys of one group of the current
// dimension and persists every changed key. It returns the number of items
// rewritten.
func (o *Orchestrator) RebalanceGroup(ctx context.Context, key string) (int, error) {
	dim, groups := o.Dimension()
	items := o.cache.Items()
	g, ok := resolveGroup(items, dim, groups, key)
	if !ok {
		return 0, mutate.ValidationError{Reason: "group missing", Err: mutate.NotFoundError{Kind: "group", ID: key}}
	}
	patches := ordering.Rebalance(membersOf(items, dim, g, ""))
	written := 0
	for _, p := range patches {
		m, ok := o.cache.Apply(p)
		if !ok {
			continue
		}
		if _, err := o.Persist(ctx, m); err != nil {
			return written, fmt.Errorf("rebalance %s/%s: %w", dim.Kind(), key, err)
		}
		written++
	}
	o.log.WithFields(log.Fields{"dimension": dim.Kind(), "group": key, "items": written}).Info("group rebalanced")
	return written, nil
}

func groupIndex(groups []model.Group, key string) int {
	for i, g := range groups {
		if g.Key == key {
			return i
		}
	}
	return -1
}

// swapped returns a copy of groups with i and j exchanged, ordinals included,
// re-sorted by ordinal with ordinal-less groups kept last.
func swapped(groups []model.Group, i, j int) []model.Group {
	out := append([]model.Group(nil), groups...)
	oi, oj := *out[i].Ordinal, *out[j].Ordinal
	out[i].Ordinal, out[j].Ordinal = &oj, &oi
	sort.SliceStable(out, func(x, y int) bool {
		a, b := out[x].Ordinal, out[y].Ordinal
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return out
}
