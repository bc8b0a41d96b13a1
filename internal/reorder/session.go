package reorder

import (
	"errors"
	"fmt"

	"taskboard/internal/grouping"
	"taskboard/internal/model"
)

type State int

const (
	Idle State = iota
	Dragging
	Committing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Committing:
		return "committing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type TargetKind int

const (
	TargetItem TargetKind = iota + 1
	TargetGroup
)

// Target is what the active item hovers: another item or a group.
type Target struct {
	Kind TargetKind `json:"kind"`
	// ID is the item id for TargetItem and the group key for TargetGroup.
	ID string `json:"id"`
}

func OverItem(id string) Target   { return Target{Kind: TargetItem, ID: id} }
func OverGroup(key string) Target { return Target{Kind: TargetGroup, ID: key} }

func (t Target) IsItem() bool  { return t.Kind == TargetItem }
func (t Target) IsGroup() bool { return t.Kind == TargetGroup }
func (t Target) Valid() bool   { return t.Kind == TargetItem || t.Kind == TargetGroup }

func (t Target) String() string {
	switch t.Kind {
	case TargetItem:
		return "item:" + t.ID
	case TargetGroup:
		return "group:" + t.ID
	default:
		return "none"
	}
}

var (
	ErrNotDragging = errors.New("no drag in progress")
	ErrNoTarget    = errors.New("drag has no drop target")
)

// Session is one drag gesture. It is owned by the caller; the orchestrator
// keeps no drag state of its own.
type Session struct {
	state    State
	activeID string
	over     *Target
}

func (s *Session) State() State {
	if s == nil {
		return Idle
	}
	return s.state
}

func (s *Session) ActiveID() string {
	if s == nil {
		return ""
	}
	return s.activeID
}

// Over records the current hover target. Hovering nothing clears it.
func (s *Session) Over(t *Target) error {
	if s.State() != Dragging {
		return ErrNotDragging
	}
	if t == nil || !t.Valid() {
		s.over = nil
		return nil
	}
	cp := *t
	s.over = &cp
	return nil
}

func (s *Session) Target() (Target, bool) {
	if s == nil || s.over == nil {
		return Target{}, false
	}
	return *s.over, true
}

// DropTargetKey returns the key of the group the drag currently hovers, for
// grouping.ViewOptions.DropTarget.
func (s *Session) DropTargetKey(items []model.Item, dim grouping.Dimension) *string {
	t, ok := s.Target()
	if !ok || s.state != Dragging {
		return nil
	}
	if t.IsGroup() {
		key := t.ID
		return &key
	}
	for _, it := range items {
		if it.ID == t.ID {
			key := dim.GroupKey(it)
			return &key
		}
	}
	return nil
}

func (s *Session) reset() {
	s.state = Idle
	s.over = nil
}
