package grouping

import (
	"context"
	"fmt"
	"strings"

	"taskboard/internal/model"
	"taskboard/internal/mutate"
	"taskboard/internal/ordering"
)

// Kind names a grouping dimension. The set is closed; see Lookup.
type Kind string

const (
	KindStatus    Kind = "status"
	KindAssignee  Kind = "assignee"
	KindPriority  Kind = "priority"
	KindProject   Kind = "project"
	KindMilestone Kind = "milestone"
	KindNone      Kind = "none"
)

// Kinds lists every dimension in picker order.
func Kinds() []Kind {
	return []Kind{KindStatus, KindAssignee, KindPriority, KindProject, KindMilestone, KindNone}
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return KindStatus, nil
	}
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown grouping dimension: %s", s)
}

// GroupSource returns the canonical groups of a remote-backed dimension
// (statuses, members, projects, milestones).
type GroupSource interface {
	FetchGroupsForDimension(ctx context.Context, kind Kind, scope model.Scope) ([]model.Group, error)
}

// Dimension knows how to bucket items along one axis and how to move an item
// into one of its buckets.
type Dimension interface {
	Kind() Kind
	Label() string

	// GroupKey is the value this dimension reads from the item ("" = no value).
	GroupKey(it model.Item) string
	// GroupName is the display name of the item's group.
	GroupName(it model.Item, groups []model.Group) string
	// GroupFor returns the item's group, synthesising one when groups lacks it.
	GroupFor(it model.Item, groups []model.Group) model.Group
	// ListGroups returns the canonical groups in display order.
	ListGroups(ctx context.Context, src GroupSource, scope model.Scope) ([]model.Group, error)
	// ApplyAssignment adds to p the fields that move it into g. Only fields
	// that differ from it are written.
	ApplyAssignment(it model.Item, p model.Patch, g model.Group) model.Patch
	// Contains is the membership predicate.
	Contains(it model.Item, g model.Group) bool
	// Ordinal returns the comparator's group-ordinal tier, or nil when the
	// groups carry no ordinals.
	Ordinal(groups []model.Group) ordering.OrdinalFunc

	sealed()
}

// Lookup returns the dimension for kind.
func Lookup(kind Kind) (Dimension, error) {
	switch kind {
	case KindStatus:
		return statusDimension{base{kind: KindStatus, label: "Status", noneName: "No status"}}, nil
	case KindAssignee:
		return assigneeDimension{base{kind: KindAssignee, label: "Assignee", noneName: "Unassigned"}}, nil
	case KindPriority:
		return priorityDimension{base{kind: KindPriority, label: "Priority", noneName: "No priority"}}, nil
	case KindProject:
		return projectDimension{base{kind: KindProject, label: "Project", noneName: "No project"}}, nil
	case KindMilestone:
		return milestoneDimension{base{kind: KindMilestone, label: "Milestone", noneName: "No milestone"}}, nil
	case KindNone:
		return noneDimension{base{kind: KindNone, label: "None", noneName: "All items"}}, nil
	default:
		return nil, fmt.Errorf("unknown grouping dimension: %s", kind)
	}
}

// MustLookup is Lookup for kinds known at compile time.
func MustLookup(kind Kind) Dimension {
	d, err := Lookup(kind)
	if err != nil {
		panic(err)
	}
	return d
}

// base holds the behaviour every dimension shares; each variant supplies GroupKey.
type base struct {
	kind     Kind
	label    string
	noneName string
}

func (b base) Kind() Kind    { return b.kind }
func (b base) Label() string { return b.label }
func (base) sealed()         {}

func (b base) noneGroup() model.Group {
	return model.Group{Key: "", Name: b.noneName, Dimension: string(b.kind)}
}

func (b base) find(key string, groups []model.Group) (model.Group, bool) {
	for _, g := range groups {
		if g.Key == key {
			return g, true
		}
	}
	return model.Group{}, false
}

// synth builds the null-id group for a key missing from the canonical list.
func (b base) synth(key string) model.Group {
	if key == "" {
		return b.noneGroup()
	}
	return model.Group{Key: key, Name: key, Dimension: string(b.kind)}
}

func (b base) groupFor(key string, groups []model.Group) model.Group {
	if g, ok := b.find(key, groups); ok {
		return g
	}
	return b.synth(key)
}

func (b base) Ordinal(groups []model.Group) ordering.OrdinalFunc {
	return ordinalFromGroups(groups, nil)
}

// fetch lists remote groups and appends the trailing "No X" bucket.
func (b base) fetch(ctx context.Context, src GroupSource, scope model.Scope) ([]model.Group, error) {
	if src == nil {
		return nil, fmt.Errorf("%s groups: no group source", b.kind)
	}
	groups, err := src.FetchGroupsForDimension(ctx, b.kind, scope)
	if err != nil {
		return nil, fmt.Errorf("%s groups: %w", b.kind, err)
	}
	out := make([]model.Group, 0, len(groups)+1)
	for _, g := range groups {
		if g.Key == "" {
			g.Key = g.ID
		}
		if g.Key == "" {
			continue
		}
		g.Dimension = string(b.kind)
		out = append(out, g)
	}
	return append(out, b.noneGroup()), nil
}

func ordinalFromGroups(groups []model.Group, keyOf func(model.Item) string) ordering.OrdinalFunc {
	if keyOf == nil {
		return nil
	}
	ordinals := map[string]int{}
	for _, g := range groups {
		if g.Ordinal != nil {
			ordinals[g.Key] = *g.Ordinal
		}
	}
	if len(ordinals) == 0 {
		return nil
	}
	return func(it model.Item) (int, bool) {
		o, ok := ordinals[keyOf(it)]
		return o, ok
	}
}

// assignKey writes key into *field when it differs from cur.
func assignKey(field **string, cur, key string) {
	if cur == key {
		return
	}
	*field = model.StrPtr(key)
}

func finish(p model.Patch) model.Patch {
	mutate.EnforceProjectMilestone(&p)
	return p
}
