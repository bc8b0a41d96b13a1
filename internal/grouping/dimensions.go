package grouping

import (
	"context"

	"taskboard/internal/model"
	"taskboard/internal/ordering"
)

type statusDimension struct{ base }

func (statusDimension) GroupKey(it model.Item) string { return it.StatusID }

func (d statusDimension) GroupName(it model.Item, groups []model.Group) string {
	return d.GroupFor(it, groups).Name
}

func (d statusDimension) GroupFor(it model.Item, groups []model.Group) model.Group {
	return d.groupFor(d.GroupKey(it), groups)
}

func (d statusDimension) ListGroups(ctx context.Context, src GroupSource, scope model.Scope) ([]model.Group, error) {
	return d.fetch(ctx, src, scope)
}

func (statusDimension) ApplyAssignment(it model.Item, p model.Patch, g model.Group) model.Patch {
	assignKey(&p.StatusID, it.StatusID, g.Key)
	return finish(p)
}

func (d statusDimension) Contains(it model.Item, g model.Group) bool { return d.GroupKey(it) == g.Key }

func (d statusDimension) Ordinal(groups []model.Group) ordering.OrdinalFunc {
	return ordinalFromGroups(groups, d.GroupKey)
}

type assigneeDimension struct{ base }

func (assigneeDimension) GroupKey(it model.Item) string { return it.AssigneeID }

func (d assigneeDimension) GroupName(it model.Item, groups []model.Group) string {
	return d.GroupFor(it, groups).Name
}

func (d assigneeDimension) GroupFor(it model.Item, groups []model.Group) model.Group {
	return d.groupFor(d.GroupKey(it), groups)
}

func (d assigneeDimension) ListGroups(ctx context.Context, src GroupSource, scope model.Scope) ([]model.Group, error) {
	return d.fetch(ctx, src, scope)
}

func (assigneeDimension) ApplyAssignment(it model.Item, p model.Patch, g model.Group) model.Patch {
	assignKey(&p.AssigneeID, it.AssigneeID, g.Key)
	return finish(p)
}

func (d assigneeDimension) Contains(it model.Item, g model.Group) bool {
	return d.GroupKey(it) == g.Key
}

// priorityDimension is synthetic: its groups are the fixed priority tiers.
type priorityDimension struct{ base }

var priorityNames = map[model.Priority]string{
	model.PriorityUrgent: "Urgent",
	model.PriorityHigh:   "High",
	model.PriorityMedium: "Medium",
	model.PriorityLow:    "Low",
}

func (priorityDimension) GroupKey(it model.Item) string {
	if !it.Priority.Valid() {
		return string(model.PriorityNone)
	}
	return string(it.Priority)
}

func (d priorityDimension) GroupName(it model.Item, groups []model.Group) string {
	return d.GroupFor(it, groups).Name
}

func (d priorityDimension) GroupFor(it model.Item, groups []model.Group) model.Group {
	key := d.GroupKey(it)
	if g, ok := d.find(key, groups); ok {
		return g
	}
	if name, ok := priorityNames[model.Priority(key)]; ok {
		return model.Group{Key: key, Name: name, Dimension: string(d.kind)}
	}
	return d.synth(key)
}

func (d priorityDimension) ListGroups(context.Context, GroupSource, model.Scope) ([]model.Group, error) {
	out := make([]model.Group, 0, len(model.Priorities))
	for _, p := range model.Priorities {
		if p == model.PriorityNone {
			out = append(out, d.noneGroup())
			continue
		}
		out = append(out, model.Group{Key: string(p), Name: priorityNames[p], Dimension: string(d.kind)})
	}
	return out, nil
}

func (priorityDimension) ApplyAssignment(it model.Item, p model.Patch, g model.Group) model.Patch {
	next := model.Priority(g.Key)
	if !next.Valid() {
		return finish(p)
	}
	if it.Priority != next {
		p.Priority = model.PriorityPtr(next)
	}
	return finish(p)
}

func (d priorityDimension) Contains(it model.Item, g model.Group) bool {
	return d.GroupKey(it) == g.Key
}

type projectDimension struct{ base }

func (projectDimension) GroupKey(it model.Item) string { return it.ProjectID }

func (d projectDimension) GroupName(it model.Item, groups []model.Group) string {
	return d.GroupFor(it, groups).Name
}

func (d projectDimension) GroupFor(it model.Item, groups []model.Group) model.Group {
	return d.groupFor(d.GroupKey(it), groups)
}

func (d projectDimension) ListGroups(ctx context.Context, src GroupSource, scope model.Scope) ([]model.Group, error) {
	return d.fetch(ctx, src, scope)
}

// ApplyAssignment moves the item to g's project. The item's milestone belongs
// to its old project, so a real project change clears it.
func (projectDimension) ApplyAssignment(it model.Item, p model.Patch, g model.Group) model.Patch {
	if it.ProjectID != g.Key {
		p.ProjectID = model.StrPtr(g.Key)
		if it.MilestoneID != "" {
			p.MilestoneID = model.StrPtr("")
		}
	}
	return finish(p)
}

func (d projectDimension) Contains(it model.Item, g model.Group) bool {
	return d.GroupKey(it) == g.Key
}

func (d projectDimension) Ordinal(groups []model.Group) ordering.OrdinalFunc {
	return ordinalFromGroups(groups, d.GroupKey)
}

type milestoneDimension struct{ base }

func (milestoneDimension) GroupKey(it model.Item) string { return it.MilestoneID }

func (d milestoneDimension) GroupName(it model.Item, groups []model.Group) string {
	return d.GroupFor(it, groups).Name
}

func (d milestoneDimension) GroupFor(it model.Item, groups []model.Group) model.Group {
	return d.groupFor(d.GroupKey(it), groups)
}

func (d milestoneDimension) ListGroups(ctx context.Context, src GroupSource, scope model.Scope) ([]model.Group, error) {
	return d.fetch(ctx, src, scope)
}

// ApplyAssignment sets the milestone and, when the milestone lives in another
// project, moves the item into that project in the same patch.
func (milestoneDimension) ApplyAssignment(it model.Item, p model.Patch, g model.Group) model.Patch {
	if it.MilestoneID != g.Key {
		p.MilestoneID = model.StrPtr(g.Key)
	}
	if g.Key != "" && g.Milestone != nil && g.Milestone.ProjectID != "" && g.Milestone.ProjectID != it.ProjectID {
		p.ProjectID = model.StrPtr(g.Milestone.ProjectID)
	}
	return finish(p)
}

func (d milestoneDimension) Contains(it model.Item, g model.Group) bool {
	return d.GroupKey(it) == g.Key
}

func (d milestoneDimension) Ordinal(groups []model.Group) ordering.OrdinalFunc {
	return ordinalFromGroups(groups, d.GroupKey)
}

// noneDimension puts every item into one synthetic group.
type noneDimension struct{ base }

func (noneDimension) GroupKey(model.Item) string { return "" }

func (d noneDimension) GroupName(it model.Item, groups []model.Group) string {
	return d.GroupFor(it, groups).Name
}

func (d noneDimension) GroupFor(_ model.Item, groups []model.Group) model.Group {
	return d.groupFor("", groups)
}

func (d noneDimension) ListGroups(context.Context, GroupSource, model.Scope) ([]model.Group, error) {
	return []model.Group{d.noneGroup()}, nil
}

func (noneDimension) ApplyAssignment(_ model.Item, p model.Patch, _ model.Group) model.Patch {
	return finish(p)
}

func (noneDimension) Contains(model.Item, model.Group) bool { return true }
