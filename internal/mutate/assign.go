package mutate

import (
	"strings"
	"time"

	"taskboard/internal/model"
)

// SetAssignee builds the patch for an assignee picker edit. An empty memberID
// unassigns the item.
func SetAssignee(it model.Item, memberID string, cat model.Catalog, now time.Time) (Result, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == it.AssigneeID {
		return Result{}, nil
	}
	if memberID != "" {
		if _, ok := cat.FindMember(memberID); !ok {
			return Result{}, ValidationError{Reason: "assignee", Err: NotFoundError{Kind: "member", ID: memberID}}
		}
	}
	return Result{
		Patch: model.Patch{
			ID:             it.ID,
			AssigneeID:     model.StrPtr(memberID),
			GroupChangedAt: model.TimePtr(now.UTC()),
		},
		Changed: true,
	}, nil
}

// SetProject moves the item to another project (empty clears it). The item's
// milestone belongs to the old project, so it is cleared in the same patch.
func SetProject(it model.Item, projectID string, cat model.Catalog, now time.Time) (Result, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == it.ProjectID {
		return Result{}, nil
	}
	if projectID != "" {
		if _, ok := cat.FindProject(projectID); !ok {
			return Result{}, ValidationError{Reason: "project", Err: NotFoundError{Kind: "project", ID: projectID}}
		}
	}
	p := model.Patch{
		ID:             it.ID,
		ProjectID:      model.StrPtr(projectID),
		GroupChangedAt: model.TimePtr(now.UTC()),
	}
	if it.MilestoneID != "" {
		p.MilestoneID = model.StrPtr("")
	}
	EnforceProjectMilestone(&p)
	return Result{Patch: p, Changed: true}, nil
}

// SetMilestone assigns a milestone (empty clears it). A milestone drags its
// project along: when the item sits in a different project it is moved.
func SetMilestone(it model.Item, milestoneID string, cat model.Catalog, now time.Time) (Result, error) {
	milestoneID = strings.TrimSpace(milestoneID)
	if milestoneID == it.MilestoneID {
		return Result{}, nil
	}
	p := model.Patch{
		ID:             it.ID,
		MilestoneID:    model.StrPtr(milestoneID),
		GroupChangedAt: model.TimePtr(now.UTC()),
	}
	if milestoneID != "" {
		ms, ok := cat.FindMilestone(milestoneID)
		if !ok {
			return Result{}, ValidationError{Reason: "milestone", Err: NotFoundError{Kind: "milestone", ID: milestoneID}}
		}
		if ms.ProjectID == "" {
			return Result{}, ValidationError{Reason: "milestone " + milestoneID, Err: ErrMilestoneProject}
		}
		if ms.ProjectID != it.ProjectID {
			p.ProjectID = model.StrPtr(ms.ProjectID)
		}
	}
	return Result{Patch: p, Changed: true}, nil
}

// EnforceProjectMilestone keeps the project/milestone invariant inside one
// patch: clearing the project always clears the milestone.
func EnforceProjectMilestone(p *model.Patch) {
	if p == nil || p.ProjectID == nil {
		return
	}
	if *p.ProjectID == "" {
		p.MilestoneID = model.StrPtr("")
	}
}

// CheckProjectMilestone validates the invariant for a fully patched item.
func CheckProjectMilestone(it model.Item, cat model.Catalog) error {
	if it.MilestoneID == "" {
		return nil
	}
	ms, ok := cat.FindMilestone(it.MilestoneID)
	if !ok {
		return NotFoundError{Kind: "milestone", ID: it.MilestoneID}
	}
	if ms.ProjectID != it.ProjectID {
		return ErrMilestoneProject
	}
	return nil
}
