package mutate

import (
	"time"

	"taskboard/internal/model"
)

// Edit names the fields of a direct edit. Nil fields are left alone; an empty
// string clears the field.
type Edit struct {
	Status    *string `json:"status,omitempty"`
	Priority  *string `json:"priority,omitempty"`
	Assignee  *string `json:"assignee,omitempty"`
	Project   *string `json:"project,omitempty"`
	Milestone *string `json:"milestone,omitempty"`
}

func (e Edit) Empty() bool {
	return e.Status == nil && e.Priority == nil && e.Assignee == nil && e.Project == nil && e.Milestone == nil
}

// ApplyEdit folds every requested field into one patch so the edit persists
// as a single write. Project goes first so a milestone in the same edit is
// checked against the new project.
func ApplyEdit(it model.Item, e Edit, cat model.Catalog, now time.Time) (Result, error) {
	acc := Result{Patch: model.Patch{ID: it.ID}}
	step := func(res Result, err error) error {
		if err != nil {
			return err
		}
		if res.Changed {
			acc.Patch = acc.Patch.Merge(res.Patch)
			acc.Changed = true
			res.Patch.Apply(&it)
		}
		return nil
	}
	if e.Project != nil {
		if err := step(SetProject(it, *e.Project, cat, now)); err != nil {
			return Result{}, err
		}
	}
	if e.Milestone != nil {
		if err := step(SetMilestone(it, *e.Milestone, cat, now)); err != nil {
			return Result{}, err
		}
	}
	if e.Status != nil {
		if err := step(SetStatus(it, *e.Status, cat, now)); err != nil {
			return Result{}, err
		}
	}
	if e.Priority != nil {
		if err := step(SetPriority(it, model.Priority(*e.Priority), now)); err != nil {
			return Result{}, err
		}
	}
	if e.Assignee != nil {
		if err := step(SetAssignee(it, *e.Assignee, cat, now)); err != nil {
			return Result{}, err
		}
	}
	return acc, nil
}
