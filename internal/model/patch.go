package model

import "time"

// Field names reported by Patch.Fields.
const (
	FieldTitle          = "title"
	FieldStatusID       = "statusId"
	FieldAssigneeID     = "assigneeId"
	FieldPriority       = "priority"
	FieldProjectID      = "projectId"
	FieldMilestoneID    = "milestoneId"
	FieldOrder          = "order"
	FieldDueDate        = "dueDate"
	FieldGroupChangedAt = "groupChangedAt"
)

// Patch is a partial, absolute update of one item.
//
// A nil field is left untouched. A pointer to "" clears a foreign key and a
// pointer to the zero time clears DueDate. Patches never carry deltas, so
// applying the same patch twice is a no-op the second time.
type Patch struct {
	ID string `json:"id"`

	Title          *string    `json:"title,omitempty"`
	StatusID       *string    `json:"statusId,omitempty"`
	AssigneeID     *string    `json:"assigneeId,omitempty"`
	Priority       *Priority  `json:"priority,omitempty"`
	ProjectID      *string    `json:"projectId,omitempty"`
	MilestoneID    *string    `json:"milestoneId,omitempty"`
	Order          *float64   `json:"order,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	GroupChangedAt *time.Time `json:"groupChangedAt,omitempty"`
}

func StrPtr(s string) *string        { return &s }
func FloatPtr(f float64) *float64    { return &f }
func TimePtr(t time.Time) *time.Time { return &t }
func PriorityPtr(p Priority) *Priority {
	return &p
}

// Fields lists the fields the patch touches, in a fixed order.
func (p Patch) Fields() []string {
	out := make([]string, 0, 9)
	if p.Title != nil {
		out = append(out, FieldTitle)
	}
	if p.StatusID != nil {
		out = append(out, FieldStatusID)
	}
	if p.AssigneeID != nil {
		out = append(out, FieldAssigneeID)
	}
	if p.Priority != nil {
		out = append(out, FieldPriority)
	}
	if p.ProjectID != nil {
		out = append(out, FieldProjectID)
	}
	if p.MilestoneID != nil {
		out = append(out, FieldMilestoneID)
	}
	if p.Order != nil {
		out = append(out, FieldOrder)
	}
	if p.DueDate != nil {
		out = append(out, FieldDueDate)
	}
	if p.GroupChangedAt != nil {
		out = append(out, FieldGroupChangedAt)
	}
	return out
}

func (p Patch) Empty() bool { return len(p.Fields()) == 0 }

// Apply writes the patch's fields into it.
func (p Patch) Apply(it *Item) {
	if it == nil {
		return
	}
	if p.Title != nil {
		it.Title = *p.Title
	}
	if p.StatusID != nil {
		it.StatusID = *p.StatusID
	}
	if p.AssigneeID != nil {
		it.AssigneeID = *p.AssigneeID
	}
	if p.Priority != nil {
		it.Priority = *p.Priority
	}
	if p.ProjectID != nil {
		it.ProjectID = *p.ProjectID
	}
	if p.MilestoneID != nil {
		it.MilestoneID = *p.MilestoneID
	}
	if p.Order != nil {
		it.Order = *p.Order
	}
	if p.DueDate != nil {
		if p.DueDate.IsZero() {
			it.DueDate = nil
		} else {
			d := *p.DueDate
			it.DueDate = &d
		}
	}
	if p.GroupChangedAt != nil {
		t := *p.GroupChangedAt
		it.GroupChangedAt = &t
	}
}

// Merge returns p with every field set in later overriding p's value.
func (p Patch) Merge(later Patch) Patch {
	out := p
	if later.ID != "" {
		out.ID = later.ID
	}
	if later.Title != nil {
		out.Title = later.Title
	}
	if later.StatusID != nil {
		out.StatusID = later.StatusID
	}
	if later.AssigneeID != nil {
		out.AssigneeID = later.AssigneeID
	}
	if later.Priority != nil {
		out.Priority = later.Priority
	}
	if later.ProjectID != nil {
		out.ProjectID = later.ProjectID
	}
	if later.MilestoneID != nil {
		out.MilestoneID = later.MilestoneID
	}
	if later.Order != nil {
		out.Order = later.Order
	}
	if later.DueDate != nil {
		out.DueDate = later.DueDate
	}
	if later.GroupChangedAt != nil {
		out.GroupChangedAt = later.GroupChangedAt
	}
	return out
}

// Only returns a copy of p restricted to the named fields.
func (p Patch) Only(fields []string) Patch {
	out := Patch{ID: p.ID}
	for _, f := range fields {
		switch f {
		case FieldTitle:
			out.Title = p.Title
		case FieldStatusID:
			out.StatusID = p.StatusID
		case FieldAssigneeID:
			out.AssigneeID = p.AssigneeID
		case FieldPriority:
			out.Priority = p.Priority
		case FieldProjectID:
			out.ProjectID = p.ProjectID
		case FieldMilestoneID:
			out.MilestoneID = p.MilestoneID
		case FieldOrder:
			out.Order = p.Order
		case FieldDueDate:
			out.DueDate = p.DueDate
		case FieldGroupChangedAt:
			out.GroupChangedAt = p.GroupChangedAt
		}
	}
	return out
}

// PatchFromItem returns a patch that sets every field of it.
func PatchFromItem(it Item) Patch {
	p := Patch{
		ID:          it.ID,
		Title:       StrPtr(it.Title),
		StatusID:    StrPtr(it.StatusID),
		AssigneeID:  StrPtr(it.AssigneeID),
		Priority:    PriorityPtr(it.Priority),
		ProjectID:   StrPtr(it.ProjectID),
		MilestoneID: StrPtr(it.MilestoneID),
		Order:       FloatPtr(it.Order),
	}
	if it.DueDate != nil {
		p.DueDate = TimePtr(*it.DueDate)
	} else {
		p.DueDate = TimePtr(time.Time{})
	}
	if it.GroupChangedAt != nil {
		p.GroupChangedAt = TimePtr(*it.GroupChangedAt)
	}
	return p
}
