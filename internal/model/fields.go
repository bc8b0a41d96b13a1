package model

// CopyFields copies the named fields from src into it.
func (it *Item) CopyFields(src Item, fields []string) {
	for _, f := range fields {
		switch f {
		case FieldTitle:
			it.Title = src.Title
		case FieldStatusID:
			it.StatusID = src.StatusID
		case FieldAssigneeID:
			it.AssigneeID = src.AssigneeID
		case FieldPriority:
			it.Priority = src.Priority
		case FieldProjectID:
			it.ProjectID = src.ProjectID
		case FieldMilestoneID:
			it.MilestoneID = src.MilestoneID
		case FieldOrder:
			it.Order = src.Order
		case FieldDueDate:
			it.DueDate = src.DueDate
		case FieldGroupChangedAt:
			it.GroupChangedAt = src.GroupChangedAt
		}
	}
}

// ItemFields lists every mergeable field.
var ItemFields = []string{
	FieldTitle,
	FieldStatusID,
	FieldAssigneeID,
	FieldPriority,
	FieldProjectID,
	FieldMilestoneID,
	FieldOrder,
	FieldDueDate,
	FieldGroupChangedAt,
}
