package model

import "time"

// Priority is an item's priority tier. The empty value means "no priority".
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
	PriorityNone   Priority = ""
)

// Priorities lists the tiers in rank order, "no priority" last.
var Priorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow, PriorityNone}

// Rank returns the sort rank of p: urgent(1) < high(2) < medium(3) < low(4) < none(5).
// Unknown values rank as none.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 1
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 3
	case PriorityLow:
		return 4
	default:
		return 5
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow, PriorityNone:
		return true
	default:
		return false
	}
}

type Status struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Ordinal    int    `json:"ordinal"`
	Color      string `json:"color,omitempty"`
	IsEndState bool   `json:"isEndState"`
}

type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Project struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Ordinal int    `json:"ordinal"`
	Color   string `json:"color,omitempty"`
}

type Milestone struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Ordinal   int    `json:"ordinal"`
}

// Item is a unit of work placed on the board.
//
// Foreign keys use the empty string for "not set".
type Item struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	StatusID    string   `json:"statusId,omitempty"`
	AssigneeID  string   `json:"assigneeId,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	ProjectID   string   `json:"projectId,omitempty"`
	MilestoneID string   `json:"milestoneId,omitempty"`

	Order   float64    `json:"order"`
	DueDate *time.Time `json:"dueDate,omitempty"`

	// GroupChangedAt is stamped on every group/order mutation.
	GroupChangedAt *time.Time `json:"groupChangedAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Group is a bucket derived on read for one grouping dimension.
//
// ID is the storage id of the source entity and is empty for synthetic groups
// (priority, none, and the "No X" bucket of every other dimension). Key is the
// value the dimension writes into an item when the item is assigned to the group.
type Group struct {
	ID        string `json:"id,omitempty"`
	Key       string `json:"key"`
	Name      string `json:"name"`
	Dimension string `json:"dimension"`
	Color     string `json:"color,omitempty"`
	Ordinal   *int   `json:"ordinal,omitempty"`

	Status    *Status    `json:"status,omitempty"`
	Member    *Member    `json:"member,omitempty"`
	Project   *Project   `json:"project,omitempty"`
	Milestone *Milestone `json:"milestone,omitempty"`
}

// Synthetic reports whether the group has no backing entity.
func (g Group) Synthetic() bool { return g.ID == "" }

// Scope narrows group listings, e.g. milestones to one project.
type Scope struct {
	ProjectID string `json:"projectId,omitempty"`
}

// Catalog is a snapshot of the reference entities items point at.
type Catalog struct {
	Statuses   []Status    `json:"statuses"`
	Members    []Member    `json:"members"`
	Projects   []Project   `json:"projects"`
	Milestones []Milestone `json:"milestones"`
}

func (c Catalog) FindStatus(id string) (Status, bool) {
	for _, s := range c.Statuses {
		if s.ID == id {
			return s, true
		}
	}
	return Status{}, false
}

func (c Catalog) FindMember(id string) (Member, bool) {
	for _, m := range c.Members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

func (c Catalog) FindProject(id string) (Project, bool) {
	for _, p := range c.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

func (c Catalog) FindMilestone(id string) (Milestone, bool) {
	for _, m := range c.Milestones {
		if m.ID == id {
			return m, true
		}
	}
	return Milestone{}, false
}
