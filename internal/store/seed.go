package store

import (
	"context"
	"time"

	"taskboard/internal/model"
)

// Empty reports whether the store has no statuses and no items.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT (SELECT COUNT(*) FROM statuses) + (SELECT COUNT(*) FROM items)`).Scan(&n)
	if err != nil {
		return false, classify("count", err)
	}
	return n == 0, nil
}

// Seed writes a small demo board with stable ids.
func (s *Store) Seed(ctx context.Context) error {
	statuses := []model.Status{
		{ID: "st-todo", Name: "To Do", Ordinal: 1, Color: "#6b7280"},
		{ID: "st-doing", Name: "In Progress", Ordinal: 2, Color: "#2563eb"},
		{ID: "st-review", Name: "Review", Ordinal: 3, Color: "#d97706"},
		{ID: "st-done", Name: "Done", Ordinal: 4, Color: "#16a34a", IsEndState: true},
	}
	for _, st := range statuses {
		if _, err := s.AddStatus(ctx, st); err != nil {
			return err
		}
	}
	for _, m := range []model.Member{{ID: "mem-ann", Name: "Ann"}, {ID: "mem-ben", Name: "Ben"}} {
		if _, err := s.AddMember(ctx, m); err != nil {
			return err
		}
	}
	projects := []model.Project{
		{ID: "prj-web", Name: "Website", Ordinal: 1, Color: "#7c3aed"},
		{ID: "prj-app", Name: "Mobile app", Ordinal: 2, Color: "#db2777"},
	}
	for _, p := range projects {
		if _, err := s.AddProject(ctx, p); err != nil {
			return err
		}
	}
	milestones := []model.Milestone{
		{ID: "ms-web-beta", ProjectID: "prj-web", Name: "Beta", Ordinal: 1},
		{ID: "ms-web-ga", ProjectID: "prj-web", Name: "GA", Ordinal: 2},
		{ID: "ms-app-mvp", ProjectID: "prj-app", Name: "MVP", Ordinal: 1},
	}
	for _, ms := range milestones {
		if _, err := s.AddMilestone(ctx, ms); err != nil {
			return err
		}
	}

	due := func(days int) *time.Time {
		t := s.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, days)
		return &t
	}
	items := []model.Item{
		{ID: "item-login", Title: "Login form", StatusID: "st-todo", AssigneeID: "mem-ann", Priority: model.PriorityHigh, ProjectID: "prj-web", MilestoneID: "ms-web-beta", Order: 1000, DueDate: due(3)},
		{ID: "item-signup", Title: "Signup flow", StatusID: "st-todo", Priority: model.PriorityMedium, ProjectID: "prj-web", MilestoneID: "ms-web-beta", Order: 2000},
		{ID: "item-crash", Title: "Crash on launch", StatusID: "st-todo", AssigneeID: "mem-ben", Priority: model.PriorityUrgent, ProjectID: "prj-app", Order: 3000},
		{ID: "item-theme", Title: "Dark theme", StatusID: "st-doing", AssigneeID: "mem-ann", Priority: model.PriorityLow, ProjectID: "prj-app", MilestoneID: "ms-app-mvp", Order: 1000},
		{ID: "item-docs", Title: "API docs", StatusID: "st-doing", Order: 2000, DueDate: due(7)},
		{ID: "item-pricing", Title: "Pricing page", StatusID: "st-done", AssigneeID: "mem-ben", Priority: model.PriorityMedium, ProjectID: "prj-web", MilestoneID: "ms-web-ga", Order: 1000},
	}
	for _, it := range items {
		if _, err := s.CreateItem(ctx, it); err != nil {
			return err
		}
	}
	s.log.WithField("items", len(items)).Info("seeded demo board")
	return nil
}
