package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"taskboard/internal/grouping"
	"taskboard/internal/model"
	"taskboard/internal/mutate"
)

// FetchGroupsForDimension returns the canonical groups of kind in display
// order. Priority and none are synthetic and have no stored groups.
func (s *Store) FetchGroupsForDimension(ctx context.Context, kind grouping.Kind, scope model.Scope) ([]model.Group, error) {
	switch kind {
	case grouping.KindStatus:
		statuses, err := s.Statuses(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]model.Group, 0, len(statuses))
		for i := range statuses {
			st := statuses[i]
			out = append(out, model.Group{ID: st.ID, Key: st.ID, Name: st.Name, Color: st.Color, Ordinal: intPtr(st.Ordinal), Status: &st})
		}
		return out, nil
	case grouping.KindAssignee:
		members, err := s.Members(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]model.Group, 0, len(members))
		for i := range members {
			m := members[i]
			out = append(out, model.Group{ID: m.ID, Key: m.ID, Name: m.Name, Member: &m})
		}
		return out, nil
	case grouping.KindProject:
		projects, err := s.Projects(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]model.Group, 0, len(projects))
		for i := range projects {
			p := projects[i]
			if scope.ProjectID != "" && p.ID != scope.ProjectID {
				continue
			}
			out = append(out, model.Group{ID: p.ID, Key: p.ID, Name: p.Name, Color: p.Color, Ordinal: intPtr(p.Ordinal), Project: &p})
		}
		return out, nil
	case grouping.KindMilestone:
		milestones, err := s.Milestones(ctx, scope.ProjectID)
		if err != nil {
			return nil, err
		}
		out := make([]model.Group, 0, len(milestones))
		for i := range milestones {
			ms := milestones[i]
			out = append(out, model.Group{ID: ms.ID, Key: ms.ID, Name: ms.Name, Ordinal: intPtr(ms.Ordinal), Milestone: &ms})
		}
		return out, nil
	case grouping.KindPriority, grouping.KindNone:
		return nil, nil
	default:
		return nil, mutate.ValidationError{Reason: fmt.Sprintf("unknown grouping dimension %q", kind)}
	}
}

func intPtr(i int) *int { return &i }

func ordinalTable(kind grouping.Kind) (string, bool) {
	switch kind {
	case grouping.KindStatus:
		return "statuses", true
	case grouping.KindProject:
		return "projects", true
	case grouping.KindMilestone:
		return "milestones", true
	default:
		return "", false
	}
}

// SetGroupOrdinals writes every ordinal in one transaction: either all land
// or none do. A group that no longer exists is a conflict.
func (s *Store) SetGroupOrdinals(ctx context.Context, kind grouping.Kind, ordinals map[string]int) error {
	table, ok := ordinalTable(kind)
	if !ok {
		return mutate.ValidationError{Reason: fmt.Sprintf("%s groups have no stored order", kind)}
	}
	if len(ordinals) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("set ordinals", err)
	}
	defer func() { _ = tx.Rollback() }()

	for id, ord := range ordinals {
		res, err := tx.ExecContext(ctx, `UPDATE `+table+` SET ordinal = ? WHERE id = ?`, ord, id)
		if err != nil {
			return classify("set ordinals", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return mutate.ConflictError{Group: id, Reason: string(kind) + " group no longer exists"}
		}
	}
	if err := tx.Commit(); err != nil {
		return classify("set ordinals", err)
	}
	s.log.WithField("dimension", kind).WithField("groups", len(ordinals)).Debug("group ordinals stored")
	return nil
}

func (s *Store) Statuses(ctx context.Context) ([]model.Status, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, ordinal, color, is_end_state FROM statuses ORDER BY ordinal, id`)
	if err != nil {
		return nil, classify("list statuses", err)
	}
	defer rows.Close()
	var out []model.Status
	for rows.Next() {
		var st model.Status
		var end int
		if err := rows.Scan(&st.ID, &st.Name, &st.Ordinal, &st.Color, &end); err != nil {
			return nil, classify("list statuses", err)
		}
		st.IsEndState = end != 0
		out = append(out, st)
	}
	return out, classify("list statuses", rows.Err())
}

func (s *Store) Members(ctx context.Context) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM members ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, classify("list members", err)
	}
	defer rows.Close()
	var out []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, classify("list members", err)
		}
		out = append(out, m)
	}
	return out, classify("list members", rows.Err())
}

func (s *Store) Projects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, ordinal, color FROM projects ORDER BY ordinal, id`)
	if err != nil {
		return nil, classify("list projects", err)
	}
	defer rows.Close()
	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Ordinal, &p.Color); err != nil {
			return nil, classify("list projects", err)
		}
		out = append(out, p)
	}
	return out, classify("list projects", rows.Err())
}

// Milestones lists milestones, optionally limited to one project.
func (s *Store) Milestones(ctx context.Context, projectID string) ([]model.Milestone, error) {
	q := `SELECT m.id, m.project_id, m.name, m.ordinal FROM milestones m JOIN projects p ON p.id = m.project_id`
	var args []any
	if projectID = strings.TrimSpace(projectID); projectID != "" {
		q += ` WHERE m.project_id = ?`
		args = append(args, projectID)
	}
	q += ` ORDER BY p.ordinal, m.ordinal, m.id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify("list milestones", err)
	}
	defer rows.Close()
	var out []model.Milestone
	for rows.Next() {
		var ms model.Milestone
		if err := rows.Scan(&ms.ID, &ms.ProjectID, &ms.Name, &ms.Ordinal); err != nil {
			return nil, classify("list milestones", err)
		}
		out = append(out, ms)
	}
	return out, classify("list milestones", rows.Err())
}

// Catalog loads all reference data for field-edit validation.
func (s *Store) Catalog(ctx context.Context) (model.Catalog, error) {
	var (
		cat model.Catalog
		err error
	)
	if cat.Statuses, err = s.Statuses(ctx); err != nil {
		return model.Catalog{}, err
	}
	if cat.Members, err = s.Members(ctx); err != nil {
		return model.Catalog{}, err
	}
	if cat.Projects, err = s.Projects(ctx); err != nil {
		return model.Catalog{}, err
	}
	if cat.Milestones, err = s.Milestones(ctx, ""); err != nil {
		return model.Catalog{}, err
	}
	return cat, nil
}

func (s *Store) AddStatus(ctx context.Context, st model.Status) (model.Status, error) {
	if strings.TrimSpace(st.Name) == "" {
		return model.Status{}, mutate.ValidationError{Reason: "missing status name"}
	}
	if st.ID == "" {
		st.ID = NewID("st")
	}
	if st.Ordinal == 0 {
		st.Ordinal = s.nextOrdinal(ctx, "statuses")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO statuses(id, name, ordinal, color, is_end_state) VALUES(?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.Ordinal, st.Color, boolToInt(st.IsEndState))
	return st, classify("add status", err)
}

func (s *Store) AddMember(ctx context.Context, m model.Member) (model.Member, error) {
	if strings.TrimSpace(m.Name) == "" {
		return model.Member{}, mutate.ValidationError{Reason: "missing member name"}
	}
	if m.ID == "" {
		m.ID = NewID("mem")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO members(id, name) VALUES(?, ?)`, m.ID, m.Name)
	return m, classify("add member", err)
}

func (s *Store) AddProject(ctx context.Context, p model.Project) (model.Project, error) {
	if strings.TrimSpace(p.Name) == "" {
		return model.Project{}, mutate.ValidationError{Reason: "missing project name"}
	}
	if p.ID == "" {
		p.ID = NewID("prj")
	}
	if p.Ordinal == 0 {
		p.Ordinal = s.nextOrdinal(ctx, "projects")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO projects(id, name, ordinal, color) VALUES(?, ?, ?, ?)`, p.ID, p.Name, p.Ordinal, p.Color)
	return p, classify("add project", err)
}

func (s *Store) AddMilestone(ctx context.Context, ms model.Milestone) (model.Milestone, error) {
	if strings.TrimSpace(ms.Name) == "" {
		return model.Milestone{}, mutate.ValidationError{Reason: "missing milestone name"}
	}
	if strings.TrimSpace(ms.ProjectID) == "" {
		return model.Milestone{}, mutate.ValidationError{Reason: "milestone needs a project"}
	}
	if ms.ID == "" {
		ms.ID = NewID("ms")
	}
	if ms.Ordinal == 0 {
		ms.Ordinal = s.nextOrdinal(ctx, "milestones")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO milestones(id, project_id, name, ordinal) VALUES(?, ?, ?, ?)`, ms.ID, ms.ProjectID, ms.Name, ms.Ordinal)
	return ms, classify("add milestone", err)
}

func (s *Store) nextOrdinal(ctx context.Context, table string) int {
	var hi sql.NullInt64
	_ = s.db.QueryRowContext(ctx, `SELECT MAX(ordinal) FROM `+table).Scan(&hi)
	return int(hi.Int64) + 1
}
