package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"

	"taskboard/internal/model"
	"taskboard/internal/mutate"
)

const (
	DefaultPageSize = 200
	MaxPageSize     = 1000
)

// Filter selects items for FetchItems.
type Filter struct {
	ProjectID string
	Limit     int
	// Cursor is the opaque Next token of a previous page.
	Cursor string
}

type Page struct {
	Items []model.Item `json:"items"`
	// Next is empty on the last page.
	Next string `json:"next,omitempty"`
}

const itemColumns = `id, title, status_id, assignee_id, priority, project_id, milestone_id, ord, due_date, group_changed_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (model.Item, error) {
	var it model.Item
	var status, assignee, project, milestone, due, groupChanged sql.NullString
	var priority, updated string
	var ord sql.NullFloat64
	if err := r.Scan(&it.ID, &it.Title, &status, &assignee, &priority, &project, &milestone, &ord, &due, &groupChanged, &updated); err != nil {
		return model.Item{}, err
	}
	it.StatusID = status.String
	it.AssigneeID = assignee.String
	it.Priority = model.Priority(priority)
	it.ProjectID = project.String
	it.MilestoneID = milestone.String
	// SQLite stores NaN as NULL; keep it unordered.
	it.Order = math.NaN()
	if ord.Valid {
		it.Order = ord.Float64
	}
	var err error
	if it.DueDate, err = parseTime(due); err != nil {
		return model.Item{}, err
	}
	if it.GroupChangedAt, err = parseTime(groupChanged); err != nil {
		return model.Item{}, err
	}
	if t, err := parseTime(sql.NullString{String: updated, Valid: true}); err == nil && t != nil {
		it.UpdatedAt = *t
	}
	return it, nil
}

// FetchItems returns one page of items ordered by id.
func (s *Store) FetchItems(ctx context.Context, f Filter) (Page, error) {
	after, err := decodeCursor(f.Cursor)
	if err != nil {
		return Page{}, mutate.ValidationError{Reason: "cursor", Err: err}
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	q := `SELECT ` + itemColumns + ` FROM items WHERE id > ?`
	args := []any{after}
	if p := strings.TrimSpace(f.ProjectID); p != "" {
		q += ` AND project_id = ?`
		args = append(args, p)
	}
	q += ` ORDER BY id LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return Page{}, classify("fetch items", err)
	}
	defer rows.Close()

	page := Page{Items: []model.Item{}}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return Page{}, classify("scan item", err)
		}
		page.Items = append(page.Items, it)
	}
	if err := rows.Err(); err != nil {
		return Page{}, classify("fetch items", err)
	}
	if len(page.Items) > limit {
		page.Items = page.Items[:limit]
		page.Next = encodeCursor(page.Items[limit-1].ID)
	}
	return page, nil
}

// FetchAll drains every page of f.
func (s *Store) FetchAll(ctx context.Context, f Filter) ([]model.Item, error) {
	var out []model.Item
	for {
		page, err := s.FetchItems(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.Next == "" {
			return out, nil
		}
		f.Cursor = page.Next
	}
}

func (s *Store) FetchItem(ctx context.Context, id string) (model.Item, error) {
	return fetchItem(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func fetchItem(ctx context.Context, q querier, id string) (model.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, mutate.NotFoundError{Kind: "item", ID: id}
	}
	if err != nil {
		return model.Item{}, classify("fetch item", err)
	}
	return it, nil
}

// CreateItem inserts it, assigning an id when empty. The project/milestone
// invariant is checked against the stored reference data.
func (s *Store) CreateItem(ctx context.Context, it model.Item) (model.Item, error) {
	if strings.TrimSpace(it.Title) == "" {
		return model.Item{}, mutate.ValidationError{Reason: "missing title"}
	}
	if it.ID == "" {
		it.ID = NewID("item")
	}
	if !it.Priority.Valid() {
		return model.Item{}, mutate.ValidationError{Reason: "priority " + string(it.Priority), Err: mutate.ErrInvalidPriority}
	}
	if it.ProjectID == "" {
		it.MilestoneID = ""
	}
	it.UpdatedAt = s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Item{}, classify("create item", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := checkReferences(ctx, tx, it, nil); err != nil {
		var c mutate.ConflictError
		if errors.As(err, &c) {
			return model.Item{}, mutate.ValidationError{Reason: c.Reason}
		}
		return model.Item{}, err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO items(`+itemColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.Title, nullString(it.StatusID), nullString(it.AssigneeID), string(it.Priority),
		nullString(it.ProjectID), nullString(it.MilestoneID), nullOrder(it.Order),
		nullTime(it.DueDate), nullTime(it.GroupChangedAt), formatTime(it.UpdatedAt))
	if err != nil {
		return model.Item{}, classify("create item", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Item{}, classify("create item", err)
	}
	return it, nil
}

// PersistPatch writes exactly the patch's fields. A missing item, a vanished
// target group or a milestone outside the resulting project is a conflict.
func (s *Store) PersistPatch(ctx context.Context, p model.Patch) (model.Item, error) {
	if p.ID == "" {
		return model.Item{}, mutate.ValidationError{Reason: "missing item id"}
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return model.Item{}, mutate.ValidationError{Reason: "priority " + string(*p.Priority), Err: mutate.ErrInvalidPriority}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Item{}, classify("persist", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := fetchItem(ctx, tx, p.ID)
	if err != nil {
		var nf mutate.NotFoundError
		if errors.As(err, &nf) {
			return model.Item{}, mutate.ConflictError{ItemID: p.ID, Reason: "item no longer exists"}
		}
		return model.Item{}, err
	}
	sets, args := patchColumns(p)
	if len(sets) == 0 {
		return cur, nil
	}
	next := cur
	p.Apply(&next)
	if err := checkReferences(ctx, tx, next, p.Fields()); err != nil {
		return model.Item{}, err
	}
	now := s.now().UTC()
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(now), p.ID)
	if _, err := tx.ExecContext(ctx, `UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return model.Item{}, classify("persist", err)
	}
	out, err := fetchItem(ctx, tx, p.ID)
	if err != nil {
		return model.Item{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Item{}, classify("persist", err)
	}
	s.log.WithField("item", p.ID).WithField("fields", p.Fields()).Debug("patch stored")
	return out, nil
}

// DeleteItem removes an item; deleting a missing item is not an error.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return classify("delete item", err)
	}
	return nil
}

func patchColumns(p model.Patch) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.StatusID != nil {
		add("status_id", nullString(*p.StatusID))
	}
	if p.AssigneeID != nil {
		add("assignee_id", nullString(*p.AssigneeID))
	}
	if p.Priority != nil {
		add("priority", string(*p.Priority))
	}
	if p.ProjectID != nil {
		add("project_id", nullString(*p.ProjectID))
	}
	if p.MilestoneID != nil {
		add("milestone_id", nullString(*p.MilestoneID))
	}
	if p.Order != nil {
		add("ord", nullOrder(*p.Order))
	}
	if p.DueDate != nil {
		add("due_date", nullTime(p.DueDate))
	}
	if p.GroupChangedAt != nil {
		add("group_changed_at", nullTime(p.GroupChangedAt))
	}
	return sets, args
}

func nullOrder(f float64) sql.NullFloat64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

// checkReferences verifies that the foreign keys named by fields (all of them
// when fields is nil) point at stored entities and that the milestone belongs
// to the project.
func checkReferences(ctx context.Context, q querier, it model.Item, fields []string) error {
	touched := func(f string) bool {
		if fields == nil {
			return true
		}
		for _, x := range fields {
			if x == f {
				return true
			}
		}
		return false
	}
	exists := func(table, id string) (bool, error) {
		var one int
		err := q.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, classify("check "+table, err)
		}
		return true, nil
	}
	refs := []struct {
		field, table, kind, id string
	}{
		{model.FieldStatusID, "statuses", "status", it.StatusID},
		{model.FieldAssigneeID, "members", "member", it.AssigneeID},
		{model.FieldProjectID, "projects", "project", it.ProjectID},
	}
	for _, r := range refs {
		if r.id == "" || !touched(r.field) {
			continue
		}
		ok, err := exists(r.table, r.id)
		if err != nil {
			return err
		}
		if !ok {
			return mutate.ConflictError{ItemID: it.ID, Group: r.id, Reason: r.kind + " " + r.id + " no longer exists"}
		}
	}
	if it.MilestoneID == "" || !(touched(model.FieldMilestoneID) || touched(model.FieldProjectID)) {
		return nil
	}
	var projectID string
	err := q.QueryRowContext(ctx, `SELECT project_id FROM milestones WHERE id = ?`, it.MilestoneID).Scan(&projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return mutate.ConflictError{ItemID: it.ID, Group: it.MilestoneID, Reason: "milestone " + it.MilestoneID + " no longer exists"}
	}
	if err != nil {
		return classify("check milestones", err)
	}
	if projectID != it.ProjectID {
		return mutate.ConflictError{ItemID: it.ID, Reason: mutate.ErrMilestoneProject.Error()}
	}
	return nil
}
