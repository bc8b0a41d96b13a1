package mutate

import (
	"strings"
	"time"

	"taskboard/internal/model"
)

// Result is the outcome of a direct field edit. Changed=false means the item
// already had the requested value and Patch is empty.
type Result struct {
	Patch   model.Patch
	Changed bool
}

// SetStatus builds the patch for a status picker edit, validating the status
// against the catalog (empty clears the status).
//
// Callers apply the patch through the cache and persist it; nothing is written here.
func SetStatus(it model.Item, statusID string, cat model.Catalog, now time.Time) (Result, error) {
	statusID = strings.TrimSpace(statusID)
	if strings.TrimSpace(it.ID) == "" {
		return Result{}, ValidationError{Reason: "missing item id"}
	}
	if statusID == it.StatusID {
		return Result{}, nil
	}
	if statusID != "" {
		if _, ok := cat.FindStatus(statusID); !ok {
			return Result{}, ValidationError{Reason: "status " + statusID, Err: ErrInvalidStatus}
		}
	}
	return Result{
		Patch: model.Patch{
			ID:             it.ID,
			StatusID:       model.StrPtr(statusID),
			GroupChangedAt: model.TimePtr(now.UTC()),
		},
		Changed: true,
	}, nil
}

// SetPriority builds the patch for a priority picker edit.
func SetPriority(it model.Item, p model.Priority, now time.Time) (Result, error) {
	p = model.Priority(strings.ToLower(strings.TrimSpace(string(p))))
	if p == "none" {
		p = model.PriorityNone
	}
	if !p.Valid() {
		return Result{}, ValidationError{Reason: "priority " + string(p), Err: ErrInvalidPriority}
	}
	if p == it.Priority {
		return Result{}, nil
	}
	return Result{
		Patch: model.Patch{
			ID:             it.ID,
			Priority:       model.PriorityPtr(p),
			GroupChangedAt: model.TimePtr(now.UTC()),
		},
		Changed: true,
	}, nil
}
