package mutate

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrMilestoneProject = errors.New("milestone belongs to a different project")
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ValidationError rejects a move or edit before anything is mutated.
type ValidationError struct {
	Reason string
	Err    error
}

func (e ValidationError) Error() string {
	if e.Err != nil {
		return "invalid: " + e.Reason + ": " + e.Err.Error()
	}
	return "invalid: " + e.Reason
}

func (e ValidationError) Unwrap() error { return e.Err }

// ConflictError is returned by the persistence boundary when the item or the
// target group changed or disappeared underneath the write. Group is the key
// of the vanished group, empty when the item itself conflicted.
type ConflictError struct {
	ItemID string
	Group  string
	Reason string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("conflict on item %s: %s", e.ItemID, e.Reason)
}

// TransientError marks a failure worth retrying (network, timeout, busy db).
type TransientError struct {
	Op  string
	Err error
}

func (e TransientError) Error() string {
	if e.Err == nil {
		return e.Op + ": temporary failure"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e TransientError) Unwrap() error { return e.Err }

// Temporary lets callers that only know the net.Error style check retryability.
func (e TransientError) Temporary() bool { return true }

// PartialWriteError reports that a multi-write operation stopped halfway.
// Applied lists the keys that did reach storage.
type PartialWriteError struct {
	Applied []string
	Err     error
}

func (e PartialWriteError) Error() string {
	return fmt.Sprintf("partial write (%d applied): %v", len(e.Applied), e.Err)
}

func (e PartialWriteError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var c ConflictError
	return errors.As(err, &c)
}

func IsTransient(err error) bool {
	var t TransientError
	return errors.As(err, &t)
}
