package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that the target task does not exist.
	ErrNotFound = errors.New("task not found")
	// ErrEmptyTitle reports a create or update with a blank title.
	ErrEmptyTitle = errors.New("task title is required")
	// ErrNoUsersAvailable reports that smart assign found no eligible user.
	ErrNoUsersAvailable = errors.New("no users available for assignment")
)

// DuplicateTitleError reports a title already used by another task on the
// board. Comparison is case-insensitive on the trimmed title.
type DuplicateTitleError struct {
	Title string
}

func (e *DuplicateTitleError) Error() string {
	return fmt.Sprintf("task title %q is already in use", e.Title)
}

// ReservedTitleError reports a title that matches a column label.
type ReservedTitleError struct {
	Title string
}

func (e *ReservedTitleError) Error() string {
	return fmt.Sprintf("task title %q matches a column name", e.Title)
}

// InvalidStatusError reports a status outside the three board columns.
type InvalidStatusError struct {
	Status Status
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid task status %q", e.Status)
}

// InvalidPriorityError reports an unknown priority level.
type InvalidPriorityError struct {
	Priority Priority
}

func (e *InvalidPriorityError) Error() string {
	return fmt.Sprintf("invalid task priority %q", e.Priority)
}

// ConflictError is returned when the caller's version token is older than
// the stored one. ServerTask carries the authoritative record so the client
// can offer a merge or overwrite choice.
type ConflictError struct {
	ServerTask Task
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task %s was modified concurrently (server version %d)", e.ServerTask.ID, e.ServerTask.Version)
}

// IsValidation reports whether err is a pre-persistence validation failure,
// as opposed to a missing record, a conflict, or an internal error.
func IsValidation(err error) bool {
	var dup *DuplicateTitleError
	var res *ReservedTitleError
	var st *InvalidStatusError
	var pr *InvalidPriorityError
	return errors.Is(err, ErrEmptyTitle) ||
		errors.As(err, &dup) ||
		errors.As(err, &res) ||
		errors.As(err, &st) ||
		errors.As(err, &pr)
}
