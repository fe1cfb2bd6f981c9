package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestConflictErrorCarriesServerTask(t *testing.T) {
	server := Task{ID: "t1", Title: "Design", Version: 42}
	var err error = &ConflictError{ServerTask: server}

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatal("expected errors.As to match ConflictError")
	}
	if conflict.ServerTask.Version != 42 {
		t.Fatalf("unexpected server task: %+v", conflict.ServerTask)
	}
}

func TestIsValidation(t *testing.T) {
	validation := []error{
		ErrEmptyTitle,
		&DuplicateTitleError{Title: "Design"},
		&ReservedTitleError{Title: "todo"},
		&InvalidStatusError{Status: "Archived"},
		&InvalidPriorityError{Priority: "Urgent"},
		fmt.Errorf("create: %w", &DuplicateTitleError{Title: "Design"}),
	}
	for _, err := range validation {
		if !IsValidation(err) {
			t.Fatalf("expected %v to be a validation error", err)
		}
	}

	other := []error{
		ErrNotFound,
		ErrNoUsersAvailable,
		&ConflictError{},
		errors.New("boom"),
	}
	for _, err := range other {
		if IsValidation(err) {
			t.Fatalf("did not expect %v to be a validation error", err)
		}
	}
}
