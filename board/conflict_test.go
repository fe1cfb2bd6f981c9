package board

import (
	"context"
	"errors"
	"testing"

	"taskboard-api/domain"
)

func seedTask(t *testing.T, f *fixture, version int64) domain.Task {
	t.Helper()
	task := domain.Task{
		ID:       "t1",
		Title:    "Design",
		Priority: domain.PriorityMedium,
		Status:   domain.StatusTodo,
		Version:  version,
	}
	if err := f.store.InsertTask(context.Background(), task); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return task
}

func TestValidateVersionAbsentTokenPasses(t *testing.T) {
	f := newFixture()
	seedTask(t, f, 100)

	current, err := f.pipeline.validateVersion(context.Background(), "t1", 0)
	if err != nil {
		t.Fatalf("opt-out must pass: %v", err)
	}
	if current.Version != 100 {
		t.Fatalf("unexpected snapshot: %+v", current)
	}
}

func TestValidateVersionEqualPasses(t *testing.T) {
	f := newFixture()
	seedTask(t, f, 100)

	if _, err := f.pipeline.validateVersion(context.Background(), "t1", 100); err != nil {
		t.Fatalf("equal token must pass: %v", err)
	}
}

func TestValidateVersionNewerPasses(t *testing.T) {
	f := newFixture()
	seedTask(t, f, 100)

	if _, err := f.pipeline.validateVersion(context.Background(), "t1", 101); err != nil {
		t.Fatalf("not-older token must pass: %v", err)
	}
}

func TestValidateVersionOlderConflicts(t *testing.T) {
	f := newFixture()
	seedTask(t, f, 100)

	_, err := f.pipeline.validateVersion(context.Background(), "t1", 99)
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.ServerTask.ID != "t1" || conflict.ServerTask.Version != 100 {
		t.Fatalf("conflict must carry the stored task: %+v", conflict.ServerTask)
	}
}

func TestValidateVersionMissingTaskIsNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.pipeline.validateVersion(context.Background(), "missing", 5)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing task is NotFound, not Conflict: %v", err)
	}
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		t.Fatal("missing task must not be reported as a conflict")
	}
}

func TestValidateVersionReadOnly(t *testing.T) {
	f := newFixture()
	seedTask(t, f, 100)

	_, _ = f.pipeline.validateVersion(context.Background(), "t1", 99)

	stored, err := f.store.GetTask(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Version != 100 {
		t.Fatalf("conflict check must not mutate the store: %+v", stored)
	}
}
