// Package board implements the task mutation core of the shared board:
// invariant validation, optimistic conflict detection, assignment balancing,
// activity recording and event publication for every mutation.
package board

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// TaskStore is the single source of truth for tasks. Writes are plain
// overwrites: the store performs no version comparison of its own (see
// the conflict detector for the optimistic check).
type TaskStore interface {
	GetTask(ctx context.Context, id string) (domain.Task, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	InsertTask(ctx context.Context, task domain.Task) error
	PutTask(ctx context.Context, task domain.Task) error
	DeleteTask(ctx context.Context, id string) error
}

// UserDirectory exposes the user listing the balancer enumerates. The
// enumeration order is the directory's natural storage order; balancer
// tie-breaks depend on it, so a directory with unstable ordering makes
// ties resolve arbitrarily.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	CountOpenTasks(ctx context.Context, userID string) (int, error)
}

// ActivityRecorder appends audit entries. Recording is fire and forget: a
// returned error is logged by the pipeline and never fails the mutation.
type ActivityRecorder interface {
	Record(ctx context.Context, entry domain.ActivityEntry) error
}

// Publisher delivers one event to every connected session, best effort.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// TaskChanges carries the caller-supplied fields of a full-record update.
type TaskChanges struct {
	Title        string
	Description  string
	Priority     domain.Priority
	Status       domain.Status
	AssignedUser string
}

// Pipeline orchestrates every board mutation: validate, detect conflicts,
// persist, record activity, publish. Each method handles one request
// independently; the store is the only shared mutable resource.
type Pipeline struct {
	store    TaskStore
	users    UserDirectory
	activity ActivityRecorder
	bus      Publisher
	logger   *log.Logger
}

// New creates a Pipeline. All collaborators are required.
func New(store TaskStore, users UserDirectory, activity ActivityRecorder, bus Publisher, logger *log.Logger) *Pipeline {
	if store == nil {
		panic("board: task store is required")
	}
	if users == nil {
		panic("board: user directory is required")
	}
	if activity == nil {
		panic("board: activity recorder is required")
	}
	if bus == nil {
		panic("board: publisher is required")
	}
	if logger == nil {
		panic("board: logger is required")
	}
	return &Pipeline{store: store, users: users, activity: activity, bus: bus, logger: logger}
}

// Create adds a new task to the board. The status is always Todo regardless
// of caller input; an empty priority defaults to Medium.
func (p *Pipeline) Create(ctx context.Context, actorID, title, description string, priority domain.Priority) (task domain.Task, err error) {
	m, ctx := newMutationMetrics(ctx, p.logger, "create")
	defer func() { m.Done(err) }()

	title = domain.NormalizeTitle(title)
	if title == "" {
		m.SetErrorStage(stageValidate)
		return domain.Task{}, domain.ErrEmptyTitle
	}
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(priority) {
		m.SetErrorStage(stageValidate)
		return domain.Task{}, &domain.InvalidPriorityError{Priority: priority}
	}
	if err = p.checkTitle(ctx, title, ""); err != nil {
		m.SetErrorStage(stageValidate)
		return domain.Task{}, err
	}

	task = domain.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      domain.StatusTodo,
		CreatedBy:   actorID,
		Version:     nextVersion(),
		CreatedAt:   time.Now().UnixNano(),
	}
	m.SetTaskID(task.ID)
	if err = p.store.InsertTask(ctx, task); err != nil {
		m.SetErrorStage(stagePersist)
		return domain.Task{}, err
	}

	p.record(ctx, actorID, fmt.Sprintf("Created task %q", task.Title), task.ID)
	p.publish(ctx, domain.Event{Message: "New task created: " + task.Title, Task: &task})
	return task, nil
}

// Update replaces the caller-editable fields of a task. Conflict detection
// runs first: a client version older than the stored one aborts with the
// authoritative server task so the client can choose merge or overwrite.
// A zero client version opts out of the check.
func (p *Pipeline) Update(ctx context.Context, actorID, id string, changes TaskChanges, clientVersion int64) (task domain.Task, err error) {
	m, ctx := newMutationMetrics(ctx, p.logger, "update")
	m.SetTaskID(id)
	defer func() { m.Done(err) }()

	title := domain.NormalizeTitle(changes.Title)
	if title == "" {
		m.SetErrorStage(stageValidate)
		return domain.Task{}, domain.ErrEmptyTitle
	}
	if !domain.ValidStatus(changes.Status) {
		m.SetErrorStage(stageValidate)
		return domain.Task{}, &domain.InvalidStatusError{Status: changes.Status}
	}
	if !domain.ValidPriority(changes.Priority) {
		m.SetErrorStage(stageValidate)
		return domain.Task{}, &domain.InvalidPriorityError{Priority: changes.Priority}
	}

	current, err := p.validateVersion(ctx, id, clientVersion)
	if err != nil {
		m.SetErrorStage(stageConflict)
		return domain.Task{}, err
	}
	if err = p.checkTitle(ctx, title, id); err != nil {
		m.SetErrorStage(stageValidate)
		return domain.Task{}, err
	}

	task = current
	task.Title = title
	task.Description = changes.Description
	task.Priority = changes.Priority
	task.Status = changes.Status
	task.AssignedUser = changes.AssignedUser
	task.Version = nextVersion()
	if err = p.store.PutTask(ctx, task); err != nil {
		m.SetErrorStage(stagePersist)
		return domain.Task{}, err
	}

	p.record(ctx, actorID, fmt.Sprintf("Updated task %q", task.Title), task.ID)
	p.publish(ctx, domain.Event{Message: "Task updated: " + task.Title, Task: &task})
	return task, nil
}

// ChangeStatus moves a task between columns. It intentionally bypasses the
// conflict detector: a drag lands on whatever record is current, even when
// the record changed since the caller last read it.
func (p *Pipeline) ChangeStatus(ctx context.Context, actorID, id string, status domain.Status) (task domain.Task, err error) {
	m, ctx := newMutationMetrics(ctx, p.logger, "change_status")
	m.SetTaskID(id)
	defer func() { m.Done(err) }()

	if !domain.ValidStatus(status) {
		m.SetErrorStage(stageValidate)
		return domain.Task{}, &domain.InvalidStatusError{Status: status}
	}
	task, err = p.store.GetTask(ctx, id)
	if err != nil {
		m.SetErrorStage(stageLoad)
		return domain.Task{}, err
	}

	task.Status = status
	task.Version = nextVersion()
	if err = p.store.PutTask(ctx, task); err != nil {
		m.SetErrorStage(stagePersist)
		return domain.Task{}, err
	}

	p.record(ctx, actorID, fmt.Sprintf("Moved task %q to %s", task.Title, status), task.ID)
	p.publish(ctx, domain.Event{Message: fmt.Sprintf("Task moved: %s to %s", task.Title, status), Task: &task})
	return task, nil
}

// Delete removes a task permanently and publishes a tombstone carrying only
// the task id.
func (p *Pipeline) Delete(ctx context.Context, actorID, id string) (err error) {
	m, ctx := newMutationMetrics(ctx, p.logger, "delete")
	m.SetTaskID(id)
	defer func() { m.Done(err) }()

	task, err := p.store.GetTask(ctx, id)
	if err != nil {
		m.SetErrorStage(stageLoad)
		return err
	}
	if err = p.store.DeleteTask(ctx, id); err != nil {
		m.SetErrorStage(stagePersist)
		return err
	}

	p.record(ctx, actorID, fmt.Sprintf("Deleted task %q", task.Title), task.ID)
	p.publish(ctx, domain.Event{Message: "Task deleted: " + task.Title, TaskID: task.ID})
	return nil
}

// SmartAssign hands the task to the least-loaded user (see balancer.go).
func (p *Pipeline) SmartAssign(ctx context.Context, actorID, id string) (task domain.Task, err error) {
	m, ctx := newMutationMetrics(ctx, p.logger, "smart_assign")
	m.SetTaskID(id)
	defer func() { m.Done(err) }()

	task, err = p.store.GetTask(ctx, id)
	if err != nil {
		m.SetErrorStage(stageLoad)
		return domain.Task{}, err
	}
	assignee, err := p.pickAssignee(ctx)
	if err != nil {
		m.SetErrorStage(stageBalance)
		return domain.Task{}, err
	}

	task.AssignedUser = assignee.ID
	task.Version = nextVersion()
	if err = p.store.PutTask(ctx, task); err != nil {
		m.SetErrorStage(stagePersist)
		return domain.Task{}, err
	}

	p.record(ctx, actorID, fmt.Sprintf("Smart assigned task %q to %s", task.Title, assignee.Name), task.ID)
	p.publish(ctx, domain.Event{Message: "Smart assigned: " + task.Title, Task: &task})
	return task, nil
}

// checkTitle enforces the board-wide title invariants. excludeID skips the
// record being updated so a task may keep its own title.
func (p *Pipeline) checkTitle(ctx context.Context, title, excludeID string) error {
	if domain.ReservedTitle(title) {
		return &domain.ReservedTitleError{Title: title}
	}
	tasks, err := p.store.ListTasks(ctx)
	if err != nil {
		return err
	}
	key := domain.TitleKey(title)
	for _, t := range tasks {
		if t.ID != excludeID && domain.TitleKey(t.Title) == key {
			return &domain.DuplicateTitleError{Title: title}
		}
	}
	return nil
}

// record notifies the activity sink. Failures are logged and swallowed:
// audit recording must never undo or fail a persisted mutation.
func (p *Pipeline) record(ctx context.Context, actorID, action, taskID string) {
	entry := domain.ActivityEntry{
		UserID: actorID,
		Action: action,
		TaskID: taskID,
		Time:   time.Now().UnixNano(),
	}
	if err := p.activity.Record(ctx, entry); err != nil {
		p.logger.WithFields(log.Fields{"user": actorID, "task": taskID}).
			Warnf("activity record failed: %v", err)
	}
}

// publish broadcasts the event for a persisted mutation. Failures are
// logged; the mutation already succeeded and stays succeeded.
func (p *Pipeline) publish(ctx context.Context, ev domain.Event) {
	if err := p.bus.Publish(ctx, ev); err != nil {
		p.logger.Errorf("event publish failed: %v", err)
	}
}
