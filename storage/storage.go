// Package storage persists board tasks and reads the user directory from
// Azure Table Storage, with an optional redis cache in front of board
// snapshot reads.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard-api/domain"
)

// The board is a single shared collection, so every task lives under one
// partition. Users keep their own partition in a separate table; the pager
// returns them in RowKey order, which is the enumeration order the
// assignment balancer tie-breaks on.
const (
	boardPartition = "board"
	userPartition  = "user"

	edmInt64 = "Edm.Int64"
)

// Storage provides access to the task table and the user directory table.
type Storage struct {
	taskTable *aztables.Client
	userTable *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, usersTable string) (*Storage, error) {
	clientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &clientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		taskTable: svc.NewClient(tasksTable),
		userTable: svc.NewClient(usersTable),
	}, nil
}

type taskEntity struct {
	aztables.Entity
	Title         string `json:"Title"`
	Description   string `json:"Description,omitempty"`
	Priority      string `json:"Priority"`
	Status        string `json:"Status"`
	AssignedUser  string `json:"AssignedUser,omitempty"`
	CreatedBy     string `json:"CreatedBy"`
	Version       int64  `json:"Version,string"`
	VersionType   string `json:"Version@odata.type"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

type userEntity struct {
	aztables.Entity
	Name string `json:"Name"`
}

func encodeTask(t domain.Task) ([]byte, error) {
	ent := taskEntity{
		Entity:        aztables.Entity{PartitionKey: boardPartition, RowKey: t.ID},
		Title:         t.Title,
		Description:   t.Description,
		Priority:      string(t.Priority),
		Status:        string(t.Status),
		AssignedUser:  t.AssignedUser,
		CreatedBy:     t.CreatedBy,
		Version:       t.Version,
		VersionType:   edmInt64,
		CreatedAt:     t.CreatedAt,
		CreatedAtType: edmInt64,
	}
	return json.Marshal(ent)
}

func decodeTask(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	return domain.Task{
		ID:           ent.RowKey,
		Title:        ent.Title,
		Description:  ent.Description,
		Priority:     domain.Priority(ent.Priority),
		Status:       domain.Status(ent.Status),
		AssignedUser: ent.AssignedUser,
		CreatedBy:    ent.CreatedBy,
		Version:      ent.Version,
		CreatedAt:    ent.CreatedAt,
	}, nil
}

// GetTask retrieves one task by id.
func (s *Storage) GetTask(ctx context.Context, id string) (domain.Task, error) {
	resp, err := s.taskTable.GetEntity(ctx, boardPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Task{}, domain.ErrNotFound
		}
		return domain.Task{}, err
	}
	return decodeTask(resp.Value)
}

// ListTasks retrieves the whole board.
func (s *Storage) ListTasks(ctx context.Context) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + boardPartition + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTask(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// InsertTask adds a new task. The id is assumed fresh (uuid), so an insert
// collision surfaces as a storage error rather than a domain condition.
func (s *Storage) InsertTask(ctx context.Context, task domain.Task) error {
	payload, err := encodeTask(task)
	if err != nil {
		return err
	}
	_, err = s.taskTable.AddEntity(ctx, payload, nil)
	return err
}

// PutTask replaces a stored task wholesale. The write carries no version
// precondition: the optimistic check happens in the mutation core before
// the write, and the gap between them stays open (last write wins).
func (s *Storage) PutTask(ctx context.Context, task domain.Task) error {
	payload, err := encodeTask(task)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeReplace})
	if err != nil && isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}

// DeleteTask removes a task permanently.
func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	_, err := s.taskTable.DeleteEntity(ctx, boardPartition, id, nil)
	if err != nil && isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}

// ListUsers enumerates the user directory in its natural storage order.
func (s *Storage) ListUsers(ctx context.Context) ([]domain.User, error) {
	filter := "PartitionKey eq '" + userPartition + "'"
	pager := s.userTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	users := []domain.User{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent userEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			users = append(users, domain.User{ID: ent.RowKey, Name: ent.Name})
		}
	}
	return users, nil
}

// CountOpenTasks returns the number of tasks assigned to the user whose
// status is not Done.
func (s *Storage) CountOpenTasks(ctx context.Context, userID string) (int, error) {
	filter := openTasksFilter(userID)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	count := 0
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		count += len(resp.Entities)
	}
	return count, nil
}

func openTasksFilter(userID string) string {
	return "PartitionKey eq '" + boardPartition +
		"' and AssignedUser eq '" + escapeFilterValue(userID) +
		"' and Status ne '" + string(domain.StatusDone) + "'"
}

// escapeFilterValue doubles single quotes per the OData filter grammar.
func escapeFilterValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}
