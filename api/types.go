package api

import (
	"context"

	"taskboard-api/board"
	"taskboard-api/domain"
)

// Board is the mutation surface the handlers drive.
type Board interface {
	Create(ctx context.Context, actorID, title, description string, priority domain.Priority) (domain.Task, error)
	Update(ctx context.Context, actorID, id string, changes board.TaskChanges, clientVersion int64) (domain.Task, error)
	ChangeStatus(ctx context.Context, actorID, id string, status domain.Status) (domain.Task, error)
	Delete(ctx context.Context, actorID, id string) error
	SmartAssign(ctx context.Context, actorID, id string) (domain.Task, error)
}

// Reader serves the read-only board snapshot and the user listing.
type Reader interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Authenticator resolves the acting user from request credentials.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}
