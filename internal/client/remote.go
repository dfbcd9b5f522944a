// Package client keeps an optimistic copy of a user's task list and replays
// every local edit against the server in issue order.
package client

import (
	"context"

	"github.com/taskmaster/tasklist/internal/domain/entities"
	"github.com/taskmaster/tasklist/internal/ports"
)

// Remote is the server a Store persists to. base is the last version the
// Store confirmed; nil skips the version check.
type Remote interface {
	Fetch(ctx context.Context) (*ports.Snapshot, error)
	Create(ctx context.Context, req ports.CreateTaskRequest) (*ports.WriteResult, error)
	Update(ctx context.Context, taskID string, req ports.UpdateTaskRequest, base *int64) (*ports.WriteResult, error)
	Delete(ctx context.Context, taskID string, base *int64) (*ports.WriteResult, error)
	Move(ctx context.Context, taskID string, newPosition int, base *int64) (*ports.WriteResult, error)
	MoveBy(ctx context.Context, taskID string, step int, base *int64) (*ports.WriteResult, error)
	TogglePin(ctx context.Context, taskID string, base *int64) (*ports.WriteResult, error)
	WriteChecklist(ctx context.Context, taskID string, items []entities.ListItem, base *int64) (*ports.WriteResult, error)
}

// ServiceRemote calls a TaskService in-process on behalf of one user.
type ServiceRemote struct {
	svc    ports.TaskService
	userID string
}

// NewServiceRemote binds svc to userID
func NewServiceRemote(svc ports.TaskService, userID string) *ServiceRemote {
	return &ServiceRemote{svc: svc, userID: userID}
}

func (r *ServiceRemote) Fetch(ctx context.Context) (*ports.Snapshot, error) {
	return r.svc.FetchTasks(ctx, r.userID)
}

func (r *ServiceRemote) Create(ctx context.Context, req ports.CreateTaskRequest) (*ports.WriteResult, error) {
	return r.svc.PersistCreate(ctx, r.userID, req)
}

func (r *ServiceRemote) Update(ctx context.Context, taskID string, req ports.UpdateTaskRequest, base *int64) (*ports.WriteResult, error) {
	return r.svc.UpdateTask(ctx, r.userID, taskID, req, base)
}

func (r *ServiceRemote) Delete(ctx context.Context, taskID string, base *int64) (*ports.WriteResult, error) {
	return r.svc.PersistDelete(ctx, r.userID, taskID, base)
}

func (r *ServiceRemote) Move(ctx context.Context, taskID string, newPosition int, base *int64) (*ports.WriteResult, error) {
	return r.svc.PersistMove(ctx, r.userID, taskID, newPosition, base)
}

func (r *ServiceRemote) MoveBy(ctx context.Context, taskID string, step int, base *int64) (*ports.WriteResult, error) {
	return r.svc.PersistMoveBy(ctx, r.userID, taskID, step, base)
}

func (r *ServiceRemote) TogglePin(ctx context.Context, taskID string, base *int64) (*ports.WriteResult, error) {
	return r.svc.PersistPinToggle(ctx, r.userID, taskID, base)
}

func (r *ServiceRemote) WriteChecklist(ctx context.Context, taskID string, items []entities.ListItem, base *int64) (*ports.WriteResult, error) {
	return r.svc.PersistChecklistWrite(ctx, r.userID, taskID, items, base)
}
