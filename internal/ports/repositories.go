package ports

import (
	"context"
	"time"

	"github.com/taskmaster/tasklist/internal/domain/entities"
	"github.com/taskmaster/tasklist/internal/domain/ordering"
)

// TaskLedger persists and serves each user's task order.
//
// Every write takes the version the caller read and bumps it by one in the same
// transaction. A ledger whose version has moved since rejects the write with
// entities.ErrStaleVersion and changes nothing.
type TaskLedger interface {
	GetOrdered(ctx context.Context, userID string) ([]*entities.Task, error)
	Get(ctx context.Context, userID, taskID string) (*entities.Task, error)
	// Insert stores the task one past the highest position in use and applies
	// plan in the same transaction, so the task is never visible out of place.
	Insert(ctx context.Context, task *entities.Task, plan ordering.RenumberPlan, expected int64) error
	Renumber(ctx context.Context, userID string, plan ordering.RenumberPlan, expected int64) error
	UpdateContent(ctx context.Context, task *entities.Task, expected int64) error
	Delete(ctx context.Context, userID, taskID string, expected int64) error
	Version(ctx context.Context, userID string) (int64, error)
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Locker serialises writers per user.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// Unlock releases a lock obtained from Locker.
type Unlock func(ctx context.Context) error

// Snapshot is the authoritative ordered list together with its version stamp.
type Snapshot struct {
	Tasks   []*entities.Task `json:"tasks"`
	Version int64            `json:"version"`
}

// WriteResult reports the outcome of a persist call.
type WriteResult struct {
	Version  int64                  `json:"version"`
	Changed  bool                   `json:"changed"`
	Position int                    `json:"position,omitempty"`
	Task     *entities.Task         `json:"task,omitempty"`
	Plan     *ordering.RenumberPlan `json:"plan,omitempty"`
	At       time.Time              `json:"at"`
}
