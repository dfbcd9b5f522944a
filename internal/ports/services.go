package ports

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taskmaster/tasklist/internal/domain/entities"
)

// TaskService is the server-side boundary the transport layer calls.
type TaskService interface {
	FetchTasks(ctx context.Context, userID string) (*Snapshot, error)
	PersistCreate(ctx context.Context, userID string, req CreateTaskRequest) (*WriteResult, error)
	PersistMove(ctx context.Context, userID, taskID string, newPosition int, base *int64) (*WriteResult, error)
	PersistMoveBy(ctx context.Context, userID, taskID string, step int, base *int64) (*WriteResult, error)
	PersistPinToggle(ctx context.Context, userID, taskID string, base *int64) (*WriteResult, error)
	PersistDelete(ctx context.Context, userID, taskID string, base *int64) (*WriteResult, error)
	PersistChecklistWrite(ctx context.Context, userID, taskID string, items []entities.ListItem, base *int64) (*WriteResult, error)
	UpdateTask(ctx context.Context, userID, taskID string, req UpdateTaskRequest, base *int64) (*WriteResult, error)
	ToggleItemDone(ctx context.Context, userID, taskID, itemID string, base *int64) (*WriteResult, error)
	InsertItemAfter(ctx context.Context, userID, taskID, anchorID string, base *int64) (*WriteResult, error)
	DeleteItem(ctx context.Context, userID, taskID, itemID string, base *int64) (*WriteResult, error)
	SetItemText(ctx context.Context, userID, taskID, itemID, text string, base *int64) (*WriteResult, error)
	MoveItem(ctx context.Context, userID, taskID, itemID string, newIndex int, base *int64) (*WriteResult, error)
	SetChecklistMode(ctx context.Context, userID, taskID string, checklist bool, base *int64) (*WriteResult, error)
	Resequence(ctx context.Context, userID string) (*WriteResult, error)
}

// AuthService interface for authentication operations
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// UserService manages the signed-in account
type UserService interface {
	GetProfile(ctx context.Context, userID string) (*entities.User, error)
	ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error
}

// CreateTaskRequest carries a new task. ID is optional; clients creating
// optimistically send their own.
type CreateTaskRequest struct {
	ID     string            `json:"id" validate:"omitempty,max=64"`
	Data   entities.TaskData `json:"data"`
	Done   bool              `json:"done"`
	Pinned bool              `json:"pinned"`
	Image  *string           `json:"image" validate:"omitempty,max=2048"`
}

// UpdateTaskRequest carries a partial update. Pinned is not accepted here;
// pinning goes through PersistPinToggle so the pinned prefix is kept.
type UpdateTaskRequest struct {
	Data  *entities.TaskData `json:"data"`
	Done  *bool              `json:"done"`
	Image *string            `json:"image" validate:"omitempty,max=2048"`
}

// ChecklistWriteRequest replaces a checklist wholesale.
type ChecklistWriteRequest struct {
	Items []entities.ListItem `json:"items" validate:"required,min=1,dive"`
}

// ItemTextRequest edits one checklist item
type ItemTextRequest struct {
	Data string `json:"data" validate:"max=1000"`
}

// ChecklistModeRequest switches a task between text and checklist mode.
type ChecklistModeRequest struct {
	Checklist bool `json:"checklist"`
}

// RegisterRequest creates an account
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest authenticates an account
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest replaces the account password
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// AuthResponse returns a bearer token
type AuthResponse struct {
	Token     string         `json:"token"`
	ExpiresIn int64          `json:"expires_in"`
	User      *entities.User `json:"user"`
}

// Claims represents the JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
