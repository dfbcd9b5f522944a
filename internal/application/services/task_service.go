package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/taskmaster/tasklist/internal/domain/checklist"
	"github.com/taskmaster/tasklist/internal/domain/entities"
	"github.com/taskmaster/tasklist/internal/domain/ordering"
	"github.com/taskmaster/tasklist/internal/infrastructure/logger"
	"github.com/taskmaster/tasklist/internal/infrastructure/metrics"
	"github.com/taskmaster/tasklist/internal/ports"
)

// Payload limits
const (
	MaxTextLength = 10000
	MaxItemLength = 1000
)

// ErrInvalidTaskData is returned when a payload fails validation
var ErrInvalidTaskData = errors.New("invalid task data")

// TaskService owns every write to a user's task list. Each call holds the
// user's writer lock across read, compute and ledger write.
type TaskService struct {
	ledger   ports.TaskLedger
	locker   ports.Locker
	validate *validator.Validate
	metrics  *metrics.Recorder
	logger   *logger.Logger
	now      func() time.Time
}

// NewTaskService creates a new task service. rec may be nil.
func NewTaskService(ledger ports.TaskLedger, locker ports.Locker, rec *metrics.Recorder, log *logger.Logger) *TaskService {
	return &TaskService{
		ledger:   ledger,
		locker:   locker,
		validate: validator.New(),
		metrics:  rec,
		logger:   log.WithComponent("task_service"),
		now:      time.Now,
	}
}

// mutation computes and applies one write against the current ordered list.
// Returning a result with Changed false means nothing was written.
// version is what tasks were read at and what the ledger write must still see.
type mutation func(ctx context.Context, tasks []*entities.Task, version int64) (*ports.WriteResult, error)

// FetchTasks returns the user's ordered list and its version stamp
func (s *TaskService) FetchTasks(ctx context.Context, userID string) (*ports.Snapshot, error) {
	version, err := s.ledger.Version(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}
	tasks, err := s.ledger.GetOrdered(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}
	return &ports.Snapshot{Tasks: tasks, Version: version}, nil
}

// PersistMove moves the task to the 1-based slot newPosition of the ordered list.
// A target outside the list is ignored.
func (s *TaskService) PersistMove(ctx context.Context, userID, taskID string, newPosition int, base *int64) (*ports.WriteResult, error) {
	return s.write(ctx, userID, "move", base, func(ctx context.Context, tasks []*entities.Task, version int64) (*ports.WriteResult, error) {
		plan, err := ordering.Move(tasks, taskID, newPosition-1)
		if err != nil {
			return nil, err
		}
		return s.renumber(ctx, userID, taskID, tasks, plan, version)
	})
}

// PersistMoveBy shifts the task by step slots within its partition
func (s *TaskService) PersistMoveBy(ctx context.Context, userID, taskID string, step int, base *int64) (*ports.WriteResult, error) {
	return s.write(ctx, userID, "move_by", base, func(ctx context.Context, tasks []*entities.Task, version int64) (*ports.WriteResult, error) {
		plan, err := ordering.MoveBy(tasks, taskID, step)
		if err != nil {
			return nil, err
		}
		return s.renumber(ctx, userID, taskID, tasks, plan, version)
	})
}

// PersistPinToggle flips the pin and moves the task to its partition's insertion index
func (s *TaskService) PersistPinToggle(ctx context.Context, userID, taskID string, base *int64) (*ports.WriteResult, error) {
	return s.write(ctx, userID, "pin_toggle", base, func(ctx context.Context, tasks []*entities.Task, version int64) (*ports.WriteResult, error) {
		plan, err := ordering.TogglePin(tasks, taskID)
		if err != nil {
			return nil, err
		}
		return s.renumber(ctx, userID, taskID, tasks, plan, version)
	})
}

// PersistCreate appends the task and places it at the top of the unpinned block
// (or the bottom of the pinned block when created pinned).
func (s *TaskService) PersistCreate(ctx context.Context, userID string, req ports.CreateTaskRequest) (*ports.WriteResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTaskData, err)
	}
	if err := s.validateData(req.Data); err != nil {
		return nil, err
	}

	return s.write(ctx, userID, "create", nil, func(ctx context.Context, tasks []*entities.Task, version int64) (*ports.WriteResult, error) {
		task := &entities.Task{
			ID:     req.ID,
			UserID: userID,
			Data:   req.Data,
			Done:   req.Done,
			Pinned: req.Pinned,
			Image:  req.Image,
		}
		if task.ID == "" {
			task.ID = uuid.NewString()
		}
		if _, err := findTask(tasks, task.ID); err == nil {
			return nil, fmt.Errorf("task %s: %w", task.ID, entities.ErrTaskConflict)
		}

		placed := task.Clone()
		placed.Position = ordering.NextPosition(tasks)
		plan, err := ordering.PlaceNew(append(entities.CloneTasks(tasks), placed), task.ID)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.Insert(ctx, task, plan, version); err != nil {
			return nil, err
		}
		if !plan.Empty() {
			s.metrics.ObserveRenumber(len(plan.Assignments))
		}
		return &ports.WriteResult{Changed: true, Position: task.Position, Task: task.Clone(), Plan: &plan}, nil
	})
}

// PersistDelete removes the task. Other positions are left untouched.
func (s *TaskService) PersistDelete(ctx context.Context, userID, taskID string, base *int64) (*ports.WriteResult, error) {
	return s.write(ctx, userID, "delete", base, func(ctx context.Context, tasks []*entities.Task, version int64) (*ports.WriteResult, error) {
		if _, err := findTask(tasks, taskID); err != nil {
			return nil, err
		}
		if err := s.ledger.Delete(ctx, userID, taskID, version); err != nil {
			return nil, err
		}
		return &ports.WriteResult{Changed: true}, nil
	})
}

// PersistChecklistWrite replaces the task's checklist wholesale
func (s *TaskService) PersistChecklistWrite(ctx context.Context, userID, taskID string, items []entities.ListItem, base *int64) (*ports.WriteResult, error) {
	if err := s.validateItems(items); err != nil {
		return nil, err
	}
	return s.updateContent(ctx, userID, taskID, "checklist_write", base, func(task *entities.Task) (bool, error) {
		task.Data = entities.ChecklistData(items)
		return true, nil
	})
}

// UpdateTask rewrites data, done and image. Position and pinned cannot change here.
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, req ports.UpdateTaskRequest, base *int64) (*ports.WriteResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTaskData, err)
	}
	if req.Data != nil {
		if err := s.validateData(*req.Data); err != nil {
			return nil, err
		}
	}
	return s.updateContent(ctx, userID, taskID, "update", base, func(task *entities.Task) (bool, error) {
		if req.Data != nil {
			task.Data = *req.Data
		}
		if req.Done != nil {
			task.Done = *req.Done
		}
		if req.Image != nil {
			if *req.Image == "" {
				task.Image = nil
			} else {
				img := *req.Image
				task.Image = &img
			}
		}
		return req.Data != nil || req.Done != nil || req.Image != nil, nil
	})
}

// ToggleItemDone completes an item (sinks to the end) or restores it (rises to the front)
func (s *TaskService) ToggleItemDone(ctx context.Context, userID, taskID, itemID string, base *int64) (*ports.WriteResult, error) {
	return s.updateItems(ctx, userID, taskID, "item_toggle", base, func(items []entities.ListItem) ([]entities.ListItem, error) {
		return checklist.ToggleDone(items, itemID)
	})
}

// InsertItemAfter adds an empty item right after the anchor
func (s *TaskService) InsertItemAfter(ctx context.Context, userID, taskID, anchorID string, base *int64) (*ports.WriteResult, error) {
	return s.updateItems(ctx, userID, taskID, "item_insert", base, func(items []entities.ListItem) ([]entities.ListItem, error) {
		return checklist.InsertAfter(items, anchorID, checklist.NewItem(""))
	})
}

// DeleteItem removes an item. Removing the last one turns the task back into empty text.
func (s *TaskService) DeleteItem(ctx context.Context, userID, taskID, itemID string, base *int64) (*ports.WriteResult, error) {
	return s.updateItems(ctx, userID, taskID, "item_delete", base, func(items []entities.ListItem) ([]entities.ListItem, error) {
		out, _, err := checklist.Remove(items, itemID)
		return out, err
	})
}

// SetItemText edits one item's text in place
func (s *TaskService) SetItemText(ctx context.Context, userID, taskID, itemID, text string, base *int64) (*ports.WriteResult, error) {
	if utf8.RuneCountInString(text) > MaxItemLength {
		return nil, fmt.Errorf("%w: item longer than %d characters", ErrInvalidTaskData, MaxItemLength)
	}
	return s.updateItems(ctx, userID, taskID, "item_edit", base, func(items []entities.ListItem) ([]entities.ListItem, error) {
		return checklist.SetText(items, itemID, text)
	})
}

// MoveItem moves an item to newIndex within the checklist. Out of range targets are ignored.
func (s *TaskService) MoveItem(ctx context.Context, userID, taskID, itemID string, newIndex int, base *int64) (*ports.WriteResult, error) {
	return s.updateItems(ctx, userID, taskID, "item_move", base, func(items []entities.ListItem) ([]entities.ListItem, error) {
		return checklist.Move(items, itemID, newIndex)
	})
}

// SetChecklistMode converts between text (one item per line) and checklist mode
func (s *TaskService) SetChecklistMode(ctx context.Context, userID, taskID string, enabled bool, base *int64) (*ports.WriteResult, error) {
	return s.updateContent(ctx, userID, taskID, "checklist_mode", base, func(task *entities.Task) (bool, error) {
		switch {
		case enabled && !task.IsChecklist():
			task.Data = entities.ChecklistData(checklist.FromText(task.Data.Text()))
		case !enabled && task.IsChecklist():
			task.Data = entities.TextData(checklist.ToText(task.Data.Items()))
		default:
			return false, nil
		}
		return true, nil
	})
}

// Resequence renumbers the whole list to 1..n, closing gaps left by deletes
func (s *TaskService) Resequence(ctx context.Context, userID string) (*ports.WriteResult, error) {
	return s.write(ctx, userID, "resequence", nil, func(ctx context.Context, tasks []*entities.Task, version int64) (*ports.WriteResult, error) {
		plan := ordering.Resequence(tasks)
		if plan.Empty() {
			return &ports.WriteResult{}, nil
		}
		if err := s.ledger.Renumber(ctx, userID, plan, version); err != nil {
			return nil, err
		}
		s.metrics.ObserveRenumber(len(plan.Assignments))
		return &ports.WriteResult{Changed: true, Plan: &plan}, nil
	})
}

// write runs fn under the user's lock after checking the base version.
func (s *TaskService) write(ctx context.Context, userID, op string, base *int64, fn mutation) (*ports.WriteResult, error) {
	log := s.logger.WithUserID(userID)
	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: acquire lock: %w", op, err)
	}
	defer func() {
		if err := unlock(context.Background()); err != nil {
			log.WithError(err).Warnw("Failed to release task list lock", "op", op)
		}
	}()

	version, err := s.ledger.Version(ctx, userID)
	if err != nil {
		s.metrics.ObserveWrite(op, metrics.OutcomeError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if base != nil && *base != version {
		s.metrics.ObserveWrite(op, metrics.OutcomeStale)
		log.Infow("Rejected stale write", "op", op, "base_version", *base, "version", version)
		return nil, fmt.Errorf("%s: %w", op, entities.ErrStaleVersion)
	}

	tasks, err := s.ledger.GetOrdered(ctx, userID)
	if err != nil {
		s.metrics.ObserveWrite(op, metrics.OutcomeError)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res, err := fn(ctx, tasks, version)
	if errors.Is(err, entities.ErrOutOfRange) {
		res, err = &ports.WriteResult{}, nil
	}
	if err != nil {
		switch {
		case errors.Is(err, entities.ErrStaleVersion):
			s.metrics.ObserveWrite(op, metrics.OutcomeStale)
			log.Warnw("Ledger moved under a held lock", "op", op, "version", version)
		case errors.Is(err, entities.ErrPersistence):
			s.metrics.ObserveWrite(op, metrics.OutcomeError)
			log.WithError(err).Errorw("Ledger write failed", "op", op)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res.At = s.now().UTC()
	if !res.Changed {
		res.Version = version
		s.metrics.ObserveWrite(op, metrics.OutcomeNoop)
		return res, nil
	}

	res.Version = version + 1
	s.metrics.ObserveWrite(op, metrics.OutcomeApplied)
	s.logger.LogLedgerWrite(userID, op, res.Version, rowsOf(res))
	return res, nil
}

// renumber applies a reorder plan; an empty plan writes nothing.
func (s *TaskService) renumber(ctx context.Context, userID, taskID string, tasks []*entities.Task, plan ordering.RenumberPlan, version int64) (*ports.WriteResult, error) {
	if plan.Empty() {
		return &ports.WriteResult{}, nil
	}
	if err := s.ledger.Renumber(ctx, userID, plan, version); err != nil {
		return nil, err
	}
	s.metrics.ObserveRenumber(len(plan.Assignments))

	res := &ports.WriteResult{Changed: true, Plan: &plan}
	if moved, err := findTask(ordering.Apply(tasks, plan), taskID); err == nil {
		res.Position = moved.Position
		res.Task = moved
	}
	return res, nil
}

// updateContent loads the task, lets edit change it and writes it back.
func (s *TaskService) updateContent(ctx context.Context, userID, taskID, op string, base *int64, edit func(*entities.Task) (bool, error)) (*ports.WriteResult, error) {
	return s.write(ctx, userID, op, base, func(ctx context.Context, tasks []*entities.Task, version int64) (*ports.WriteResult, error) {
		task, err := findTask(tasks, taskID)
		if err != nil {
			return nil, err
		}
		changed, err := edit(task)
		if err != nil {
			return nil, err
		}
		if !changed {
			return &ports.WriteResult{Task: task, Position: task.Position}, nil
		}
		if err := s.ledger.UpdateContent(ctx, task, version); err != nil {
			return nil, err
		}
		return &ports.WriteResult{Changed: true, Task: task, Position: task.Position}, nil
	})
}

// updateItems applies a checklist operation as one whole-array write.
func (s *TaskService) updateItems(ctx context.Context, userID, taskID, op string, base *int64, change func([]entities.ListItem) ([]entities.ListItem, error)) (*ports.WriteResult, error) {
	return s.updateContent(ctx, userID, taskID, op, base, func(task *entities.Task) (bool, error) {
		if !task.IsChecklist() {
			return false, fmt.Errorf("task %s: %w", task.ID, entities.ErrNotChecklist)
		}
		items, err := change(task.Data.Items())
		if err != nil {
			return false, err
		}
		task.Data = entities.ChecklistData(items)
		return true, nil
	})
}

func (s *TaskService) validateData(data entities.TaskData) error {
	if data.IsChecklist() {
		return s.validateItems(data.Items())
	}
	if utf8.RuneCountInString(data.Text()) > MaxTextLength {
		return fmt.Errorf("%w: text longer than %d characters", ErrInvalidTaskData, MaxTextLength)
	}
	return nil
}

func (s *TaskService) validateItems(items []entities.ListItem) error {
	if err := checklist.Validate(items); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTaskData, err)
	}
	for i := range items {
		if err := s.validate.Struct(items[i]); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTaskData, err)
		}
	}
	return nil
}

func findTask(tasks []*entities.Task, taskID string) (*entities.Task, error) {
	for _, t := range tasks {
		if t.ID == taskID {
			return t, nil
		}
	}
	return nil, fmt.Errorf("task %s: %w", taskID, entities.ErrTaskNotFound)
}

func rowsOf(res *ports.WriteResult) int {
	if res.Plan != nil {
		return len(res.Plan.Touched())
	}
	return 1
}
