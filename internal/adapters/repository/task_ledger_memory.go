package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/taskmaster/tasklist/internal/domain/entities"
	"github.com/taskmaster/tasklist/internal/domain/ordering"
)

var errDuplicatePosition = errors.New("duplicate position")

// MemoryLedger keeps every user's list in process memory. It enforces the same
// constraints as the SQL schema: unique (user, id) and unique (user, position).
type MemoryLedger struct {
	mu       sync.RWMutex
	tasks    map[string]map[string]*entities.Task
	versions map[string]int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		tasks:    make(map[string]map[string]*entities.Task),
		versions: make(map[string]int64),
	}
}

func (r *MemoryLedger) GetOrdered(ctx context.Context, userID string) ([]*entities.Task, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.ordered(userID), nil
}

func (r *MemoryLedger) Get(ctx context.Context, userID, taskID string) (*entities.Task, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[userID][taskID]
	if !ok {
		return nil, entities.ErrTaskNotFound
	}
	return t.Clone(), nil
}

// Insert stores the task one past the highest position and applies plan, all
// inside one critical section.
func (r *MemoryLedger) Insert(ctx context.Context, task *entities.Task, plan ordering.RenumberPlan, expected int64) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.versions[task.UserID] != expected {
		return entities.ErrStaleVersion
	}
	if _, ok := r.tasks[task.UserID][task.ID]; ok {
		return entities.ErrTaskConflict
	}

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	fresh := task.Clone()
	fresh.Position = ordering.NextPosition(r.ordered(task.UserID))
	next, err := r.planned(append(r.ordered(task.UserID), fresh), plan)
	if err != nil {
		return err
	}
	r.commit(task.UserID, next, plan, now)

	task.Position = r.tasks[task.UserID][task.ID].Position
	return nil
}

// Renumber applies the plan all-or-nothing.
func (r *MemoryLedger) Renumber(ctx context.Context, userID string, plan ordering.RenumberPlan, expected int64) error {
	_ = ctx
	if plan.Empty() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.versions[userID] != expected {
		return entities.ErrStaleVersion
	}
	next, err := r.planned(r.ordered(userID), plan)
	if err != nil {
		return err
	}
	r.commit(userID, next, plan, time.Now().UTC())
	return nil
}

func (r *MemoryLedger) UpdateContent(ctx context.Context, task *entities.Task, expected int64) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.versions[task.UserID] != expected {
		return entities.ErrStaleVersion
	}
	cur, ok := r.tasks[task.UserID][task.ID]
	if !ok {
		return entities.ErrTaskNotFound
	}
	task.UpdatedAt = time.Now().UTC()

	updated := cur.Clone()
	fresh := task.Clone()
	updated.Data = fresh.Data
	updated.Done = fresh.Done
	updated.Image = fresh.Image
	updated.UpdatedAt = fresh.UpdatedAt
	r.tasks[task.UserID][task.ID] = updated
	r.versions[task.UserID]++
	return nil
}

func (r *MemoryLedger) Delete(ctx context.Context, userID, taskID string, expected int64) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.versions[userID] != expected {
		return entities.ErrStaleVersion
	}
	if _, ok := r.tasks[userID][taskID]; !ok {
		return entities.ErrTaskNotFound
	}
	delete(r.tasks[userID], taskID)
	r.versions[userID]++
	return nil
}

func (r *MemoryLedger) Version(ctx context.Context, userID string) (int64, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.versions[userID], nil
}

// ordered returns deep copies sorted by position. Caller holds the lock.
func (r *MemoryLedger) ordered(userID string) []*entities.Task {
	out := make([]*entities.Task, 0, len(r.tasks[userID]))
	for _, t := range r.tasks[userID] {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

// planned checks plan against tasks and returns the list it produces. Caller holds the lock.
func (r *MemoryLedger) planned(tasks []*entities.Task, plan ordering.RenumberPlan) ([]*entities.Task, error) {
	present := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		present[t.ID] = true
	}
	for _, id := range plan.Touched() {
		if !present[id] {
			return nil, entities.ErrTaskNotFound
		}
	}

	next := ordering.Apply(tasks, plan)
	if err := ordering.CheckUniquePositions(next); err != nil {
		return nil, &entities.PersistenceError{Op: "renumber tasks", Err: errDuplicatePosition}
	}
	return next, nil
}

// commit replaces the user's list with next and bumps the version. Caller holds the lock.
func (r *MemoryLedger) commit(userID string, next []*entities.Task, plan ordering.RenumberPlan, now time.Time) {
	list := r.tasks[userID]
	if list == nil {
		list = make(map[string]*entities.Task, len(next))
		r.tasks[userID] = list
	}
	touched := make(map[string]bool)
	for _, id := range plan.Touched() {
		touched[id] = true
	}
	for _, t := range next {
		if touched[t.ID] {
			t.UpdatedAt = now
		}
		list[t.ID] = t
	}
	r.versions[userID]++
}
