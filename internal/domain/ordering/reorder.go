package ordering

import (
	"fmt"

	"github.com/taskmaster/tasklist/internal/domain/entities"
)

// Move computes the plan that takes taskID to newIndex.
//
// An index outside the list returns ErrOutOfRange and callers treat it as a no-op.
// The target is clamped into the task's own partition. Only tasks between the old and
// new index are renumbered; they reuse the positions the window already held.
func Move(tasks []*entities.Task, taskID string, newIndex int) (RenumberPlan, error) {
	from := indexOf(tasks, taskID)
	if from < 0 {
		return RenumberPlan{}, fmt.Errorf("move task %s: %w", taskID, entities.ErrTaskNotFound)
	}
	if newIndex < 0 || newIndex >= len(tasks) {
		return RenumberPlan{}, fmt.Errorf("move task %s to index %d: %w", taskID, newIndex, entities.ErrOutOfRange)
	}

	lo, hi := PartitionBounds(tasks, from)
	if newIndex < lo {
		newIndex = lo
	}
	if newIndex > hi {
		newIndex = hi
	}
	return window(tasks, from, newIndex), nil
}

// MoveBy resolves a keyboard step to an absolute index. Steps that leave the list
// or cross the pinned boundary are rejected with ErrOutOfRange.
func MoveBy(tasks []*entities.Task, taskID string, step int) (RenumberPlan, error) {
	from := indexOf(tasks, taskID)
	if from < 0 {
		return RenumberPlan{}, fmt.Errorf("move task %s: %w", taskID, entities.ErrTaskNotFound)
	}
	to := from + step
	lo, hi := PartitionBounds(tasks, from)
	if to < lo || to > hi {
		return RenumberPlan{}, fmt.Errorf("move task %s by %d: %w", taskID, step, entities.ErrOutOfRange)
	}
	return window(tasks, from, to), nil
}

// TogglePin moves the task to its pin insertion index and flips the flag in one plan.
func TogglePin(tasks []*entities.Task, taskID string) (RenumberPlan, error) {
	to, err := InsertionIndexForPin(tasks, taskID)
	if err != nil {
		return RenumberPlan{}, err
	}
	from := indexOf(tasks, taskID)
	plan := window(tasks, from, to)
	plan.Pin = &PinChange{TaskID: taskID, Pinned: !tasks[from].Pinned}
	return plan, nil
}

// PlaceNew moves a freshly appended task (the last element) to the insertion index
// computed over the tasks that existed before it.
func PlaceNew(tasks []*entities.Task, taskID string) (RenumberPlan, error) {
	from := indexOf(tasks, taskID)
	if from < 0 {
		return RenumberPlan{}, fmt.Errorf("place task %s: %w", taskID, entities.ErrTaskNotFound)
	}
	others := make([]*entities.Task, 0, len(tasks)-1)
	others = append(others, tasks[:from]...)
	others = append(others, tasks[from+1:]...)
	return window(tasks, from, InsertionIndexForNewTask(others)), nil
}

// window removes the task at from, reinserts it at to and reassigns the window's
// existing positions slot by slot. Tasks outside [min(from,to), max(from,to)] are untouched.
func window(tasks []*entities.Task, from, to int) RenumberPlan {
	if from == to {
		return RenumberPlan{}
	}
	minIdx, maxIdx := from, to
	if minIdx > maxIdx {
		minIdx, maxIdx = maxIdx, minIdx
	}

	slots := make([]int, 0, maxIdx-minIdx+1)
	ids := make([]string, 0, maxIdx-minIdx+1)
	for i := minIdx; i <= maxIdx; i++ {
		slots = append(slots, tasks[i].Position)
		ids = append(ids, tasks[i].ID)
	}

	moved := ids[from-minIdx]
	ids = append(ids[:from-minIdx], ids[from-minIdx+1:]...)
	target := to - minIdx
	ids = append(ids[:target], append([]string{moved}, ids[target:]...)...)

	plan := RenumberPlan{Assignments: make([]Assignment, len(ids))}
	for k, id := range ids {
		plan.Assignments[k] = Assignment{TaskID: id, Position: slots[k]}
	}
	return plan
}
