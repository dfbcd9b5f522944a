package ordering

import (
	"fmt"

	"github.com/taskmaster/tasklist/internal/domain/entities"
)

// Partition splits an ordered list into its pinned prefix and unpinned suffix,
// keeping the relative order inside each part.
func Partition(tasks []*entities.Task) (pinned, unpinned []*entities.Task) {
	for _, t := range tasks {
		if t.Pinned {
			pinned = append(pinned, t)
		} else {
			unpinned = append(unpinned, t)
		}
	}
	return pinned, unpinned
}

// PinnedCount is the length of the pinned prefix.
func PinnedCount(tasks []*entities.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Pinned {
			n++
		}
	}
	return n
}

// InsertionIndexForNewTask is the first unpinned index, so a new task never
// jumps ahead of pinned ones.
func InsertionIndexForNewTask(tasks []*entities.Task) int {
	return PinnedCount(tasks)
}

// InsertionIndexForPin is the index the task moves to when its pinned flag flips.
// Pinning lands after the last pinned task; unpinning lands before the first unpinned one.
func InsertionIndexForPin(tasks []*entities.Task, taskID string) (int, error) {
	from := indexOf(tasks, taskID)
	if from < 0 {
		return 0, fmt.Errorf("task %s: %w", taskID, entities.ErrTaskNotFound)
	}
	pinned := PinnedCount(tasks)
	if tasks[from].Pinned {
		return pinned - 1, nil
	}
	return pinned, nil
}

// PartitionBounds is the inclusive index range the task at index may occupy
// without breaking the pinned prefix.
func PartitionBounds(tasks []*entities.Task, index int) (lo, hi int) {
	pinned := PinnedCount(tasks)
	if tasks[index].Pinned {
		return 0, pinned - 1
	}
	return pinned, len(tasks) - 1
}

// CheckPinnedPrefix fails when an unpinned task precedes a pinned one.
func CheckPinnedPrefix(tasks []*entities.Task) error {
	seenUnpinned := false
	for i, t := range tasks {
		if !t.Pinned {
			seenUnpinned = true
			continue
		}
		if seenUnpinned {
			return fmt.Errorf("pinned task %s at index %d follows an unpinned task", t.ID, i)
		}
	}
	return nil
}

// CheckUniquePositions fails on duplicate or non-increasing positions.
func CheckUniquePositions(tasks []*entities.Task) error {
	for i := 1; i < len(tasks); i++ {
		if tasks[i].Position <= tasks[i-1].Position {
			return fmt.Errorf("position %d of task %s does not follow %d of task %s",
				tasks[i].Position, tasks[i].ID, tasks[i-1].Position, tasks[i-1].ID)
		}
	}
	return nil
}

// Validate checks both ordering invariants on a list sorted by position.
func Validate(tasks []*entities.Task) error {
	if err := CheckUniquePositions(tasks); err != nil {
		return err
	}
	return CheckPinnedPrefix(tasks)
}
