// Package ordering holds the pure rules behind a user's task order: the pinned/unpinned
// partition, window-minimal moves and the renumber plans the ledger applies atomically.
package ordering

import (
	"sort"

	"github.com/taskmaster/tasklist/internal/domain/entities"
)

// Assignment gives one task a new position.
type Assignment struct {
	TaskID   string `json:"task_id"`
	Position int    `json:"position"`
}

// PinChange flips a task's pinned flag as part of the same atomic write.
type PinChange struct {
	TaskID string `json:"task_id"`
	Pinned bool   `json:"pinned"`
}

// RenumberPlan is applied by the ledger in one atomic write.
type RenumberPlan struct {
	Assignments []Assignment `json:"assignments"`
	Pin         *PinChange   `json:"pin,omitempty"`
}

// Empty reports whether applying the plan would change nothing.
func (p RenumberPlan) Empty() bool {
	return len(p.Assignments) == 0 && p.Pin == nil
}

// Touched returns the ids whose row the plan rewrites.
func (p RenumberPlan) Touched() []string {
	ids := make([]string, 0, len(p.Assignments)+1)
	seen := make(map[string]bool, len(p.Assignments)+1)
	for _, a := range p.Assignments {
		ids = append(ids, a.TaskID)
		seen[a.TaskID] = true
	}
	if p.Pin != nil && !seen[p.Pin.TaskID] {
		ids = append(ids, p.Pin.TaskID)
	}
	return ids
}

// Positions returns the plan as an id -> position map.
func (p RenumberPlan) Positions() map[string]int {
	out := make(map[string]int, len(p.Assignments))
	for _, a := range p.Assignments {
		out[a.TaskID] = a.Position
	}
	return out
}

// Apply returns a new ordered sequence with the plan applied. The input is not modified.
func Apply(tasks []*entities.Task, plan RenumberPlan) []*entities.Task {
	out := entities.CloneTasks(tasks)
	positions := plan.Positions()
	for _, t := range out {
		if pos, ok := positions[t.ID]; ok {
			t.Position = pos
		}
		if plan.Pin != nil && plan.Pin.TaskID == t.ID {
			t.Pinned = plan.Pin.Pinned
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

// NextPosition is the position an appended task receives: one past the highest in use.
// On a dense ledger this equals count+1.
func NextPosition(tasks []*entities.Task) int {
	max := 0
	for _, t := range tasks {
		if t.Position > max {
			max = t.Position
		}
	}
	return max + 1
}

// Resequence renumbers the whole list to 1..n, closing any gaps left by deletes.
func Resequence(tasks []*entities.Task) RenumberPlan {
	var plan RenumberPlan
	for i, t := range tasks {
		if t.Position != i+1 {
			plan.Assignments = append(plan.Assignments, Assignment{TaskID: t.ID, Position: i + 1})
		}
	}
	return plan
}

func indexOf(tasks []*entities.Task, taskID string) int {
	for i, t := range tasks {
		if t.ID == taskID {
			return i
		}
	}
	return -1
}
