// Package checklist reorders the items stored inside a checklist-mode task.
//
// Array order is the item order. Every function returns a fresh slice and leaves its
// input untouched; callers persist the whole result as the task's new data.
package checklist

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taskmaster/tasklist/internal/domain/entities"
)

// NewItem returns an empty, not-done item with a fresh id.
func NewItem(data string) entities.ListItem {
	return entities.ListItem{ID: uuid.NewString(), Data: data}
}

// ToggleDone flips the item's done flag. A completed item sinks to the very end;
// a restored item rises to the very front.
func ToggleDone(items []entities.ListItem, itemID string) ([]entities.ListItem, error) {
	idx, err := find(items, itemID)
	if err != nil {
		return nil, err
	}
	item := items[idx]
	item.Done = !item.Done

	out := make([]entities.ListItem, 0, len(items))
	if !item.Done {
		out = append(out, item)
	}
	out = append(out, items[:idx]...)
	out = append(out, items[idx+1:]...)
	if item.Done {
		out = append(out, item)
	}
	return out, nil
}

// InsertAfter places item directly after the anchor, as when Enter is pressed while editing it.
func InsertAfter(items []entities.ListItem, anchorID string, item entities.ListItem) ([]entities.ListItem, error) {
	idx, err := find(items, anchorID)
	if err != nil {
		return nil, err
	}
	if _, err := find(items, item.ID); err == nil {
		return nil, fmt.Errorf("item %s: %w", item.ID, entities.ErrTaskConflict)
	}
	out := make([]entities.ListItem, 0, len(items)+1)
	out = append(out, items[:idx+1]...)
	out = append(out, item)
	out = append(out, items[idx+1:]...)
	return out, nil
}

// Append adds item at the end of the list.
func Append(items []entities.ListItem, item entities.ListItem) ([]entities.ListItem, error) {
	if _, err := find(items, item.ID); err == nil {
		return nil, fmt.Errorf("item %s: %w", item.ID, entities.ErrTaskConflict)
	}
	out := make([]entities.ListItem, 0, len(items)+1)
	out = append(out, items...)
	return append(out, item), nil
}

// Remove deletes the item. Removing the last remaining item reports revertToText;
// the returned slice is then empty and the task goes back to empty plain text.
func Remove(items []entities.ListItem, itemID string) (out []entities.ListItem, revertToText bool, err error) {
	idx, err := find(items, itemID)
	if err != nil {
		return nil, false, err
	}
	out = make([]entities.ListItem, 0, len(items)-1)
	out = append(out, items[:idx]...)
	out = append(out, items[idx+1:]...)
	return out, len(out) == 0, nil
}

// Move takes the item to newIndex. Out-of-range targets return ErrOutOfRange.
func Move(items []entities.ListItem, itemID string, newIndex int) ([]entities.ListItem, error) {
	from, err := find(items, itemID)
	if err != nil {
		return nil, err
	}
	if newIndex < 0 || newIndex >= len(items) {
		return nil, fmt.Errorf("move item %s to index %d: %w", itemID, newIndex, entities.ErrOutOfRange)
	}
	return reinsert(items, from, newIndex), nil
}

// MoveBy resolves a signed step to an absolute index.
func MoveBy(items []entities.ListItem, itemID string, step int) ([]entities.ListItem, error) {
	from, err := find(items, itemID)
	if err != nil {
		return nil, err
	}
	return Move(items, itemID, from+step)
}

// SetText replaces the text of one item in place.
func SetText(items []entities.ListItem, itemID, text string) ([]entities.ListItem, error) {
	idx, err := find(items, itemID)
	if err != nil {
		return nil, err
	}
	out := make([]entities.ListItem, len(items))
	copy(out, items)
	out[idx].Data = text
	return out, nil
}

// FromText splits a text payload into one item per line. Empty text yields one empty item.
func FromText(text string) []entities.ListItem {
	if text == "" {
		return []entities.ListItem{NewItem("")}
	}
	lines := strings.Split(text, "\n")
	out := make([]entities.ListItem, len(lines))
	for i, line := range lines {
		out[i] = NewItem(line)
	}
	return out
}

// ToText joins item texts with newlines.
func ToText(items []entities.ListItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.Data
	}
	return strings.Join(parts, "\n")
}

// Validate rejects empty lists and duplicate ids.
func Validate(items []entities.ListItem) error {
	if len(items) == 0 {
		return fmt.Errorf("checklist must contain at least one item")
	}
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.ID == "" {
			return fmt.Errorf("checklist item without id")
		}
		if seen[item.ID] {
			return fmt.Errorf("duplicate checklist item %s", item.ID)
		}
		seen[item.ID] = true
	}
	return nil
}

func find(items []entities.ListItem, itemID string) (int, error) {
	for i, item := range items {
		if item.ID == itemID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("item %s: %w", itemID, entities.ErrItemNotFound)
}

func reinsert(items []entities.ListItem, from, to int) []entities.ListItem {
	out := make([]entities.ListItem, 0, len(items))
	out = append(out, items[:from]...)
	out = append(out, items[from+1:]...)
	moved := items[from]
	out = append(out[:to], append([]entities.ListItem{moved}, out[to:]...)...)
	return out
}
