package entities

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors
var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrItemNotFound       = errors.New("list item not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrTaskConflict       = errors.New("task already exists")
	ErrOutOfRange         = errors.New("move target out of range")
	ErrStaleVersion       = errors.New("task list changed since base version")
	ErrNotChecklist       = errors.New("task is not a checklist")
	ErrPersistence        = errors.New("persistence failure")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

// PersistenceError wraps a storage failure. It matches ErrPersistence with errors.Is.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrPersistence, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Filter selects the "Doing" / "Done" views. It never alters positions.
type Filter string

const (
	FilterAll   Filter = "all"
	FilterDoing Filter = "doing"
	FilterDone  Filter = "done"
)

// ParseFilter accepts the filter names case-insensitively; empty means all.
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterDoing:
		return FilterDoing, nil
	case FilterDone:
		return FilterDone, nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

// Match reports whether the task belongs to the filtered view.
func (f Filter) Match(t *Task) bool {
	switch f {
	case FilterDoing:
		return !t.Done
	case FilterDone:
		return t.Done
	default:
		return true
	}
}

// User represents an account owning a task list
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ListItem is one entry of a checklist-mode task. Its order is its index in the array.
type ListItem struct {
	ID   string `json:"id" validate:"required,max=64"`
	Data string `json:"data" validate:"max=1000"`
	Done bool   `json:"done"`
}

// Task represents a task in a user's ordered list
type Task struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Position  int       `json:"position" db:"position"`
	Data      TaskData  `json:"data" db:"data"`
	Done      bool      `json:"done" db:"done"`
	Pinned    bool      `json:"pinned" db:"pinned"`
	Image     *string   `json:"image,omitempty" db:"image"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy, including the checklist items.
func (t *Task) Clone() *Task {
	c := *t
	c.Data = t.Data.clone()
	if t.Image != nil {
		img := *t.Image
		c.Image = &img
	}
	return &c
}

// IsChecklist reports whether the task is in checklist mode
func (t *Task) IsChecklist() bool {
	return t.Data.IsChecklist()
}

// CloneTasks deep-copies an ordered task slice.
func CloneTasks(tasks []*Task) []*Task {
	out := make([]*Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

// TaskData is either a plain text payload or an ordered checklist.
// On the wire and in storage it is a JSON string or a JSON array of ListItem.
type TaskData struct {
	text  string
	items []ListItem
}

// TextData builds a plain text payload.
func TextData(text string) TaskData {
	return TaskData{text: text}
}

// ChecklistData builds a checklist payload. An empty list is not a valid checklist,
// so it collapses to empty text.
func ChecklistData(items []ListItem) TaskData {
	if len(items) == 0 {
		return TaskData{}
	}
	cp := make([]ListItem, len(items))
	copy(cp, items)
	return TaskData{items: cp}
}

func (d TaskData) IsChecklist() bool { return len(d.items) > 0 }

// Text returns the plain text payload; empty for checklists.
func (d TaskData) Text() string { return d.text }

// Items returns a copy of the checklist items; nil for text tasks.
func (d TaskData) Items() []ListItem {
	if len(d.items) == 0 {
		return nil
	}
	cp := make([]ListItem, len(d.items))
	copy(cp, d.items)
	return cp
}

func (d TaskData) clone() TaskData {
	return TaskData{text: d.text, items: d.Items()}
}

// MarshalJSON encodes text as a JSON string and checklists as an array.
func (d TaskData) MarshalJSON() ([]byte, error) {
	if d.IsChecklist() {
		return json.Marshal(d.items)
	}
	return json.Marshal(d.text)
}

// UnmarshalJSON accepts either a JSON string or an array of items.
func (d *TaskData) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*d = TaskData{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*d = TextData(s)
		return nil
	case '[':
		var items []ListItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*d = ChecklistData(items)
		return nil
	}
	return fmt.Errorf("task data must be a string or a list of items")
}

// Value implements driver.Valuer; the column holds the JSON document.
func (d TaskData) Value() (driver.Value, error) {
	b, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner. Rows that are not valid JSON are read as plain text.
func (d *TaskData) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = TaskData{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into TaskData", src)
	}
	if err := d.UnmarshalJSON(raw); err != nil {
		*d = TextData(string(raw))
	}
	return nil
}
