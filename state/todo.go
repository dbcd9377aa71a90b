package state

import (
	"fmt"
	"unicode/utf8"
)

// TodoStatus is the lifecycle of a single Todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
	TodoCancelled  TodoStatus = "cancelled"
)

// Todo is a single task-list entry. Content is bounded to 1..1000 characters
// per the data model; Validate enforces that bound.
type Todo struct {
	ID      string     `json:"id"`
	Content string     `json:"content"`
	Status  TodoStatus `json:"status"`
}

// Validate checks the content-length invariant.
func (t Todo) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("state: todo id is required")
	}
	if n := utf8.RuneCountInString(t.Content); n < 1 || n > 1000 {
		return fmt.Errorf("state: todo content must be 1..1000 characters, got %d", n)
	}
	switch t.Status {
	case TodoPending, TodoInProgress, TodoCompleted, TodoCancelled:
	default:
		return fmt.Errorf("state: unknown todo status %q", t.Status)
	}
	return nil
}
