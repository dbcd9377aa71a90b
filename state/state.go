package state

import (
	"goa.design/agentcore/hitl"
	"goa.design/agentcore/model"
)

// State is an immutable-snapshot value: every mutating method returns a new
// State rather than modifying the receiver. AgentServer is the only process
// permitted to mutate the "current" snapshot by replacing it (§5).
type State struct {
	Messages        []model.Message
	Todos           []Todo
	FilesIndex      map[string]FileMeta
	Metadata        map[string]any
	MiddlewareState map[string]any
	InterruptData   *hitl.InterruptData
}

// New returns an empty State.
func New() State {
	return State{
		FilesIndex:      map[string]FileMeta{},
		Metadata:        map[string]any{},
		MiddlewareState: map[string]any{},
	}
}

// AddMessage returns a copy of s with m appended.
func (s State) AddMessage(m model.Message) State {
	return s.AddMessages(m)
}

// AddMessages returns a copy of s with ms appended, in order.
func (s State) AddMessages(ms ...model.Message) State {
	out := s.clone()
	out.Messages = append(append([]model.Message{}, s.Messages...), ms...)
	return out
}

// SetTodos returns a copy of s with the todo list replaced wholesale.
func (s State) SetTodos(todos []Todo) State {
	out := s.clone()
	out.Todos = append([]Todo{}, todos...)
	return out
}

// UpsertTodo adds todo, or replaces the existing entry with the same id.
func (s State) UpsertTodo(todo Todo) State {
	out := s.clone()
	todos := make([]Todo, 0, len(s.Todos)+1)
	replaced := false
	for _, t := range s.Todos {
		if t.ID == todo.ID {
			todos = append(todos, todo)
			replaced = true
			continue
		}
		todos = append(todos, t)
	}
	if !replaced {
		todos = append(todos, todo)
	}
	out.Todos = todos
	return out
}

// DeleteTodo returns a copy of s with the todo matching id removed.
func (s State) DeleteTodo(id string) State {
	out := s.clone()
	todos := make([]Todo, 0, len(s.Todos))
	for _, t := range s.Todos {
		if t.ID != id {
			todos = append(todos, t)
		}
	}
	out.Todos = todos
	return out
}

// TodosByStatus returns the todos matching status, preserving order.
func (s State) TodosByStatus(status TodoStatus) []Todo {
	var out []Todo
	for _, t := range s.Todos {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// PutMetadata returns a copy of s with metadata[key] = value.
func (s State) PutMetadata(key string, value any) State {
	out := s.clone()
	md := make(map[string]any, len(s.Metadata)+1)
	for k, v := range s.Metadata {
		md[k] = v
	}
	md[key] = value
	out.Metadata = md
	return out
}

// GetMetadata reads metadata[key].
func (s State) GetMetadata(key string) (any, bool) {
	v, ok := s.Metadata[key]
	return v, ok
}

// DeleteMetadata returns a copy of s with metadata[key] removed.
func (s State) DeleteMetadata(key string) State {
	out := s.clone()
	md := make(map[string]any, len(s.Metadata))
	for k, v := range s.Metadata {
		if k != key {
			md[k] = v
		}
	}
	out.Metadata = md
	return out
}

// Reset clears messages, todos, middleware_state and interrupt_data while
// preserving metadata and files_index, per §4.1 and invariant 8.
func (s State) Reset() State {
	return State{
		Messages:        nil,
		Todos:           nil,
		FilesIndex:      s.FilesIndex,
		Metadata:        s.Metadata,
		MiddlewareState: map[string]any{},
		InterruptData:   nil,
	}
}

// WithInterrupt returns a copy of s parked at data.
func (s State) WithInterrupt(data *hitl.InterruptData) State {
	out := s.clone()
	out.InterruptData = data
	return out
}

// ClearInterrupt returns a copy of s with no parked interrupt.
func (s State) ClearInterrupt() State {
	return s.WithInterrupt(nil)
}

func (s State) clone() State {
	out := s
	out.FilesIndex = cloneFiles(s.FilesIndex)
	out.Metadata = cloneAny(s.Metadata)
	out.MiddlewareState = cloneAny(s.MiddlewareState)
	return out
}

func cloneFiles(m map[string]FileMeta) map[string]FileMeta {
	out := make(map[string]FileMeta, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAny(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
