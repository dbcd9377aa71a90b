// Package todolist implements the default TodoList middleware: it gives the
// model a tool to maintain a structured task list in State.Todos, surfaced
// back to observers via the agent server's todos_updated broadcast.
package todolist

import (
	"context"
	"fmt"

	"goa.design/agentcore/middleware"
	"goa.design/agentcore/state"
	"goa.design/agentcore/toolspec"
)

// ID is this middleware's identifier, used for middleware_state keying.
const ID = "todolist"

// Options configures the middleware. Applied from config["todo_opts"] at
// Init.
type Options struct {
	// PromptHint overrides the default system-prompt guidance.
	PromptHint string
}

// TodoList is the default middleware contributing todo-list management.
type TodoList struct {
	middleware.Base
	opts Options
}

// New constructs a TodoList middleware with default options; Init applies
// any todo_opts override from the agent's construction config.
func New() *TodoList { return &TodoList{} }

func (m *TodoList) ID() string { return ID }

func (m *TodoList) Init(config middleware.Config) (middleware.Config, error) {
	if raw, ok := config["todo_opts"]; ok {
		opts, ok := raw.(Options)
		if !ok {
			return nil, fmt.Errorf("todolist: todo_opts must be todolist.Options, got %T", raw)
		}
		m.opts = opts
	}
	return config, nil
}

func (m *TodoList) SystemPrompt(middleware.Config) ([]string, error) {
	hint := m.opts.PromptHint
	if hint == "" {
		hint = "Use the write_todos tool to track multi-step work. Keep the list current: " +
			"mark items in_progress before starting them and completed immediately after finishing."
	}
	return []string{hint}, nil
}

func (m *TodoList) Tools(middleware.Config) ([]toolspec.ToolSpec, error) {
	return []toolspec.ToolSpec{
		{
			Name:        "write_todos",
			Description: "Replace the current todo list with the given items.",
			Parameters: []toolspec.FunctionParam{
				{
					Name: "todos", Kind: toolspec.ParamArray, Required: true, ItemType: toolspec.ParamObject,
					ObjectProperties: []toolspec.FunctionParam{
						{Name: "id", Kind: toolspec.ParamString, Required: true},
						{Name: "content", Kind: toolspec.ParamString, Required: true},
						{Name: "status", Kind: toolspec.ParamString, Required: true, Enum: []string{"pending", "in_progress", "completed"}},
					},
				},
			},
			Function: writeTodos,
		},
	}, nil
}

// writeTodos validates and converts the tool arguments into a state
// fragment. The execution loop merges a tool's state.State result into the
// turn's state per spec §4.5.
func writeTodos(_ context.Context, args map[string]any) (any, error) {
	raw, _ := args["todos"].([]any)
	todos := make([]state.Todo, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("todolist: todo entry must be an object")
		}
		t := state.Todo{
			ID:      fmt.Sprint(m["id"]),
			Content: fmt.Sprint(m["content"]),
			Status:  state.TodoStatus(fmt.Sprint(m["status"])),
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("todolist: %w", err)
		}
		todos = append(todos, t)
	}
	fragment := state.New().SetTodos(todos)
	return fragment, nil
}
