package todolist_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/agentcore/middleware"
	"goa.design/agentcore/middleware/todolist"
	"goa.design/agentcore/state"
)

func TestWriteTodosToolReturnsStateFragment(t *testing.T) {
	tl := todolist.New()
	_, err := tl.Init(middleware.Config{})
	require.NoError(t, err)
	tools, err := tl.Tools(middleware.Config{})
	require.NoError(t, err)
	require.Len(t, tools, 1)

	result, err := tools[0].Function(context.Background(), map[string]any{
		"todos": []any{
			map[string]any{"id": "1", "content": "write tests", "status": "in_progress"},
		},
	})
	require.NoError(t, err)
	fragment, ok := result.(state.State)
	require.True(t, ok)
	require.Len(t, fragment.Todos, 1)
	require.Equal(t, state.TodoInProgress, fragment.Todos[0].Status)
}

func TestWriteTodosRejectsInvalidStatus(t *testing.T) {
	tl := todolist.New()
	tools, err := tl.Tools(middleware.Config{})
	require.NoError(t, err)

	_, err = tools[0].Function(context.Background(), map[string]any{
		"todos": []any{map[string]any{"id": "1", "content": "x", "status": "bogus"}},
	})
	require.Error(t, err)
}

func TestInitAppliesTodoOpts(t *testing.T) {
	tl := todolist.New()
	_, err := tl.Init(middleware.Config{"todo_opts": todolist.Options{PromptHint: "custom hint"}})
	require.NoError(t, err)
	prompt, err := tl.SystemPrompt(middleware.Config{})
	require.NoError(t, err)
	require.Equal(t, []string{"custom hint"}, prompt)
}
