package state_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"goa.design/agentcore/model"
	"goa.design/agentcore/state"
)

func TestResetPreservesMetadataAndFiles(t *testing.T) {
	s := state.New().
		AddMessage(model.User("hi")).
		PutMetadata("conversation_id", "abc")
	s.FilesIndex["/a.txt"] = state.FileMeta{Path: "/a.txt", Persistent: true}
	s = s.UpsertTodo(state.Todo{ID: "1", Content: "write report", Status: state.TodoPending})

	reset := s.Reset()

	require.Empty(t, reset.Messages)
	require.Empty(t, reset.Todos)
	require.Empty(t, reset.MiddlewareState)
	require.Nil(t, reset.InterruptData)
	v, ok := reset.GetMetadata("conversation_id")
	require.True(t, ok)
	require.Equal(t, "abc", v)
	require.Contains(t, reset.FilesIndex, "/a.txt")
}

func TestMergeSemantics(t *testing.T) {
	base := state.New().
		AddMessage(model.User("hi")).
		PutMetadata("a", map[string]any{"x": 1})
	base.FilesIndex["/a.txt"] = state.FileMeta{Path: "/a.txt"}
	base = base.UpsertTodo(state.Todo{ID: "1", Content: "old", Status: state.TodoPending})

	fragment := state.New().
		AddMessage(model.Assistant("hello")).
		PutMetadata("a", map[string]any{"y": 2})
	fragment.FilesIndex["/b.txt"] = state.FileMeta{Path: "/b.txt"}
	fragment = fragment.UpsertTodo(state.Todo{ID: "2", Content: "new", Status: state.TodoInProgress})

	merged := base.Merge(fragment)

	require.Len(t, merged.Messages, 2, "messages concatenate")
	require.Len(t, merged.Todos, 1, "todos right-wins when non-empty")
	require.Equal(t, "2", merged.Todos[0].ID)
	require.Contains(t, merged.FilesIndex, "/a.txt", "files_index right-wins per key, keeps untouched keys")
	require.Contains(t, merged.FilesIndex, "/b.txt")
	a, _ := merged.GetMetadata("a")
	am := a.(map[string]any)
	require.Equal(t, 1, am["x"], "metadata deep-merges")
	require.Equal(t, 2, am["y"])
}

func TestMergeTodosEmptyFragmentKeepsBase(t *testing.T) {
	base := state.New().UpsertTodo(state.Todo{ID: "1", Content: "old", Status: state.TodoPending})
	merged := base.Merge(state.New())
	require.Len(t, merged.Todos, 1, "empty fragment todos do not clobber base")
}

func TestSerializeRoundTrip(t *testing.T) {
	s := state.New().
		AddMessage(model.User("hi")).
		AddMessage(model.Assistant("hello")).
		PutMetadata("conversation_id", "abc").
		UpsertTodo(state.Todo{ID: "1", Content: "write report", Status: state.TodoPending})

	data, err := s.Serialize(time.Now())
	require.NoError(t, err)

	got, err := state.Deserialize(data, state.New())
	require.NoError(t, err)

	require.Equal(t, s.Messages, got.Messages)
	require.Equal(t, s.Todos, got.Todos)
	require.Equal(t, s.Metadata, got.Metadata)
	require.Equal(t, s.MiddlewareState, got.MiddlewareState)
}

func TestDeserializeRejectsMissingVersion(t *testing.T) {
	_, err := state.Deserialize([]byte(`{"state":{}}`), state.New())
	require.Error(t, err)
	var serErr *state.SerializationError
	require.ErrorAs(t, err, &serErr)
}

func TestDeserializeRejectsUnsupportedVersion(t *testing.T) {
	_, err := state.Deserialize([]byte(`{"version":99,"state":{}}`), state.New())
	require.Error(t, err)
}

func TestTodosByStatus(t *testing.T) {
	s := state.New().SetTodos([]state.Todo{
		{ID: "1", Content: "a", Status: state.TodoPending},
		{ID: "2", Content: "b", Status: state.TodoCompleted},
		{ID: "3", Content: "c", Status: state.TodoPending},
	})
	pending := s.TodosByStatus(state.TodoPending)
	require.Len(t, pending, 2)
}

func TestDeleteTodo(t *testing.T) {
	s := state.New().UpsertTodo(state.Todo{ID: "1", Content: "a", Status: state.TodoPending})
	s = s.DeleteTodo("1")
	require.Empty(t, s.Todos)
}
