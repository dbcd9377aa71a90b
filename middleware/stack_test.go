package middleware_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/agentcore/hitl"
	"goa.design/agentcore/middleware"
	"goa.design/agentcore/state"
	"goa.design/agentcore/toolspec"
)

type recordingMiddleware struct {
	middleware.Base
	id     string
	prompt string
	before func(state.State) (state.State, error)
	after  func(state.State) (state.State, *hitl.InterruptData, error)
}

func (m recordingMiddleware) ID() string { return m.id }

func (m recordingMiddleware) SystemPrompt(middleware.Config) ([]string, error) {
	if m.prompt == "" {
		return nil, nil
	}
	return []string{m.prompt}, nil
}

func (m recordingMiddleware) BeforeModel(_ context.Context, st state.State, _ middleware.Config) (state.State, error) {
	if m.before == nil {
		return st, nil
	}
	return m.before(st)
}

func (m recordingMiddleware) AfterModel(_ context.Context, st state.State, _ middleware.Config) (state.State, *hitl.InterruptData, error) {
	if m.after == nil {
		return st, nil, nil
	}
	return m.after(st)
}

func TestAssembleSystemPromptJoinsInDeclarationOrder(t *testing.T) {
	a := recordingMiddleware{id: "a", prompt: "use tools wisely"}
	b := recordingMiddleware{id: "b", prompt: ""}
	c := recordingMiddleware{id: "c", prompt: "be terse"}
	stack, err := middleware.Build(middleware.BuildOptions{ReplaceDefaultMiddleware: true, User: []middleware.Middleware{a, b, c}})
	require.NoError(t, err)

	got, err := stack.AssembleSystemPrompt("base prompt")
	require.NoError(t, err)
	require.Equal(t, "base prompt\n\nuse tools wisely\n\nbe terse", got)
}

func TestBeforeModelRunsInDeclarationOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(state.State) (state.State, error) {
		return func(st state.State) (state.State, error) {
			order = append(order, name)
			return st, nil
		}
	}
	stack, err := middleware.Build(middleware.BuildOptions{ReplaceDefaultMiddleware: true, User: []middleware.Middleware{
		recordingMiddleware{id: "first", before: mark("first")},
		recordingMiddleware{id: "second", before: mark("second")},
	}})
	require.NoError(t, err)

	_, err = stack.RunBeforeModel(context.Background(), state.New())
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, order)
}

func TestAfterModelRunsInReverseDeclarationOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(state.State) (state.State, *hitl.InterruptData, error) {
		return func(st state.State) (state.State, *hitl.InterruptData, error) {
			order = append(order, name)
			return st, nil, nil
		}
	}
	stack, err := middleware.Build(middleware.BuildOptions{ReplaceDefaultMiddleware: true, User: []middleware.Middleware{
		recordingMiddleware{id: "first", after: mark("first")},
		recordingMiddleware{id: "second", after: mark("second")},
	}})
	require.NoError(t, err)

	_, _, err = stack.RunAfterModel(context.Background(), state.New())
	require.NoError(t, err)
	require.Equal(t, []string{"second", "first"}, order)
}

func TestAfterModelStopsAtFirstInterrupt(t *testing.T) {
	interrupted := &hitl.InterruptData{HITLToolCallIDs: []string{"call-1"}}
	stack, err := middleware.Build(middleware.BuildOptions{ReplaceDefaultMiddleware: true, User: []middleware.Middleware{
		recordingMiddleware{id: "outer", after: func(st state.State) (state.State, *hitl.InterruptData, error) {
			t.Fatal("outer after_model must not run once an inner middleware interrupts")
			return st, nil, nil
		}},
		recordingMiddleware{id: "inner", after: func(st state.State) (state.State, *hitl.InterruptData, error) {
			return st, interrupted, nil
		}},
	}})
	require.NoError(t, err)

	_, got, err := stack.RunAfterModel(context.Background(), state.New())
	require.NoError(t, err)
	require.Same(t, interrupted, got)
}

func TestBeforeModelAbortsOnError(t *testing.T) {
	boom := errors.New("boom")
	stack, err := middleware.Build(middleware.BuildOptions{ReplaceDefaultMiddleware: true, User: []middleware.Middleware{
		recordingMiddleware{id: "a", before: func(st state.State) (state.State, error) { return st, boom }},
		recordingMiddleware{id: "b", before: func(st state.State) (state.State, error) {
			t.Fatal("must not run after an earlier middleware errors")
			return st, nil
		}},
	}})
	require.NoError(t, err)

	_, err = stack.RunBeforeModel(context.Background(), state.New())
	require.ErrorIs(t, err, boom)
}

func TestIncludeHITLTogglesLastDefaultFactory(t *testing.T) {
	calls := 0
	factories := []middleware.Factory{
		func() middleware.Middleware { calls++; return recordingMiddleware{id: "todolist"} },
		func() middleware.Middleware { calls++; return recordingMiddleware{id: "hitl"} },
	}

	_, err := middleware.Build(middleware.BuildOptions{DefaultStack: factories, IncludeHITL: false})
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	calls = 0
	stack, err := middleware.Build(middleware.BuildOptions{DefaultStack: factories, IncludeHITL: true})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	_, ok := stack.Find("hitl")
	require.True(t, ok)
}

func TestUnionToolsPutsUserToolsLast(t *testing.T) {
	stack, err := middleware.Build(middleware.BuildOptions{ReplaceDefaultMiddleware: true, User: []middleware.Middleware{mwTools{id: "withtool"}}})
	require.NoError(t, err)
	got, err := stack.UnionTools([]toolspec.ToolSpec{{Name: "user_tool"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "mw_tool", got[0].Name)
	require.Equal(t, "user_tool", got[1].Name)
}

type mwTools struct {
	middleware.Base
	id string
}

func (m mwTools) ID() string { return m.id }

func (m mwTools) Tools(middleware.Config) ([]toolspec.ToolSpec, error) {
	return []toolspec.ToolSpec{{Name: "mw_tool"}}, nil
}
