package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/agentcore/agent"
	"goa.design/agentcore/hitl"
	"goa.design/agentcore/llm"
	"goa.design/agentcore/middleware"
	"goa.design/agentcore/model"
	"goa.design/agentcore/state"
	"goa.design/agentcore/toolspec"
)

type fakeClient struct {
	responses []llm.Response
	calls     int
}

func (c *fakeClient) Complete(context.Context, llm.Request) (llm.Response, error) {
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

func TestNewRequiresModelHandle(t *testing.T) {
	_, err := agent.New(agent.Attrs{}, &fakeClient{}, nil)
	require.Error(t, err)
}

func TestNewGeneratesAgentIDWhenAbsent(t *testing.T) {
	a, err := agent.New(agent.Attrs{ModelHandle: "gpt-4", ReplaceDefaultMiddleware: true}, &fakeClient{}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)
	require.Regexp(t, `^agent_`, a.ID)
}

func TestNewKeepsSuppliedAgentID(t *testing.T) {
	a, err := agent.New(agent.Attrs{AgentID: "agent_fixed", ModelHandle: "gpt-4", ReplaceDefaultMiddleware: true}, &fakeClient{}, nil)
	require.NoError(t, err)
	require.Equal(t, "agent_fixed", a.ID)
}

func TestNewAssemblesPromptAndUnionsTools(t *testing.T) {
	userTool := toolspec.ToolSpec{Name: "search", Function: func(context.Context, map[string]any) (any, error) { return "ok", nil }}
	mw := &promptMiddleware{prompt: "be terse"}
	a, err := agent.New(agent.Attrs{
		ModelHandle:              "gpt-4",
		BasePrompt:               "You are an assistant.",
		Tools:                    []toolspec.ToolSpec{userTool},
		ReplaceDefaultMiddleware: true,
		Middleware:               []middleware.Middleware{mw},
	}, &fakeClient{}, nil)
	require.NoError(t, err)
	require.Contains(t, a.AssembledSystemPrompt, "You are an assistant.")
	require.Contains(t, a.AssembledSystemPrompt, "be terse")
	require.Len(t, a.Tools, 1)
	require.Equal(t, "search", a.Tools[0].Name)
}

func TestExecuteSimpleTurnNoToolCalls(t *testing.T) {
	client := &fakeClient{responses: []llm.Response{{Message: model.Assistant("Hi")}}}
	a, err := agent.New(agent.Attrs{ModelHandle: "gpt-4", ReplaceDefaultMiddleware: true}, client, nil)
	require.NoError(t, err)

	st := stateWithUserMessage("Hello")
	out, interrupt, err := a.Execute(context.Background(), st)
	require.NoError(t, err)
	require.Nil(t, interrupt)
	require.Len(t, out.Messages, 2)
	require.Equal(t, "Hi", out.Messages[1].Text)
}

func TestExecuteParksOnGatedToolCall(t *testing.T) {
	withCall := model.Assistant("")
	withCall.ToolCalls = []model.ToolCall{{CallID: "1", Name: "write_file", Status: model.ToolCallComplete, Arguments: map[string]any{}}}
	client := &fakeClient{responses: []llm.Response{{Message: withCall}}}

	a, err := agent.New(agent.Attrs{
		ModelHandle:              "gpt-4",
		ReplaceDefaultMiddleware: true,
		InterruptOn:              hitl.InterruptOn{Enabled: map[string]bool{"write_file": true}},
	}, client, nil)
	require.NoError(t, err)

	st := stateWithUserMessage("go")
	out, interrupt, err := a.Execute(context.Background(), st)
	require.NoError(t, err)
	require.NotNil(t, interrupt)
	require.Equal(t, out.InterruptData, interrupt)
}

type promptMiddleware struct {
	middleware.Base
	prompt string
}

func (m *promptMiddleware) ID() string { return "prompt_mw" }
func (m *promptMiddleware) SystemPrompt(middleware.Config) ([]string, error) {
	return []string{m.prompt}, nil
}

func stateWithUserMessage(text string) state.State {
	return state.New().AddMessage(model.User(text))
}
