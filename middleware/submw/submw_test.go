package submw_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/agentcore/agent"
	"goa.design/agentcore/hitl"
	"goa.design/agentcore/llm"
	"goa.design/agentcore/middleware"
	"goa.design/agentcore/middleware/submw"
	"goa.design/agentcore/model"
	"goa.design/agentcore/state"
	"goa.design/agentcore/subagent"
	"goa.design/agentcore/toolspec"
)

type scriptedClient struct {
	responses []llm.Response
	calls     int
}

func (c *scriptedClient) Complete(context.Context, llm.Request) (llm.Response, error) {
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

func childAgent(t *testing.T, client llm.Client, interruptOn hitl.InterruptOn) agent.Agent {
	t.Helper()
	a, err := agent.New(agent.Attrs{
		ModelHandle:              "gpt-4",
		BasePrompt:               "You are a focused sub-agent.",
		ReplaceDefaultMiddleware: true,
		InterruptOn:              interruptOn,
	}, client, nil)
	require.NoError(t, err)
	return a
}

func TestIDMatchesDefaultStackName(t *testing.T) {
	m := submw.New("parent_1", agent.Agent{})
	require.Equal(t, "subagent", m.ID())
}

func TestSystemPromptDefaultsToDelegateGuidance(t *testing.T) {
	m := submw.New("parent_1", agent.Agent{})
	prompts, err := m.SystemPrompt(middleware.Config{})
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	require.Contains(t, prompts[0], "delegate")
}

func TestToolsExposesDelegateTool(t *testing.T) {
	m := submw.New("parent_1", agent.Agent{})
	tools, err := m.Tools(middleware.Config{})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "delegate", tools[0].Name)
}

func TestDelegateRunsChildAndReturnsFragmentWithResultText(t *testing.T) {
	client := &scriptedClient{responses: []llm.Response{{Message: model.Assistant("child says hi")}}}
	child := childAgent(t, client, hitl.InterruptOn{})
	m := submw.New("parent_1", child)

	parentState := state.New().PutMetadata("topic", "weather")
	_, err := m.BeforeModel(context.Background(), parentState, middleware.Config{})
	require.NoError(t, err)

	tools, err := m.Tools(middleware.Config{})
	require.NoError(t, err)
	out, err := tools[0].Function(context.Background(), map[string]any{"instructions": "summarize the weather"})
	require.NoError(t, err)

	fragment, ok := out.(state.Fragment)
	require.True(t, ok)
	require.Equal(t, "child says hi", fragment.Result)
	require.Equal(t, "weather", fragment.State.Metadata["topic"])
}

func TestDelegatePropagatesChildInterruptAsToolInterrupt(t *testing.T) {
	withCall := model.Assistant("")
	withCall.ToolCalls = []model.ToolCall{{CallID: "1", Name: "write_file", Status: model.ToolCallComplete, Arguments: map[string]any{}}}
	client := &scriptedClient{responses: []llm.Response{{Message: withCall}}}
	child := childAgent(t, client, hitl.InterruptOn{Enabled: map[string]bool{"write_file": true}})
	m := submw.New("parent_1", child)

	_, err := m.BeforeModel(context.Background(), state.New(), middleware.Config{})
	require.NoError(t, err)

	tools, err := m.Tools(middleware.Config{})
	require.NoError(t, err)
	out, err := tools[0].Function(context.Background(), map[string]any{"instructions": "do something risky"})
	require.NoError(t, err)

	interrupt, ok := out.(*subagent.SubAgentInterrupt)
	require.True(t, ok)
	require.Equal(t, subagent.SubAgentHITLType, interrupt.Type)

	ar := interrupt.ActionRequest()
	require.Equal(t, "delegate", ar.ToolName)
	require.Equal(t, subagent.SubAgentHITLType, ar.Arguments["type"])
}
