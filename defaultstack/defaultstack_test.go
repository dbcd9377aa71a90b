package defaultstack_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/agentcore/agent"
	"goa.design/agentcore/defaultstack"
	"goa.design/agentcore/middleware"
	"goa.design/agentcore/vfs"
)

func TestFactoryOrdersDefaultStack(t *testing.T) {
	f := defaultstack.Factory(defaultstack.Deps{VFS: vfs.New()})
	factories := f("agent_1", agent.Attrs{})
	require.Len(t, factories, 6)

	wantIDs := []string{"todolist", "filesystem", "subagent", "summarization", "patch_tool_calls", "human_in_the_loop"}
	for i, factory := range factories {
		require.Equal(t, wantIDs[i], factory().ID())
	}
}

func TestBuildDropsHITLWhenInterruptOnEmpty(t *testing.T) {
	f := defaultstack.Factory(defaultstack.Deps{VFS: vfs.New()})
	factories := f("agent_1", agent.Attrs{})

	stack, err := middleware.Build(middleware.BuildOptions{DefaultStack: factories, IncludeHITL: false})
	require.NoError(t, err)
	_, ok := stack.Find("human_in_the_loop")
	require.False(t, ok)
	require.Len(t, stack.Entries(), 5)
}

func TestBuildKeepsHITLWhenInterruptOnSet(t *testing.T) {
	f := defaultstack.Factory(defaultstack.Deps{VFS: vfs.New()})
	factories := f("agent_1", agent.Attrs{})

	stack, err := middleware.Build(middleware.BuildOptions{DefaultStack: factories, IncludeHITL: true})
	require.NoError(t, err)
	_, ok := stack.Find("human_in_the_loop")
	require.True(t, ok)
	require.Len(t, stack.Entries(), 6)
}
